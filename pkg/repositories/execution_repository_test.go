package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathomdata/fathom-engine/pkg/apperrors"
	"github.com/fathomdata/fathom-engine/pkg/models"
	"github.com/fathomdata/fathom-engine/pkg/testhelpers"
)

func createPipeline(t *testing.T, db *testhelpers.EngineDB) *models.Pipeline {
	t.Helper()
	pipeline := samplePipeline(uuid.New())
	require.NoError(t, NewPipelineRepository(db.DB).Create(context.Background(), pipeline))
	return pipeline
}

func TestExecutionRepository_CreateAndGet(t *testing.T) {
	db := testhelpers.GetEngineDB(t)
	repo := NewExecutionRepository(db.DB)
	ctx := context.Background()
	pipeline := createPipeline(t, db)

	execution := &models.Execution{
		PipelineID: pipeline.ID,
		Status:     models.ExecutionRunning,
		StartedAt:  time.Now().UTC(),
		NodeResults: map[string]models.NodeResult{
			"src": {Status: models.NodeNotStarted},
			"tf":  {Status: models.NodeNotStarted},
		},
	}
	require.NoError(t, repo.Create(ctx, execution))

	got, err := repo.Get(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.ID, got.PipelineID)
	assert.Equal(t, models.ExecutionRunning, got.Status)
	assert.Nil(t, got.FinishedAt)
	assert.Equal(t, models.NodeNotStarted, got.NodeResults["src"].Status)
}

func TestExecutionRepository_UpdateRecordsOutcome(t *testing.T) {
	db := testhelpers.GetEngineDB(t)
	repo := NewExecutionRepository(db.DB)
	ctx := context.Background()
	pipeline := createPipeline(t, db)

	execution := &models.Execution{
		PipelineID:  pipeline.ID,
		Status:      models.ExecutionRunning,
		StartedAt:   time.Now().UTC(),
		NodeResults: map[string]models.NodeResult{"src": {Status: models.NodeRunning}},
	}
	require.NoError(t, repo.Create(ctx, execution))

	finished := time.Now().UTC()
	rows := int64(42)
	execution.Status = models.ExecutionFailed
	execution.FinishedAt = &finished
	execution.ErrorMessage = "node tf failed"
	execution.NodeResults = map[string]models.NodeResult{
		"src": {Status: models.NodeSucceeded, RowCount: &rows},
		"tf":  {Status: models.NodeFailed, ErrorMessage: "predicate references unknown column"},
		"out": {Status: models.NodeSkipped, SkippedBecause: "tf"},
	}
	require.NoError(t, repo.Update(ctx, execution))

	got, err := repo.Get(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionFailed, got.Status)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, "node tf failed", got.ErrorMessage)
	require.NotNil(t, got.NodeResults["src"].RowCount)
	assert.Equal(t, int64(42), *got.NodeResults["src"].RowCount)
	assert.Equal(t, "tf", got.NodeResults["out"].SkippedBecause)
}

func TestExecutionRepository_ListByPipeline(t *testing.T) {
	db := testhelpers.GetEngineDB(t)
	repo := NewExecutionRepository(db.DB)
	ctx := context.Background()
	pipeline := createPipeline(t, db)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.Execution{
			PipelineID:  pipeline.ID,
			Status:      models.ExecutionCompleted,
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
			NodeResults: map[string]models.NodeResult{},
		}))
	}

	executions, err := repo.ListByPipeline(ctx, pipeline.ID, 2)
	require.NoError(t, err)
	require.Len(t, executions, 2)
	assert.True(t, executions[0].StartedAt.After(executions[1].StartedAt))

	executions, err = repo.ListByPipeline(ctx, uuid.New(), 10)
	require.NoError(t, err)
	assert.Empty(t, executions)
}

func TestExecutionRepository_GetMissing(t *testing.T) {
	db := testhelpers.GetEngineDB(t)
	repo := NewExecutionRepository(db.DB)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
