package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathomdata/fathom-engine/pkg/apperrors"
	"github.com/fathomdata/fathom-engine/pkg/connectors/memory"
	"github.com/fathomdata/fathom-engine/pkg/crypto"
	"github.com/fathomdata/fathom-engine/pkg/models"
)

func postgresConfig() map[string]string {
	return map[string]string{
		"host":     "db.example.com",
		"port":     "5432",
		"database": "analytics",
		"username": "etl",
		"password": "s3cret",
	}
}

func newTestLinkedServiceService(t *testing.T, repo *mockLinkedServiceRepo, datasetRepo *mockDatasetRepo, opener *mockOpener) (LinkedServiceService, *crypto.CredentialCipher) {
	t.Helper()
	cipher, err := crypto.NewCredentialCipher(testEncryptionKey)
	require.NoError(t, err)
	svc := NewLinkedServiceService(repo, datasetRepo, cipher, opener, 5*time.Second, zap.NewNop())
	return svc, cipher
}

func TestLinkedServiceService_Create(t *testing.T) {
	repo := newMockLinkedServiceRepo()
	svc, cipher := newTestLinkedServiceService(t, repo, newMockDatasetRepo(), &mockOpener{})

	service, err := svc.Create(context.Background(), "warehouse", models.ServicePostgreSQL, postgresConfig())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, service.ID)
	assert.Equal(t, "warehouse", service.Name)
	assert.Equal(t, models.ServicePostgreSQL, service.ServiceType)
	assert.Equal(t, "s3cret", service.Config["password"])

	// The stored copy must be encrypted but decrypt back to the input.
	stored := repo.services[service.ID]
	require.NotNil(t, stored)
	assert.NotEqual(t, "s3cret", stored.Config["password"])
	plaintext, err := cipher.Decrypt(stored.Config["password"])
	require.NoError(t, err)
	assert.Equal(t, "s3cret", plaintext)
}

func TestLinkedServiceService_CreateValidation(t *testing.T) {
	svc, _ := newTestLinkedServiceService(t, newMockLinkedServiceRepo(), newMockDatasetRepo(), &mockOpener{})

	tests := []struct {
		name        string
		serviceName string
		serviceType models.ServiceType
		config      map[string]string
		wantField   string
	}{
		{"empty name", "", models.ServicePostgreSQL, postgresConfig(), "name"},
		{"unsupported type", "svc", models.ServiceType("oracle"), postgresConfig(), "service_type"},
		{"missing config keys", "svc", models.ServicePostgreSQL, map[string]string{"host": "h"}, "config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.serviceName, tt.serviceType, tt.config)
			var valErr *apperrors.ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, tt.wantField, valErr.Field)
		})
	}
}

func TestLinkedServiceService_CreateMissingKeysMessage(t *testing.T) {
	svc, _ := newTestLinkedServiceService(t, newMockLinkedServiceRepo(), newMockDatasetRepo(), &mockOpener{})

	_, err := svc.Create(context.Background(), "svc", models.ServiceS3, map[string]string{"bucket": "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_key")
	assert.Contains(t, err.Error(), "secret_key")
}

func TestLinkedServiceService_CreateDuplicateName(t *testing.T) {
	repo := newMockLinkedServiceRepo()
	svc, _ := newTestLinkedServiceService(t, repo, newMockDatasetRepo(), &mockOpener{})

	_, err := svc.Create(context.Background(), "warehouse", models.ServicePostgreSQL, postgresConfig())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "warehouse", models.ServiceMySQL, map[string]string{
		"host": "h", "port": "3306", "database": "d", "username": "u", "password": "p",
	})
	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Contains(t, conflict.Message, "warehouse")
}

func TestLinkedServiceService_GetDecrypts(t *testing.T) {
	repo := newMockLinkedServiceRepo()
	svc, _ := newTestLinkedServiceService(t, repo, newMockDatasetRepo(), &mockOpener{})

	created, err := svc.Create(context.Background(), "warehouse", models.ServicePostgreSQL, postgresConfig())
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, postgresConfig(), got.Config)
}

func TestLinkedServiceService_GetNotFound(t *testing.T) {
	svc, _ := newTestLinkedServiceService(t, newMockLinkedServiceRepo(), newMockDatasetRepo(), &mockOpener{})

	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLinkedServiceService_UpdateRotatesCredentials(t *testing.T) {
	repo := newMockLinkedServiceRepo()
	svc, cipher := newTestLinkedServiceService(t, repo, newMockDatasetRepo(), &mockOpener{})

	created, err := svc.Create(context.Background(), "warehouse", models.ServicePostgreSQL, postgresConfig())
	require.NoError(t, err)

	rotated := postgresConfig()
	rotated["password"] = "n3w-s3cret"
	updated, err := svc.Update(context.Background(), created.ID, "warehouse-eu", rotated)
	require.NoError(t, err)
	assert.Equal(t, "warehouse-eu", updated.Name)
	assert.Equal(t, "n3w-s3cret", updated.Config["password"])

	plaintext, err := cipher.Decrypt(repo.services[created.ID].Config["password"])
	require.NoError(t, err)
	assert.Equal(t, "n3w-s3cret", plaintext)
}

func TestLinkedServiceService_UpdateNameConflict(t *testing.T) {
	repo := newMockLinkedServiceRepo()
	svc, _ := newTestLinkedServiceService(t, repo, newMockDatasetRepo(), &mockOpener{})

	_, err := svc.Create(context.Background(), "first", models.ServicePostgreSQL, postgresConfig())
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), "second", models.ServicePostgreSQL, postgresConfig())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), second.ID, "first", postgresConfig())
	var conflict *apperrors.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestLinkedServiceService_DeleteBlockedByDatasets(t *testing.T) {
	repo := newMockLinkedServiceRepo()
	datasetRepo := newMockDatasetRepo()
	datasetRepo.countByService = 2
	svc, _ := newTestLinkedServiceService(t, repo, datasetRepo, &mockOpener{})

	created, err := svc.Create(context.Background(), "warehouse", models.ServicePostgreSQL, postgresConfig())
	require.NoError(t, err)

	err = svc.Delete(context.Background(), created.ID)
	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Contains(t, conflict.Message, "2 dataset(s)")
	assert.Empty(t, repo.deleted)
}

func TestLinkedServiceService_Delete(t *testing.T) {
	repo := newMockLinkedServiceRepo()
	svc, _ := newTestLinkedServiceService(t, repo, newMockDatasetRepo(), &mockOpener{})

	created, err := svc.Create(context.Background(), "warehouse", models.ServicePostgreSQL, postgresConfig())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	assert.Equal(t, []uuid.UUID{created.ID}, repo.deleted)
}

func TestLinkedServiceService_TestConfigSuccess(t *testing.T) {
	opener := &mockOpener{conn: memory.New()}
	svc, _ := newTestLinkedServiceService(t, newMockLinkedServiceRepo(), newMockDatasetRepo(), opener)

	result := svc.TestConfig(context.Background(), models.ServicePostgreSQL, postgresConfig())
	assert.True(t, result.Success)
	assert.Equal(t, models.ServicePostgreSQL, opener.lastType)
}

func TestLinkedServiceService_TestConfigFailure(t *testing.T) {
	conn := memory.New()
	conn.TestErr = errors.New("dial tcp: connection refused")
	opener := &mockOpener{conn: conn}
	svc, _ := newTestLinkedServiceService(t, newMockLinkedServiceRepo(), newMockDatasetRepo(), opener)

	result := svc.TestConfig(context.Background(), models.ServicePostgreSQL, postgresConfig())
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Message)
}

func TestLinkedServiceService_TestConfigOpenFailure(t *testing.T) {
	opener := &mockOpener{err: errors.New("no connector is available for service type \"bigquery\"")}
	svc, _ := newTestLinkedServiceService(t, newMockLinkedServiceRepo(), newMockDatasetRepo(), opener)

	result := svc.TestConfig(context.Background(), models.ServiceBigQuery, map[string]string{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "no connector")
}

func TestLinkedServiceService_TestUsesDecryptedConfig(t *testing.T) {
	repo := newMockLinkedServiceRepo()
	opener := &mockOpener{conn: memory.New()}
	svc, _ := newTestLinkedServiceService(t, repo, newMockDatasetRepo(), opener)

	created, err := svc.Create(context.Background(), "warehouse", models.ServicePostgreSQL, postgresConfig())
	require.NoError(t, err)

	result, err := svc.Test(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, opener.opened)
}
