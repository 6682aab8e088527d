package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fathomdata/fathom-engine/pkg/apperrors"
	"github.com/fathomdata/fathom-engine/pkg/database"
	"github.com/fathomdata/fathom-engine/pkg/models"
)

// LinkedServiceRepository defines the interface for linked service data access.
type LinkedServiceRepository interface {
	Create(ctx context.Context, service *models.LinkedService) error
	Get(ctx context.Context, id uuid.UUID) (*models.LinkedService, error)
	GetByName(ctx context.Context, name string) (*models.LinkedService, error)
	List(ctx context.Context) ([]*models.LinkedService, error)
	Update(ctx context.Context, service *models.LinkedService) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// linkedServiceRepository implements LinkedServiceRepository using PostgreSQL.
type linkedServiceRepository struct {
	db *database.DB
}

// NewLinkedServiceRepository creates a new linked service repository.
func NewLinkedServiceRepository(db *database.DB) LinkedServiceRepository {
	return &linkedServiceRepository{db: db}
}

func (r *linkedServiceRepository) Create(ctx context.Context, service *models.LinkedService) error {
	if service.ID == uuid.Nil {
		service.ID = uuid.New()
	}
	now := time.Now()
	service.CreatedAt = now
	service.UpdatedAt = now

	config, err := json.Marshal(service.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	query := `
		INSERT INTO linked_services (id, name, service_type, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.db.Exec(ctx, query,
		service.ID,
		service.Name,
		service.ServiceType,
		config,
		service.CreatedAt,
		service.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create linked service: %w", err)
	}
	return nil
}

func (r *linkedServiceRepository) Get(ctx context.Context, id uuid.UUID) (*models.LinkedService, error) {
	query := `
		SELECT id, name, service_type, config, created_at, updated_at
		FROM linked_services
		WHERE id = $1`

	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *linkedServiceRepository) GetByName(ctx context.Context, name string) (*models.LinkedService, error) {
	query := `
		SELECT id, name, service_type, config, created_at, updated_at
		FROM linked_services
		WHERE name = $1`

	return r.scanOne(r.db.QueryRow(ctx, query, name))
}

func (r *linkedServiceRepository) List(ctx context.Context) ([]*models.LinkedService, error) {
	query := `
		SELECT id, name, service_type, config, created_at, updated_at
		FROM linked_services
		ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked services: %w", err)
	}
	defer rows.Close()

	var services []*models.LinkedService
	for rows.Next() {
		service, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, service)
	}
	return services, rows.Err()
}

func (r *linkedServiceRepository) Update(ctx context.Context, service *models.LinkedService) error {
	service.UpdatedAt = time.Now()

	config, err := json.Marshal(service.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	query := `
		UPDATE linked_services
		SET name = $2, config = $3, updated_at = $4
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, service.ID, service.Name, config, service.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update linked service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *linkedServiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM linked_services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete linked service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *linkedServiceRepository) scanOne(row rowScanner) (*models.LinkedService, error) {
	var service models.LinkedService
	var config []byte

	err := row.Scan(
		&service.ID,
		&service.Name,
		&service.ServiceType,
		&config,
		&service.CreatedAt,
		&service.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get linked service: %w", err)
	}

	if err := json.Unmarshal(config, &service.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &service, nil
}
