package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fathomdata/fathom-engine/pkg/apperrors"
	"github.com/fathomdata/fathom-engine/pkg/connectors"
	"github.com/fathomdata/fathom-engine/pkg/crypto"
	"github.com/fathomdata/fathom-engine/pkg/logging"
	"github.com/fathomdata/fathom-engine/pkg/models"
	"github.com/fathomdata/fathom-engine/pkg/repositories"
)

// LinkedServiceService defines the interface for linked service operations.
type LinkedServiceService interface {
	// Create registers a new linked service with encrypted credentials.
	Create(ctx context.Context, name string, serviceType models.ServiceType, config map[string]string) (*models.LinkedService, error)

	// Get retrieves a linked service with decrypted config.
	Get(ctx context.Context, id uuid.UUID) (*models.LinkedService, error)

	// List retrieves all linked services with decrypted configs.
	List(ctx context.Context) ([]*models.LinkedService, error)

	// Update rotates a linked service's name or credentials. The service
	// type is immutable.
	Update(ctx context.Context, id uuid.UUID, name string, config map[string]string) (*models.LinkedService, error)

	// Delete removes a linked service unless datasets still reference it.
	Delete(ctx context.Context, id uuid.UUID) error

	// Test checks connectivity for a stored linked service. Connection
	// failures are reported in the result, never as an error.
	Test(ctx context.Context, id uuid.UUID) (*models.ConnectionTestResult, error)

	// TestConfig checks connectivity for an unsaved configuration.
	TestConfig(ctx context.Context, serviceType models.ServiceType, config map[string]string) *models.ConnectionTestResult
}

// linkedServiceService implements LinkedServiceService.
type linkedServiceService struct {
	repo        repositories.LinkedServiceRepository
	datasetRepo repositories.DatasetRepository
	cipher      *crypto.CredentialCipher
	opener      connectors.Opener
	testTimeout time.Duration
	logger      *zap.Logger
}

// NewLinkedServiceService creates a new linked service service.
func NewLinkedServiceService(
	repo repositories.LinkedServiceRepository,
	datasetRepo repositories.DatasetRepository,
	cipher *crypto.CredentialCipher,
	opener connectors.Opener,
	testTimeout time.Duration,
	logger *zap.Logger,
) LinkedServiceService {
	return &linkedServiceService{
		repo:        repo,
		datasetRepo: datasetRepo,
		cipher:      cipher,
		opener:      opener,
		testTimeout: testTimeout,
		logger:      logger,
	}
}

func (s *linkedServiceService) Create(ctx context.Context, name string, serviceType models.ServiceType, config map[string]string) (*models.LinkedService, error) {
	if err := validateServiceDefinition(name, serviceType, config); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByName(ctx, name); err == nil {
		return nil, &apperrors.ConflictError{Message: fmt.Sprintf("linked service %q already exists", name)}
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	encrypted, err := s.encryptConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt config: %w", err)
	}

	service := &models.LinkedService{
		Name:        name,
		ServiceType: serviceType,
		Config:      encrypted,
	}
	if err := s.repo.Create(ctx, service); err != nil {
		return nil, err
	}

	s.logger.Info("created linked service",
		zap.String("id", service.ID.String()),
		zap.String("name", name),
		zap.String("type", string(serviceType)))

	service.Config = config
	return service, nil
}

func (s *linkedServiceService) Get(ctx context.Context, id uuid.UUID) (*models.LinkedService, error) {
	service, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withDecryptedConfig(service)
}

func (s *linkedServiceService) List(ctx context.Context) ([]*models.LinkedService, error) {
	services, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i, service := range services {
		if services[i], err = s.withDecryptedConfig(service); err != nil {
			return nil, err
		}
	}
	return services, nil
}

func (s *linkedServiceService) Update(ctx context.Context, id uuid.UUID, name string, config map[string]string) (*models.LinkedService, error) {
	service, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := validateServiceDefinition(name, service.ServiceType, config); err != nil {
		return nil, err
	}
	if name != service.Name {
		if _, err := s.repo.GetByName(ctx, name); err == nil {
			return nil, &apperrors.ConflictError{Message: fmt.Sprintf("linked service %q already exists", name)}
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}

	encrypted, err := s.encryptConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt config: %w", err)
	}

	service.Name = name
	service.Config = encrypted
	if err := s.repo.Update(ctx, service); err != nil {
		return nil, err
	}

	s.logger.Info("updated linked service", zap.String("id", id.String()))

	service.Config = config
	return service, nil
}

func (s *linkedServiceService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}

	count, err := s.datasetRepo.CountByLinkedService(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return &apperrors.ConflictError{Message: fmt.Sprintf("linked service is referenced by %d dataset(s)", count)}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deleted linked service", zap.String("id", id.String()))
	return nil
}

func (s *linkedServiceService) Test(ctx context.Context, id uuid.UUID) (*models.ConnectionTestResult, error) {
	service, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.TestConfig(ctx, service.ServiceType, service.Config), nil
}

func (s *linkedServiceService) TestConfig(ctx context.Context, serviceType models.ServiceType, config map[string]string) *models.ConnectionTestResult {
	ctx, cancel := context.WithTimeout(ctx, s.testTimeout)
	defer cancel()

	conn, err := s.opener.Open(ctx, serviceType, config)
	if err != nil {
		return &models.ConnectionTestResult{Success: false, Message: logging.SanitizeError(err)}
	}
	defer conn.Close()

	if err := conn.TestConnection(ctx); err != nil {
		if ctx.Err() != nil {
			return &models.ConnectionTestResult{
				Success: false,
				Message: fmt.Sprintf("connection test timed out after %s", s.testTimeout),
			}
		}
		return &models.ConnectionTestResult{Success: false, Message: logging.SanitizeError(err)}
	}
	return &models.ConnectionTestResult{Success: true, Message: "connection successful"}
}

func validateServiceDefinition(name string, serviceType models.ServiceType, config map[string]string) error {
	if name == "" {
		return apperrors.NewValidationError("name", "name is required")
	}
	if !models.IsValidServiceType(serviceType) {
		return apperrors.NewValidationError("service_type", "unsupported service type %q", serviceType)
	}

	var missing []string
	for _, key := range models.RequiredConfigKeys[serviceType] {
		if config[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("config", "missing required config keys: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (s *linkedServiceService) encryptConfig(config map[string]string) (map[string]string, error) {
	encrypted := make(map[string]string, len(config))
	for key, value := range config {
		ciphertext, err := s.cipher.Encrypt(value)
		if err != nil {
			return nil, err
		}
		encrypted[key] = ciphertext
	}
	return encrypted, nil
}

func (s *linkedServiceService) withDecryptedConfig(service *models.LinkedService) (*models.LinkedService, error) {
	decrypted := make(map[string]string, len(service.Config))
	for key, value := range service.Config {
		plaintext, err := s.cipher.Decrypt(value)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt config: %w", err)
		}
		decrypted[key] = plaintext
	}
	service.Config = decrypted
	return service, nil
}
