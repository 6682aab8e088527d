package connectors

import (
	"context"
	"fmt"
	"sync"

	"github.com/fathomdata/fathom-engine/pkg/models"
)

// ConnectorInfo describes a registered connector for discovery.
type ConnectorInfo struct {
	Type        models.ServiceType `json:"type"`
	DisplayName string             `json:"display_name"`
	Description string             `json:"description"`
}

// Registration contains info plus the factory for creating connectors.
type Registration struct {
	Info    ConnectorInfo
	Factory func(ctx context.Context, config map[string]string) (Connector, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[models.ServiceType]Registration)
)

// Register is called by each connector's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredConnectors returns info for all registered connectors.
func RegisteredConnectors() []ConnectorInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]ConnectorInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	return result
}

// IsRegistered checks whether a connector is compiled in for a service type.
func IsRegistered(serviceType models.ServiceType) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[serviceType]
	return ok
}

// registryOpener opens connectors through the global registry.
type registryOpener struct{}

// NewOpener returns an Opener backed by the process-wide registry.
func NewOpener() Opener {
	return registryOpener{}
}

func (registryOpener) Open(ctx context.Context, serviceType models.ServiceType, config map[string]string) (Connector, error) {
	registryMu.RLock()
	reg, ok := registry[serviceType]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no connector is available for service type %q", serviceType)
	}
	return reg.Factory(ctx, config)
}
