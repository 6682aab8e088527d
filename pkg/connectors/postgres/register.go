package postgres

import (
	"context"

	"github.com/fathomdata/fathom-engine/pkg/connectors"
	"github.com/fathomdata/fathom-engine/pkg/models"
)

func init() {
	connectors.Register(connectors.Registration{
		Info: connectors.ConnectorInfo{
			Type:        models.ServicePostgreSQL,
			DisplayName: "PostgreSQL",
			Description: "Connect to PostgreSQL 12+, Aurora PostgreSQL, Supabase",
		},
		Factory: func(ctx context.Context, config map[string]string) (connectors.Connector, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return New(ctx, cfg)
		},
	})
}
