package mysql

import (
	"context"

	"github.com/fathomdata/fathom-engine/pkg/connectors"
	"github.com/fathomdata/fathom-engine/pkg/models"
)

func init() {
	connectors.Register(connectors.Registration{
		Info: connectors.ConnectorInfo{
			Type:        models.ServiceMySQL,
			DisplayName: "MySQL",
			Description: "Connect to MySQL 5.7+ and MariaDB",
		},
		Factory: func(ctx context.Context, config map[string]string) (connectors.Connector, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return New(cfg)
		},
	})
}
