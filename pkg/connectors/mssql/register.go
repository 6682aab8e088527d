package mssql

import (
	"context"

	"github.com/fathomdata/fathom-engine/pkg/connectors"
	"github.com/fathomdata/fathom-engine/pkg/models"
)

func init() {
	factory := func(ctx context.Context, config map[string]string) (connectors.Connector, error) {
		cfg, err := FromMap(config)
		if err != nil {
			return nil, err
		}
		return New(cfg)
	}

	connectors.Register(connectors.Registration{
		Info: connectors.ConnectorInfo{
			Type:        models.ServiceSQLServer,
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2016+",
		},
		Factory: factory,
	})
	connectors.Register(connectors.Registration{
		Info: connectors.ConnectorInfo{
			Type:        models.ServiceAzureSQL,
			DisplayName: "Azure SQL Database",
			Description: "Connect to Azure SQL over the SQL Server protocol",
		},
		Factory: factory,
	})
}
