package objectstore

import (
	"context"

	"github.com/fathomdata/fathom-engine/pkg/connectors"
	"github.com/fathomdata/fathom-engine/pkg/models"
)

func init() {
	register := func(serviceType models.ServiceType, displayName, description string) {
		connectors.Register(connectors.Registration{
			Info: connectors.ConnectorInfo{
				Type:        serviceType,
				DisplayName: displayName,
				Description: description,
			},
			Factory: func(ctx context.Context, config map[string]string) (connectors.Connector, error) {
				cfg, err := FromMap(serviceType, config)
				if err != nil {
					return nil, err
				}
				return New(cfg)
			},
		})
	}

	register(models.ServiceS3, "Amazon S3", "CSV objects in an S3 bucket")
	register(models.ServiceGCS, "Google Cloud Storage", "CSV objects in a GCS bucket via the S3 API")
	register(models.ServiceADLS, "Azure Data Lake Storage", "CSV objects in an ADLS container via an S3 gateway")
}
