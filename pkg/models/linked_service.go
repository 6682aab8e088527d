package models

import (
	"time"

	"github.com/google/uuid"
)

// ServiceType identifies the kind of external system a linked service
// connects to.
type ServiceType string

const (
	ServicePostgreSQL ServiceType = "postgresql"
	ServiceMySQL      ServiceType = "mysql"
	ServiceSQLServer  ServiceType = "sql_server"
	ServiceAzureSQL   ServiceType = "azure_sql"
	ServiceBigQuery   ServiceType = "bigquery"
	ServiceS3         ServiceType = "s3"
	ServiceGCS        ServiceType = "gcs"
	ServiceADLS       ServiceType = "adls"
)

// ValidServiceTypes contains all supported service types.
var ValidServiceTypes = []ServiceType{
	ServicePostgreSQL,
	ServiceMySQL,
	ServiceSQLServer,
	ServiceAzureSQL,
	ServiceBigQuery,
	ServiceS3,
	ServiceGCS,
	ServiceADLS,
}

// IsValidServiceType checks if the given type is supported.
func IsValidServiceType(t ServiceType) bool {
	for _, v := range ValidServiceTypes {
		if v == t {
			return true
		}
	}
	return false
}

// RequiredConfigKeys maps each service type to the connection config keys
// it cannot work without. Optional keys (ssl modes, endpoints, ports with
// defaults) are not listed.
var RequiredConfigKeys = map[ServiceType][]string{
	ServicePostgreSQL: {"host", "port", "database", "username", "password"},
	ServiceMySQL:      {"host", "port", "database", "username", "password"},
	ServiceSQLServer:  {"server", "database", "username", "password"},
	ServiceAzureSQL:   {"server", "database", "username", "password"},
	ServiceBigQuery:   {"project_id", "dataset_id", "credentials_json"},
	ServiceS3:         {"bucket", "access_key", "secret_key"},
	ServiceGCS:        {"bucket", "access_key", "secret_key"},
	ServiceADLS:       {"container", "access_key", "secret_key"},
}

// LinkedService is a reusable named connection descriptor for an external
// data system. The Config map is encrypted at rest by the service layer;
// it is immutable once referenced by a dataset except for credential
// rotation via Update.
type LinkedService struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	ServiceType ServiceType       `json:"service_type"`
	Config      map[string]string `json:"connection_config"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ConnectionTestResult is the outcome of a connectivity probe. Probes
// never fail the calling operation; failures land in Message.
type ConnectionTestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
