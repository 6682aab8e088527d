package mssql

import (
	"fmt"
	"strconv"
)

// Config contains SQL Server and Azure SQL connection options.
type Config struct {
	Server   string
	Port     int
	Database string
	Username string
	Password string

	Encrypt                bool
	TrustServerCertificate bool
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// FromMap creates a Config from a decrypted linked service config.
func FromMap(config map[string]string) (*Config, error) {
	cfg := &Config{
		Port:    DefaultPort(),
		Encrypt: true,
	}

	if server, ok := config["server"]; ok && server != "" {
		cfg.Server = server
	} else {
		return nil, fmt.Errorf("server is required")
	}

	if port, ok := config["port"]; ok && port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("port must be a number: %w", err)
		}
		cfg.Port = n
	}

	if database, ok := config["database"]; ok && database != "" {
		cfg.Database = database
	} else {
		return nil, fmt.Errorf("database is required")
	}

	if username, ok := config["username"]; ok && username != "" {
		cfg.Username = username
	} else {
		return nil, fmt.Errorf("username is required")
	}

	cfg.Password = config["password"]

	if v, ok := config["encrypt"]; ok {
		cfg.Encrypt = v != "false"
	}
	if v, ok := config["trust_server_certificate"]; ok {
		cfg.TrustServerCertificate = v == "true"
	}

	return cfg, nil
}
