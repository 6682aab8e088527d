package mysql

import (
	"fmt"
	"strconv"
)

// Config contains MySQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	TLS      string // "true", "false", "skip-verify", "preferred"
}

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// FromMap creates a Config from a decrypted linked service config.
func FromMap(config map[string]string) (*Config, error) {
	cfg := &Config{
		Port: DefaultPort(),
		TLS:  "preferred",
	}

	if host, ok := config["host"]; ok && host != "" {
		cfg.Host = host
	} else {
		return nil, fmt.Errorf("host is required")
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

	if tls, ok := config["tls"]; ok && tls != "" {
		cfg.TLS = tls
	}

	return cfg, nil
}
