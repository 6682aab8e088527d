package objectstore

import (
	"fmt"

	"github.com/fathomdata/fathom-engine/pkg/models"
)

// Config contains object store connection options. S3, GCS and ADLS are
// all reached over the S3-compatible API.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

func defaultEndpoint(serviceType models.ServiceType) string {
	switch serviceType {
	case models.ServiceS3:
		return "s3.amazonaws.com"
	case models.ServiceGCS:
		return "storage.googleapis.com"
	default:
		return ""
	}
}

// FromMap creates a Config from a decrypted linked service config. ADLS
// configs name the bucket "container" and must provide an endpoint.
func FromMap(serviceType models.ServiceType, config map[string]string) (*Config, error) {
	cfg := &Config{
		Endpoint: defaultEndpoint(serviceType),
		UseSSL:   true,
	}

	bucketKey := "bucket"
	if serviceType == models.ServiceADLS {
		bucketKey = "container"
	}
	if bucket, ok := config[bucketKey]; ok && bucket != "" {
		cfg.Bucket = bucket
	} else {
		return nil, fmt.Errorf("%s is required", bucketKey)
	}

	if accessKey, ok := config["access_key"]; ok && accessKey != "" {
		cfg.AccessKey = accessKey
	} else {
		return nil, fmt.Errorf("access_key is required")
	}

	if secretKey, ok := config["secret_key"]; ok && secretKey != "" {
		cfg.SecretKey = secretKey
	} else {
		return nil, fmt.Errorf("secret_key is required")
	}

	if endpoint, ok := config["endpoint"]; ok && endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}

	cfg.Region = config["region"]

	if v, ok := config["use_ssl"]; ok {
		cfg.UseSSL = v != "false"
	}

	return cfg, nil
}
