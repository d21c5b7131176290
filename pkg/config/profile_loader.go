package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadWithProfile loads the environment configuration and, when path is
// non-empty, overlays a YAML profile on top. Profile values win over env
// values; empty profile fields leave the env value in place.
func LoadWithProfile(path string) (*Config, error) {
	cfg := Load()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("config: read profile %s: %w", path, err)
	}

	var profile Config
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("config: parse profile %s: %w", path, err)
	}

	overlay(cfg, &profile)
	return cfg, nil
}

func overlay(dst, src *Config) {
	fields := []struct{ d, s *string }{
		{&dst.TabularBackend, &src.TabularBackend},
		{&dst.BlobBackend, &src.BlobBackend},
		{&dst.SpreadsheetID, &src.SpreadsheetID},
		{&dst.WorksheetName, &src.WorksheetName},
		{&dst.CredentialsJSON, &src.CredentialsJSON},
		{&dst.GCSBucket, &src.GCSBucket},
		{&dst.S3Bucket, &src.S3Bucket},
		{&dst.S3Region, &src.S3Region},
		{&dst.S3Endpoint, &src.S3Endpoint},
		{&dst.DatabaseURL, &src.DatabaseURL},
		{&dst.DataDir, &src.DataDir},
		{&dst.LogLevel, &src.LogLevel},
	}
	for _, f := range fields {
		if *f.s != "" {
			*f.d = *f.s
		}
	}
}
