// Package config resolves the sink configuration surface: destination
// identifiers, credential material and backend selection, from environment
// variables with an optional YAML profile overlay on top.
package config

import "os"

// Backend selectors.
const (
	TabularSheets   = "sheets"
	TabularSQLite   = "sqlite"
	TabularPostgres = "postgres"
	TabularNone     = "none"

	BlobGCS  = "gcs"
	BlobS3   = "s3"
	BlobFS   = "fs"
	BlobNone = "none"
)

// Config holds everything the sinks need. Zero values mean "not configured";
// the dispatcher reports unconfigured backends as unavailable rather than
// failing the session.
type Config struct {
	TabularBackend string `yaml:"tabular_backend"`
	BlobBackend    string `yaml:"blob_backend"`

	SpreadsheetID   string `yaml:"spreadsheet_id"`
	WorksheetName   string `yaml:"worksheet_name"`
	CredentialsJSON string `yaml:"credentials_json"`

	GCSBucket string `yaml:"gcs_bucket"`
	S3Bucket  string `yaml:"s3_bucket"`
	S3Region  string `yaml:"s3_region"`
	S3Endpoint string `yaml:"s3_endpoint"`

	DatabaseURL string `yaml:"database_url"`
	DataDir     string `yaml:"data_dir"`

	LogLevel string `yaml:"log_level"`
}

// Load reads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		TabularBackend:  os.Getenv("INTAKE_TABULAR_BACKEND"),
		BlobBackend:     os.Getenv("INTAKE_BLOB_BACKEND"),
		SpreadsheetID:   os.Getenv("INTAKE_SPREADSHEET_ID"),
		WorksheetName:   os.Getenv("INTAKE_WORKSHEET_NAME"),
		CredentialsJSON: os.Getenv("INTAKE_CREDENTIALS_JSON"),
		GCSBucket:       os.Getenv("INTAKE_GCS_BUCKET"),
		S3Bucket:        os.Getenv("INTAKE_S3_BUCKET"),
		S3Region:        os.Getenv("INTAKE_S3_REGION"),
		S3Endpoint:      os.Getenv("INTAKE_S3_ENDPOINT"),
		DatabaseURL:     os.Getenv("INTAKE_DATABASE_URL"),
		DataDir:         os.Getenv("INTAKE_DATA_DIR"),
		LogLevel:        os.Getenv("INTAKE_LOG_LEVEL"),
	}

	if cfg.TabularBackend == "" {
		cfg.TabularBackend = TabularSheets
	}
	if cfg.BlobBackend == "" {
		cfg.BlobBackend = BlobGCS
	}
	if cfg.WorksheetName == "" {
		cfg.WorksheetName = "responses"
	}
	if cfg.S3Region == "" {
		cfg.S3Region = os.Getenv("AWS_REGION")
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "INFO"
	}
	return cfg
}
