// Package config provides centralized configuration management for the
// application. It loads configuration from environment variables with
// sensible defaults and validates all settings on startup to fail fast
// on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	DHIS     DHISConfig
	Files    FilesConfig
	Import   ImportConfig
	Database DatabaseConfig
	Funsoft  FunsoftConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DHISConfig holds settings for the target DHIS2 instance.
type DHISConfig struct {
	// BaseURL is the DHIS2 API root, e.g. https://dhis.example.org/api (required)
	BaseURL string `env:"DHIS_BASE_URL" required:"true"`

	// Username and Password are sent as basic auth on every call.
	Username string `env:"DHIS_USERNAME" required:"true"`
	Password string `env:"DHIS_PASSWORD" required:"true"`

	// Timeout is the per-request HTTP client timeout (default: 30s)
	Timeout time.Duration `env:"DHIS_TIMEOUT" default:"30s"`

	// TrackedEntityType is the tracked entity type id records are created as.
	TrackedEntityType string `env:"DHIS_TRACKED_ENTITY_TYPE" default:"JySrDBa5jo9"`

	// OrgUnit is the organisation unit id all records belong to.
	OrgUnit string `env:"DHIS_ORG_UNIT" default:"p3FIxnPMytB"`

	// Program and ProgramStage identify the WHONET tracker program.
	Program      string `env:"DHIS_PROGRAM" default:"NsCjUPcSGtw"`
	ProgramStage string `env:"DHIS_PROGRAM_STAGE" default:"KigPnQvLuxo"`

	// Data element ids carried on susceptibility events.
	TestTypeElement   string `env:"DHIS_TEST_TYPE_ELEMENT" default:"H0FRaMFRtcz"`
	AntibioticElement string `env:"DHIS_ANTIBIOTIC_ELEMENT" default:"tbRd9RMZfqO"`
	AwareElement      string `env:"DHIS_AWARE_ELEMENT" default:"i9FSMauzfg6"`
	ResultElement     string `env:"DHIS_RESULT_ELEMENT" default:"yGi5SDmloeh"`

	// DataStoreKey is the datastore document path holding batch summaries.
	DataStoreKey string `env:"DHIS_DATASTORE_KEY" default:"dataStore/findams/batchSummaries"`
}

// FilesConfig holds inbound/processed directories and reference files.
type FilesConfig struct {
	// InboundDir is scanned for WHONET exports (default: whonet)
	InboundDir string `env:"FILES_INBOUND_DIR" default:"whonet"`

	// ProcessedDir receives files after a successful submission (default: processed)
	ProcessedDir string `env:"FILES_PROCESSED_DIR" default:"processed"`

	// AwarePath is the static AWaRe classification reference (default: tests/aware.json)
	AwarePath string `env:"FILES_AWARE_PATH" default:"tests/aware.json"`

	// AtcDddPath is the static ATC-to-DDD reference used by the
	// consumption trigger (default: tests/atc_ddd.json)
	AtcDddPath string `env:"FILES_ATC_DDD_PATH" default:"tests/atc_ddd.json"`
}

// ImportConfig holds pipeline behaviour settings.
type ImportConfig struct {
	// ScanInterval is how often the inbound directory is scanned (default: 2m)
	ScanInterval time.Duration `env:"IMPORT_SCAN_INTERVAL" default:"2m"`

	// MaxInFlight bounds concurrent per-record submission chains (default: 4)
	MaxInFlight int `env:"IMPORT_MAX_IN_FLIGHT" default:"4"`

	// ASTRangeStart and ASTRangeEnd name the first and last antibiotic
	// result columns scanned for susceptibility results. The scan
	// boundary is deliberately configuration, not inferred from headers.
	ASTRangeStart string `env:"IMPORT_AST_RANGE_START" default:"PIP_ND100"`
	ASTRangeEnd   string `env:"IMPORT_AST_RANGE_END" default:"PEN_NE"`
}

// DatabaseConfig holds the optional local batch audit database.
// When URL is empty the Postgres audit store is disabled and batch
// summaries live only in the DHIS2 datastore.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 5)
	MaxConns int `env:"DB_MAX_CONNS" default:"5"`
}

// FunsoftConfig holds the optional antimicrobial-consumption feeds.
// When AmuURL is empty the consumption trigger is disabled.
type FunsoftConfig struct {
	// AmuURL is the antibiotic prescriptions feed endpoint.
	AmuURL string `env:"FUNSOFT_AMU_URL"`

	// AmcURL is the daily admissions feed endpoint.
	AmcURL string `env:"FUNSOFT_AMC_URL"`

	// Timeout is the per-request feed client timeout (default: 30s)
	Timeout time.Duration `env:"FUNSOFT_TIMEOUT" default:"30s"`
}

// SecurityConfig holds API authentication settings. With RequireAPIKey
// off the import endpoints are open; sites exposing the server beyond
// the lab network set a key list.
type SecurityConfig struct {
	// RequireAPIKey enables X-API-Key validation on the API routes (default: false)
	RequireAPIKey bool `env:"SECURITY_REQUIRE_API_KEY" default:"false"`

	// APIKeys is the comma-separated list of accepted keys.
	APIKeys []string `env:"SECURITY_API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
