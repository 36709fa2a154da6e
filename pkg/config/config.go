// Package config provides the unified configuration system for atsync.
// A single RunConfig structure describes one migration run end to end:
// where the source snapshot comes from, which destination it is pushed to,
// how the shared transport throttles and retries, and how the upsert engine
// paces and bounds its work.
//
// Example usage:
//
//	cfg := config.NewRunConfig()
//	cfg.Destination.BaseURL = "https://api.example.test/v1"
//	cfg.Destination.Token = os.Getenv("DEST_TOKEN")
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"time"
)

// PaginationStyle selects how a source listing endpoint is traversed.
type PaginationStyle string

const (
	// PaginationPage walks page=1,2,3... until an empty page is returned
	PaginationPage PaginationStyle = "page"
	// PaginationCursor follows a next-cursor token until it is absent
	PaginationCursor PaginationStyle = "cursor"
)

// RunConfig is the configuration for one migration run.
type RunConfig struct {
	// RunID identifies the run in logs and reports; generated when empty
	RunID string `yaml:"run_id" json:"run_id"`

	Source        SourceConfig        `yaml:"source" json:"source"`
	Destination   DestinationConfig   `yaml:"destination" json:"destination"`
	Transport     TransportConfig     `yaml:"transport" json:"transport"`
	Engine        EngineConfig        `yaml:"engine" json:"engine"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// SourceConfig describes the source ATS export endpoints.
type SourceConfig struct {
	// Name is the source system tag used as the external-id prefix (e.g. "gh")
	Name string `yaml:"name" json:"name"`
	// BaseURL of the source REST API
	BaseURL string `yaml:"base_url" json:"base_url"`
	// APIKey for basic-auth access (key as username, empty password)
	APIKey string `yaml:"api_key" json:"api_key"`
	// Pagination selects page-number or cursor traversal
	Pagination PaginationStyle `yaml:"pagination" json:"pagination"`
	// PageSize is the per_page parameter for page-number pagination
	PageSize int `yaml:"page_size" json:"page_size"`
	// MaxPages caps traversal of a misbehaving endpoint (0 = unlimited)
	MaxPages int `yaml:"max_pages" json:"max_pages"`
	// SnapshotDir is where raw per-kind snapshot files are written/read
	SnapshotDir string `yaml:"snapshot_dir" json:"snapshot_dir"`
}

// DestinationConfig describes the destination ATS API.
type DestinationConfig struct {
	// Name is the destination system tag recorded in graph metadata
	Name string `yaml:"name" json:"name"`
	// BaseURL of the destination REST API
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Token for Authorization: Token token=... access
	Token string `yaml:"token" json:"token"`
	// APIVersion is sent as the X-Api-Version header
	APIVersion string `yaml:"api_version" json:"api_version"`
	// OAuth enables client-credentials auth instead of the static token
	OAuth OAuthConfig `yaml:"oauth" json:"oauth"`
	// CustomFieldMapPath points at the custom-field mapping JSON file
	CustomFieldMapPath string `yaml:"custom_field_map_path" json:"custom_field_map_path"`
}

// OAuthConfig holds optional OAuth2 client-credentials settings.
type OAuthConfig struct {
	Enabled      bool     `yaml:"enabled" json:"enabled"`
	TokenURL     string   `yaml:"token_url" json:"token_url"`
	ClientID     string   `yaml:"client_id" json:"client_id"`
	ClientSecret string   `yaml:"client_secret" json:"client_secret"`
	Scopes       []string `yaml:"scopes" json:"scopes"`
}

// TransportConfig controls throttling and retry behaviour of every HTTP call.
type TransportConfig struct {
	// RequestDelay is the minimum delay enforced before every call
	RequestDelay time.Duration `yaml:"request_delay" json:"request_delay"`
	// RequestTimeout bounds a single HTTP round trip
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	// RetryAttempts is the maximum attempts for 5xx/connection failures
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts"`
	// RetryDelay is the initial backoff delay, doubled each attempt
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	// MaxRetryDelay caps the backoff growth
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" json:"max_retry_delay"`
	// RateLimitRetries is the attempt budget for 429 responses
	RateLimitRetries int `yaml:"rate_limit_retries" json:"rate_limit_retries"`
	// RateLimitDelay is the base sleep after a 429 without a Retry-After header
	RateLimitDelay time.Duration `yaml:"rate_limit_delay" json:"rate_limit_delay"`
	// EnableHTTP2 switches the underlying transport to HTTP/2 where possible
	EnableHTTP2 bool `yaml:"enable_http2" json:"enable_http2"`
}

// EngineConfig controls the upsert engine.
type EngineConfig struct {
	// Workers bounds per-kind concurrent record processing (1 = sequential)
	Workers int `yaml:"workers" json:"workers"`
	// ItemDelay is a proactive pause after each record, on top of the
	// transport's own limiter, for destinations with a separate write quota
	ItemDelay time.Duration `yaml:"item_delay" json:"item_delay"`
	// KindLimits caps records processed per kind (testing aid; 0 = all)
	KindLimits map[string]int `yaml:"kind_limits" json:"kind_limits"`
	// DryRun suppresses all mutating calls while still producing a report
	DryRun bool `yaml:"dry_run" json:"dry_run"`
	// ReportDir is where per-kind run report files are written
	ReportDir string `yaml:"report_dir" json:"report_dir"`
	// GraphPath is the export graph file consumed and produced by the pipeline
	GraphPath string `yaml:"graph_path" json:"graph_path"`
}

// ObservabilityConfig contains logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel      string `yaml:"log_level" json:"log_level"`
	Development   bool   `yaml:"development" json:"development"`
	EnableMetrics bool   `yaml:"enable_metrics" json:"enable_metrics"`
	// MetricsAddr exposes the Prometheus endpoint when non-empty
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// NewRunConfig creates a RunConfig with production defaults.
func NewRunConfig() *RunConfig {
	return &RunConfig{
		Source: SourceConfig{
			Name:        "gh",
			Pagination:  PaginationPage,
			PageSize:    100,
			MaxPages:    1000,
			SnapshotDir: "data/snapshot",
		},
		Destination: DestinationConfig{
			Name:               "tt",
			APIVersion:         "20240904",
			CustomFieldMapPath: "data/custom_fields_mapping.json",
		},
		Transport: TransportConfig{
			RequestDelay:     200 * time.Millisecond,
			RequestTimeout:   30 * time.Second,
			RetryAttempts:    3,
			RetryDelay:       time.Second,
			MaxRetryDelay:    30 * time.Second,
			RateLimitRetries: 5,
			RateLimitDelay:   2 * time.Second,
			EnableHTTP2:      true,
		},
		Engine: EngineConfig{
			Workers:    1,
			KindLimits: make(map[string]int),
			ReportDir:  "data/reports",
			GraphPath:  "data/export_graph.json",
		},
		Observability: ObservabilityConfig{
			LogLevel:      "info",
			EnableMetrics: true,
		},
	}
}

// Validate checks required fields and value ranges.
func (rc *RunConfig) Validate() error {
	if rc.Source.Name == "" {
		return fmt.Errorf("source.name is required")
	}
	if rc.Destination.Name == "" {
		return fmt.Errorf("destination.name is required")
	}
	switch rc.Source.Pagination {
	case PaginationPage, PaginationCursor:
	default:
		return fmt.Errorf("source.pagination must be %q or %q", PaginationPage, PaginationCursor)
	}
	if rc.Source.PageSize <= 0 {
		return fmt.Errorf("source.page_size must be positive")
	}
	if rc.Source.MaxPages < 0 {
		return fmt.Errorf("source.max_pages cannot be negative")
	}
	if rc.Transport.RequestDelay < 0 {
		return fmt.Errorf("transport.request_delay cannot be negative")
	}
	if rc.Transport.RetryAttempts < 1 {
		return fmt.Errorf("transport.retry_attempts must be at least 1")
	}
	if rc.Transport.RateLimitRetries < 1 {
		return fmt.Errorf("transport.rate_limit_retries must be at least 1")
	}
	if rc.Engine.Workers < 1 {
		return fmt.Errorf("engine.workers must be at least 1")
	}
	if rc.Engine.ItemDelay < 0 {
		return fmt.Errorf("engine.item_delay cannot be negative")
	}
	for kind, limit := range rc.Engine.KindLimits {
		if limit < 0 {
			return fmt.Errorf("engine.kind_limits[%s] cannot be negative", kind)
		}
	}
	return nil
}

// KindLimit returns the record cap for a kind, 0 meaning unlimited.
func (ec *EngineConfig) KindLimit(kind string) int {
	if ec.KindLimits == nil {
		return 0
	}
	return ec.KindLimits[kind]
}
