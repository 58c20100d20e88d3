// Package config provides configuration loading and management for the sync service.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stitchflow-website/dirsync/internal/status"
	"github.com/stitchflow-website/dirsync/internal/telemetry"
)

// EnvPrefix is the prefix of every environment variable read by the service
const EnvPrefix = "DIRSYNC"

const (
	// StorageTypeMemory keeps runs, entities and stage tasks in process memory
	StorageTypeMemory = "memory"

	// StorageTypeDatabase keeps everything in PostgreSQL
	StorageTypeDatabase = "database"
)

const (
	// DispatchModeQueue hands stages off by enqueueing a task directly
	DispatchModeQueue = "queue"

	// DispatchModeHTTP hands stages off through the internal stage endpoint
	DispatchModeHTTP = "http"
)

const (
	// DefaultProviderBaseURL is the directory API the provider client talks to
	DefaultProviderBaseURL = "https://admin.googleapis.com"

	// DefaultProviderTokenURL is the OAuth2 endpoint used to refresh access tokens
	DefaultProviderTokenURL = "https://oauth2.googleapis.com/token"

	defaultPageSize          = 500
	defaultRequestsPerSecond = 10
	defaultMaxRetries        = 2
	defaultConcurrency       = 8
	defaultProviderTimeout   = 30 * time.Second

	defaultWorkers       = 4
	defaultStageTimeout  = 4 * time.Minute
	defaultQueueCapacity = 1000
	defaultLease         = 5 * time.Minute
	defaultPollInterval  = time.Second
	defaultDispatchCall  = 10 * time.Second
)

// StageSettleTime is what a stage may spend after its timeout recording its
// outcome and acknowledging its task
const StageSettleTime = 20 * time.Second

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Storage   StorageConfig     `yaml:"storage"`
	Database  *DatabaseConfig   `yaml:"database,omitempty"`
	Provider  ProviderConfig    `yaml:"provider"`
	Pipeline  PipelineConfig    `yaml:"pipeline"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// StorageConfig selects where runs, entities and stage tasks are kept
type StorageConfig struct {
	// Type is either "memory" or "database"; defaults to "memory"
	Type string `yaml:"type,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the minimum number of connections kept open in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from DIRSYNC_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(EnvPrefix + "_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s_DATABASE_PASSWORD environment variable", EnvPrefix,
	)
}

// GetConnectionString builds a PostgreSQL connection URL with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// ProviderConfig holds the settings of the directory provider client
type ProviderConfig struct {
	// BaseURL is the root of the directory API
	BaseURL string `yaml:"baseURL,omitempty"`

	// TokenURL is the OAuth2 token endpoint used for refreshes
	TokenURL string `yaml:"tokenURL,omitempty"`

	// ClientID is the OAuth2 client the refresh tokens were issued to
	ClientID string `yaml:"clientID,omitempty"`

	// ClientSecretFile points at a file holding the OAuth2 client secret
	ClientSecretFile string `yaml:"clientSecretFile,omitempty"`

	// PageSize is the maxResults value sent on paginated calls
	PageSize int `yaml:"pageSize,omitempty"`

	// RequestsPerSecond caps the outbound call rate of one process
	RequestsPerSecond int `yaml:"requestsPerSecond,omitempty"`

	// MaxRetries bounds retries of transient failures; 0 disables retrying
	MaxRetries *int `yaml:"maxRetries,omitempty"`

	// Concurrency bounds the number of per-user calls in flight
	Concurrency int `yaml:"concurrency,omitempty"`

	// Timeout is the per-request timeout (e.g. "30s")
	Timeout string `yaml:"timeout,omitempty"`
}

// GetBaseURL returns the configured base URL or the default one
func (p *ProviderConfig) GetBaseURL() string {
	if p.BaseURL == "" {
		return DefaultProviderBaseURL
	}
	return strings.TrimRight(p.BaseURL, "/")
}

// GetTokenURL returns the configured token URL or the default one
func (p *ProviderConfig) GetTokenURL() string {
	if p.TokenURL == "" {
		return DefaultProviderTokenURL
	}
	return p.TokenURL
}

// GetClientSecret reads the OAuth2 client secret from ClientSecretFile, falling back to
// the DIRSYNC_PROVIDER_CLIENT_SECRET environment variable. An empty secret is allowed;
// refreshes will then be rejected by the token endpoint.
func (p *ProviderConfig) GetClientSecret() (string, error) {
	if p.ClientSecretFile != "" {
		data, err := os.ReadFile(filepath.Clean(p.ClientSecretFile))
		if err != nil {
			return "", fmt.Errorf("failed to read client secret from file %s: %w", p.ClientSecretFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return os.Getenv(EnvPrefix + "_PROVIDER_CLIENT_SECRET"), nil
}

// GetPageSize returns the page size, defaulting to 500
func (p *ProviderConfig) GetPageSize() int {
	if p.PageSize <= 0 {
		return defaultPageSize
	}
	return p.PageSize
}

// GetRequestsPerSecond returns the outbound rate limit
func (p *ProviderConfig) GetRequestsPerSecond() int {
	if p.RequestsPerSecond <= 0 {
		return defaultRequestsPerSecond
	}
	return p.RequestsPerSecond
}

// GetMaxRetries returns the retry bound; an explicit 0 is honored
func (p *ProviderConfig) GetMaxRetries() int {
	if p.MaxRetries == nil {
		return defaultMaxRetries
	}
	return *p.MaxRetries
}

// GetConcurrency returns the fan-out bound
func (p *ProviderConfig) GetConcurrency() int {
	if p.Concurrency <= 0 {
		return defaultConcurrency
	}
	return p.Concurrency
}

// GetTimeout returns the per-request timeout
func (p *ProviderConfig) GetTimeout() time.Duration {
	return durationOrDefault(p.Timeout, defaultProviderTimeout)
}

// PipelineConfig controls stage execution, hand-off and staleness detection
type PipelineConfig struct {
	// Workers is the number of concurrent stage consumers
	Workers int `yaml:"workers,omitempty"`

	// StageTimeout is the execution ceiling of one stage (e.g. "4m")
	StageTimeout string `yaml:"stageTimeout,omitempty"`

	// PartialAfter is the idle time after which a run parked at a checkpoint is partial
	PartialAfter string `yaml:"partialAfter,omitempty"`

	// FailAfter is the idle time after which an in-progress run is failed
	FailAfter string `yaml:"failAfter,omitempty"`

	Dispatch DispatchConfig `yaml:"dispatch,omitempty"`
	Queue    QueueConfig    `yaml:"queue,omitempty"`
}

// DispatchConfig selects how one stage hands off to the next
type DispatchConfig struct {
	// Mode is "queue" (default) or "http"
	Mode string `yaml:"mode,omitempty"`

	// InternalURL is the base URL of the stage hand-off endpoint, required in http mode
	InternalURL string `yaml:"internalURL,omitempty"`

	// Timeout bounds the hand-off call in http mode
	Timeout string `yaml:"timeout,omitempty"`
}

// QueueConfig tunes the stage task queue
type QueueConfig struct {
	// Capacity is the maximum number of pending tasks; 0 uses the default
	Capacity int `yaml:"capacity,omitempty"`

	// LeaseDuration is how long a dequeued task stays invisible to other workers
	LeaseDuration string `yaml:"leaseDuration,omitempty"`

	// PollInterval is how often an idle database queue is polled
	PollInterval string `yaml:"pollInterval,omitempty"`
}

// GetWorkers returns the number of stage consumers
func (p *PipelineConfig) GetWorkers() int {
	if p.Workers <= 0 {
		return defaultWorkers
	}
	return p.Workers
}

// GetStageTimeout returns the per-stage execution ceiling
func (p *PipelineConfig) GetStageTimeout() time.Duration {
	return durationOrDefault(p.StageTimeout, defaultStageTimeout)
}

// GetStalenessPolicy builds the staleness thresholds from the configuration
func (p *PipelineConfig) GetStalenessPolicy() status.StalenessPolicy {
	policy := status.DefaultStalenessPolicy()
	policy.PartialAfter = durationOrDefault(p.PartialAfter, status.DefaultPartialAfter)
	policy.FailAfter = durationOrDefault(p.FailAfter, status.DefaultFailAfter)
	return policy
}

// GetDispatchMode returns the hand-off mode, defaulting to queue
func (p *PipelineConfig) GetDispatchMode() string {
	if p.Dispatch.Mode == "" {
		return DispatchModeQueue
	}
	return p.Dispatch.Mode
}

// GetDispatchTimeout returns the timeout of an http hand-off call
func (p *PipelineConfig) GetDispatchTimeout() time.Duration {
	return durationOrDefault(p.Dispatch.Timeout, defaultDispatchCall)
}

// GetQueueCapacity returns the maximum number of pending stage tasks
func (p *PipelineConfig) GetQueueCapacity() int {
	if p.Queue.Capacity <= 0 {
		return defaultQueueCapacity
	}
	return p.Queue.Capacity
}

// GetLeaseDuration returns the visibility timeout of a dequeued task
func (p *PipelineConfig) GetLeaseDuration() time.Duration {
	return durationOrDefault(p.Queue.LeaseDuration, defaultLease)
}

// GetPollInterval returns the idle poll interval of the database queue
func (p *PipelineConfig) GetPollInterval() time.Duration {
	return durationOrDefault(p.Queue.PollInterval, defaultPollInterval)
}

// GetStorageType returns the storage type, defaulting to memory
func (c *Config) GetStorageType() string {
	if c.Storage.Type == "" {
		return StorageTypeMemory
	}
	return c.Storage.Type
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	switch c.GetStorageType() {
	case StorageTypeMemory:
	case StorageTypeDatabase:
		if c.Database == nil {
			return fmt.Errorf("storage.type %q requires a database section", StorageTypeDatabase)
		}
		if err := c.Database.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage.type must be one of %q or %q, got %q",
			StorageTypeMemory, StorageTypeDatabase, c.Storage.Type)
	}

	if err := c.Provider.validate(); err != nil {
		return err
	}

	if err := c.Pipeline.validate(); err != nil {
		return err
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

func (d *DatabaseConfig) validate() error {
	if d.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if d.Port <= 0 {
		return fmt.Errorf("database.port is required")
	}
	if d.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if d.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	if d.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(d.ConnMaxLifetime); err != nil {
			return fmt.Errorf("database.connMaxLifetime: %w", err)
		}
	}
	return nil
}

func (p *ProviderConfig) validate() error {
	for field, raw := range map[string]string{"provider.baseURL": p.BaseURL, "provider.tokenURL": p.TokenURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", field, raw)
		}
	}
	if p.MaxRetries != nil && *p.MaxRetries < 0 {
		return fmt.Errorf("provider.maxRetries cannot be negative")
	}
	return validateDuration("provider.timeout", p.Timeout)
}

func (p *PipelineConfig) validate() error {
	fields := map[string]string{
		"pipeline.stageTimeout":        p.StageTimeout,
		"pipeline.partialAfter":        p.PartialAfter,
		"pipeline.failAfter":           p.FailAfter,
		"pipeline.dispatch.timeout":    p.Dispatch.Timeout,
		"pipeline.queue.leaseDuration": p.Queue.LeaseDuration,
		"pipeline.queue.pollInterval":  p.Queue.PollInterval,
	}
	for field, raw := range fields {
		if err := validateDuration(field, raw); err != nil {
			return err
		}
	}

	policy := p.GetStalenessPolicy()
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("pipeline staleness: %w", err)
	}

	// A stage still inside its timeout must not be declared dead by a poller.
	if p.GetStageTimeout() >= policy.FailAfter {
		return fmt.Errorf("pipeline.stageTimeout (%s) must be shorter than pipeline.failAfter (%s)",
			p.GetStageTimeout(), policy.FailAfter)
	}

	// A task leased to a running stage must not be redelivered to another worker.
	if minLease := p.GetStageTimeout() + StageSettleTime; p.GetLeaseDuration() <= minLease {
		return fmt.Errorf("pipeline.queue.leaseDuration (%s) must be longer than pipeline.stageTimeout plus %s (%s)",
			p.GetLeaseDuration(), StageSettleTime, minLease)
	}

	switch p.GetDispatchMode() {
	case DispatchModeQueue:
	case DispatchModeHTTP:
		if p.Dispatch.InternalURL == "" {
			return fmt.Errorf("pipeline.dispatch.internalURL is required in %q mode", DispatchModeHTTP)
		}
		if _, err := url.ParseRequestURI(p.Dispatch.InternalURL); err != nil {
			return fmt.Errorf("pipeline.dispatch.internalURL: %w", err)
		}
	default:
		return fmt.Errorf("pipeline.dispatch.mode must be one of %q or %q, got %q",
			DispatchModeQueue, DispatchModeHTTP, p.Dispatch.Mode)
	}

	return nil
}

func validateDuration(field, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, raw)
	}
	return nil
}

// durationOrDefault parses raw, falling back to def when it is empty or invalid.
// Invalid values are rejected by validate before this is reached.
func durationOrDefault(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
