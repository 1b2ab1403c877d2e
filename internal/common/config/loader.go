// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderHTTP   = "http"
	ProviderGemini = "gemini"

	EmbedReference = "reference"
	EmbedInline    = "inline"

	SinkFile          = "file"
	SinkRedis         = "redis"
	SinkPostgres      = "postgres"
	SinkElasticsearch = "elasticsearch"

	TraceExporterNone = "none"
	TraceExporterLog  = "log"
)

// Load reads configs/config.yaml merged with config.<APP_ENVIRONMENT>.yaml.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars replaces ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.Generation.APIKey == "" {
		if val := os.Getenv("GENERATION_API_KEY"); val != "" {
			cfg.Generation.APIKey = val
		} else if val := os.Getenv("GEMINI_API_KEY"); val != "" && cfg.Generation.Provider == ProviderGemini {
			cfg.Generation.APIKey = val
		}
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "prompt-dispatcher"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 5
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 120000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = ProviderHTTP
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 60000
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 2048
	}
	if cfg.Generation.Model == "" && cfg.Generation.Provider == ProviderGemini {
		cfg.Generation.Model = "gemini-2.0-flash"
	}

	if cfg.Dataset.BaseDir == "" {
		cfg.Dataset.BaseDir = "."
	}
	if cfg.Dataset.EmbedMode == "" {
		cfg.Dataset.EmbedMode = EmbedReference
	}

	if len(cfg.Capture.Sinks) == 0 {
		cfg.Capture.Sinks = []string{SinkFile}
	}
	if cfg.Capture.OutputDir == "" {
		cfg.Capture.OutputDir = "responses"
	}
	if cfg.Capture.Index == "" {
		cfg.Capture.Index = "captured-responses"
	}
	if cfg.Capture.Table == "" {
		cfg.Capture.Table = "captured_responses"
	}
	if cfg.Capture.KeyPrefix == "" {
		cfg.Capture.KeyPrefix = "responses"
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 50
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":9090"
	}

	if cfg.Tracing.Exporter == "" {
		cfg.Tracing.Exporter = TraceExporterNone
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = cfg.Camunda.MaxJobsActive
		}
		if worker.Timeout == 0 {
			worker.Timeout = cfg.Camunda.Timeout
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	switch cfg.Generation.Provider {
	case ProviderHTTP:
		if cfg.Generation.BaseURL == "" {
			return fmt.Errorf("generation.base_url is required for the http provider")
		}
	case ProviderGemini:
		if cfg.Generation.APIKey == "" {
			return fmt.Errorf("generation.api_key is required for the gemini provider")
		}
	default:
		return fmt.Errorf("generation.provider %q is not supported", cfg.Generation.Provider)
	}

	switch cfg.Dataset.EmbedMode {
	case EmbedReference, EmbedInline:
	default:
		return fmt.Errorf("dataset.embed_mode %q is not supported", cfg.Dataset.EmbedMode)
	}

	switch cfg.Tracing.Exporter {
	case TraceExporterNone, TraceExporterLog:
	default:
		return fmt.Errorf("tracing.exporter %q is not supported", cfg.Tracing.Exporter)
	}

	for _, sink := range cfg.Capture.Sinks {
		switch sink {
		case SinkFile:
		case SinkRedis:
			if cfg.Database.Redis.Address == "" {
				return fmt.Errorf("database.redis.address is required for the redis sink")
			}
		case SinkPostgres:
			pg := cfg.Database.Postgres
			if pg.Host == "" || pg.Database == "" || pg.User == "" {
				return fmt.Errorf("database.postgres.host, database and user are required for the postgres sink")
			}
		case SinkElasticsearch:
			if cfg.Database.Elasticsearch.GetURL() == "" {
				return fmt.Errorf("database.elasticsearch.addresses or url is required for the elasticsearch sink")
			}
		default:
			return fmt.Errorf("capture sink %q is not supported", sink)
		}
	}

	return nil
}

// ValidateWorker checks the settings only the Zeebe worker mode needs.
func ValidateWorker(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: cfg.Camunda.MaxJobsActive,
		Timeout:       cfg.Camunda.Timeout,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
