package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Budget    BudgetConfig    `yaml:"budget" mapstructure:"budget"`
	Artifacts ArtifactsConfig `yaml:"artifacts" mapstructure:"artifacts"`
	Events    EventsConfig    `yaml:"events" mapstructure:"events"`
	Fetcher   FetcherConfig   `yaml:"fetcher" mapstructure:"fetcher"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// OpenAIConfig holds API credentials and the per-stage model identifiers.
type OpenAIConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	ExtractModel string `yaml:"extract_model" mapstructure:"extract_model"`
	ClusterModel string `yaml:"cluster_model" mapstructure:"cluster_model"`
	MergeModel   string `yaml:"merge_model" mapstructure:"merge_model"`
	FusionModel  string `yaml:"fusion_model" mapstructure:"fusion_model"`
}

// BudgetConfig configures the persisted external-call cap. MaxCalls 0 means
// unlimited.
type BudgetConfig struct {
	MaxCalls  int    `yaml:"max_calls" mapstructure:"max_calls"`
	StatePath string `yaml:"state_path" mapstructure:"state_path"`
}

// ArtifactsConfig configures where per-article artifacts are written.
type ArtifactsConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir"`
	Timezone  string `yaml:"timezone" mapstructure:"timezone"`
	Gazetteer string `yaml:"gazetteer" mapstructure:"gazetteer"`
}

// EventsConfig configures event clustering, merge, and fusion output.
type EventsConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	CacheDir string `yaml:"cache_dir" mapstructure:"cache_dir"`
}

// FetcherConfig configures article fetching.
type FetcherConfig struct {
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// BatchConfig configures batch extraction.
type BatchConfig struct {
	Size         int `yaml:"size" mapstructure:"size"`
	FetchWorkers int `yaml:"fetch_workers" mapstructure:"fetch_workers"`
}

// ReportConfig configures incident report generation.
type ReportConfig struct {
	PlannerModel  string `yaml:"planner_model" mapstructure:"planner_model"`
	WriterModel   string `yaml:"writer_model" mapstructure:"writer_model"`
	VerifierModel string `yaml:"verifier_model" mapstructure:"verifier_model"`
}

// StoreConfig configures the local artifact index.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ACCIDENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("openai.extract_model", "gpt-4o-mini")
	v.SetDefault("openai.cluster_model", "gpt-5-mini")
	v.SetDefault("openai.merge_model", "gpt-4o-mini")
	v.SetDefault("openai.fusion_model", "gpt-4o-mini")
	v.SetDefault("budget.max_calls", 0)
	v.SetDefault("budget.state_path", ".openai_calls.json")
	v.SetDefault("artifacts.dir", "artifacts")
	v.SetDefault("artifacts.timezone", "America/Vancouver")
	v.SetDefault("artifacts.gazetteer", "")
	v.SetDefault("events.dir", "events")
	v.SetDefault("events.cache_dir", ".")
	v.SetDefault("fetcher.timeout_secs", 15)
	v.SetDefault("fetcher.rate_per_second", 2.0)
	v.SetDefault("batch.size", 3)
	v.SetDefault("batch.fetch_workers", 4)
	v.SetDefault("report.planner_model", "gpt-5-mini")
	v.SetDefault("report.writer_model", "gpt-5")
	v.SetDefault("report.verifier_model", "gpt-5-mini")
	v.SetDefault("store.path", "artifacts.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks mode-specific invariants before a command runs. The LLM key
// is deliberately not required: every LLM path fails soft to deterministic
// behavior when it is absent.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "extract", "batch", "events", "report":
		if c.Batch.Size < 1 || c.Batch.Size > 20 {
			problems = append(problems, "batch.size must be between 1 and 20")
		}
		if c.Budget.MaxCalls < 0 {
			problems = append(problems, "budget.max_calls must be >= 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Fetcher.TimeoutSecs <= 0 {
		problems = append(problems, "fetcher.timeout_secs must be > 0")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
