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
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Sirene SireneConfig `yaml:"sirene" mapstructure:"sirene"`
	Search SearchConfig `yaml:"search" mapstructure:"search"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Import ImportConfig `yaml:"import" mapstructure:"import"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int    `yaml:"min_conns" mapstructure:"min_conns"`
}

// SireneConfig holds company registry API settings.
type SireneConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// MaxRequests per Window across every search in the process.
	MaxRequests int `yaml:"max_requests" mapstructure:"max_requests"`
	WindowSecs  int `yaml:"window_secs" mapstructure:"window_secs"`
}

// SearchConfig bounds the polygon and radius lookups.
type SearchConfig struct {
	MaxResults       int     `yaml:"max_results" mapstructure:"max_results"`
	MaxPolygonPoints int     `yaml:"max_polygon_points" mapstructure:"max_polygon_points"`
	MaxRadiusMeters  float64 `yaml:"max_radius_meters" mapstructure:"max_radius_meters"`
	EnrichmentCap    int     `yaml:"enrichment_cap" mapstructure:"enrichment_cap"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port    int      `yaml:"port" mapstructure:"port"`
	APIKeys []string `yaml:"api_keys" mapstructure:"api_keys"`
}

// ImportConfig configures the dataset importers.
type ImportConfig struct {
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
	BANBaseURL  string `yaml:"ban_base_url" mapstructure:"ban_base_url"`
	Parallelism int    `yaml:"parallelism" mapstructure:"parallelism"`
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
	v.SetEnvPrefix("CADASTRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("sirene.base_url", "https://api.registre-entreprises.fr/v3")
	v.SetDefault("sirene.max_requests", 30)
	v.SetDefault("sirene.window_secs", 1)
	v.SetDefault("search.max_results", 5000)
	v.SetDefault("search.max_polygon_points", 100)
	v.SetDefault("search.max_radius_meters", 50000)
	v.SetDefault("search.enrichment_cap", 100)
	v.SetDefault("server.port", 8080)
	v.SetDefault("import.temp_dir", "/tmp/cadastre")
	v.SetDefault("import.ban_base_url", "https://adresse.data.gouv.fr/data/ban/adresses/latest/csv")
	v.SetDefault("import.parallelism", 4)
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

// Validate checks that the configuration required by the given command mode
// is present. Modes: serve, migrate, import, search.
func (c *Config) Validate(mode string) error {
	var missing []string

	needDB := func() {
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
	}

	switch mode {
	case "serve":
		needDB()
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
		if len(c.Server.APIKeys) == 0 {
			missing = append(missing, "server.api_keys is required")
		}
	case "migrate", "import":
		needDB()
	case "search":
		needDB()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Search.MaxResults < 1 || c.Search.MaxResults > 5000 {
		missing = append(missing, "search.max_results must be between 1 and 5000")
	}
	if c.Sirene.MaxRequests <= 0 || c.Sirene.WindowSecs <= 0 {
		missing = append(missing, "sirene.max_requests and sirene.window_secs must be > 0")
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
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
