package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// StorageConfig selects the durable key-value backend used by the client
// stores. Driver is one of memory, file, sqlite, redis, postgres or s3.
type StorageConfig struct {
	Driver string
	Path   string
	Prefix string
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type SessionConfig struct {
	AdminEmail  string
	ExpiryCheck string
}

type CartConfig struct {
	Strict bool
}

type SecurityConfig struct {
	JWTSecret string
	JWTTTL    time.Duration
}

type BackendConfig struct {
	Repository string
}

type AppConfig struct {
	Environment      string
	API              APIConfig
	Session          SessionConfig
	Cart             CartConfig
	Storage          StorageConfig
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	ObjectStore      ObjectStoreConfig
	Security         SecurityConfig
	Backend          BackendConfig
	AllowCORSOrigins []string
}

// Load reads config.yaml from the usual search paths (or configFile when
// given), overlays STOREFRONT_* environment variables and applies defaults.
func Load(configFile string) (*AppConfig, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.storefront")
	}

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("api.baseurl", "http://127.0.0.1:8080")
	v.SetDefault("api.timeout", "15s")

	v.SetDefault("session.adminemail", "admin@example.com")
	v.SetDefault("session.expirycheck", "@every 1m")

	v.SetDefault("cart.strict", false)

	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.path", "storefront-state.json")
	v.SetDefault("storage.prefix", "storefront:")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 10)
	v.SetDefault("postgres.maxidle", 2)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("objectstore.bucket", "storefront-state")
	v.SetDefault("objectstore.usessl", false)
	v.SetDefault("objectstore.region", "us-east-1")

	v.SetDefault("security.jwtsecret", "change-me")
	v.SetDefault("security.jwtttl", "24h")

	v.SetDefault("backend.repository", "memory")
}
