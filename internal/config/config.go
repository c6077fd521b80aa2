package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/weiawesome/chat-client/pkg/config"
	"github.com/weiawesome/chat-client/pkg/log"
)

type Config struct {
	API     APIConfig
	Mirror  MirrorConfig
	Log     log.Config
	FakeAPI FakeAPIConfig `mapstructure:"fakeapi"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MirrorConfig selects where the session snapshot and anti-forgery token
// survive between runs.
type MirrorConfig struct {
	Driver   string `mapstructure:"driver"` // memory, file, redis, sqlite, postgres, mysql
	File     FileConfig
	Redis    RedisConfig
	Database DatabaseConfig
}

type FileConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	FilePath string `mapstructure:"file_path"`
}

type FakeAPIConfig struct {
	Host        string
	Port        int
	TokenSecret string        `mapstructure:"token_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
}

// Load reads ./config/config.yaml (optional) plus environment overrides.
func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}
	return build(v)
}

// LoadFile reads an explicit config file plus environment overrides.
func LoadFile(path string) (*Config, error) {
	v, err := pkgconfig.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return build(v)
}

func build(v *viper.Viper) (*Config, error) {
	// Set defaults
	v.SetDefault("api.base_url", "http://localhost:5000/api/")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("mirror.driver", "file")
	v.SetDefault("mirror.file.path", "./data/session")
	v.SetDefault("mirror.redis.address", "localhost:6379")
	v.SetDefault("mirror.redis.password", "")
	v.SetDefault("mirror.redis.db", 0)
	v.SetDefault("mirror.redis.prefix", "chat-client")
	v.SetDefault("mirror.database.host", "localhost")
	v.SetDefault("mirror.database.port", 5432)
	v.SetDefault("mirror.database.user", "postgres")
	v.SetDefault("mirror.database.password", "postgres")
	v.SetDefault("mirror.database.dbname", "chat_client")
	v.SetDefault("mirror.database.sslmode", "disable")
	v.SetDefault("mirror.database.file_path", "./data/session.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("fakeapi.host", "127.0.0.1")
	v.SetDefault("fakeapi.port", 5000)
	v.SetDefault("fakeapi.token_secret", "change-me")
	v.SetDefault("fakeapi.token_ttl", "1h")

	// Bind environment variables
	v.BindEnv("api.base_url", "CHAT_API_URL")
	v.BindEnv("mirror.driver", "CHAT_MIRROR_DRIVER")
	v.BindEnv("mirror.file.path", "CHAT_MIRROR_PATH")
	v.BindEnv("mirror.redis.address", "REDIS_ADDRESS")
	v.BindEnv("mirror.redis.password", "REDIS_PASSWORD")
	v.BindEnv("mirror.database.host", "DB_HOST")
	v.BindEnv("mirror.database.port", "DB_PORT")
	v.BindEnv("mirror.database.user", "DB_USER")
	v.BindEnv("mirror.database.password", "DB_PASSWORD")
	v.BindEnv("mirror.database.dbname", "DB_NAME")
	v.BindEnv("mirror.database.file_path", "DB_FILE_PATH")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("fakeapi.port", "PORT")
	v.BindEnv("fakeapi.token_secret", "FAKEAPI_TOKEN_SECRET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.API.Timeout = parseDuration(v, "api.timeout", 15*time.Second)
	cfg.FakeAPI.TokenTTL = parseDuration(v, "fakeapi.token_ttl", time.Hour)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return defaultVal
	}
	return d
}
