package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env           string `yaml:"env" env:"ENV" env-default:"development"`
	APIConfig     `yaml:"api"`
	StorageConfig `yaml:"storage"`
	RedisConfig   `yaml:"redis"`
	RefreshConfig `yaml:"refresh"`
	OTPConfig     `yaml:"otp"`
	Server        `yaml:"server"`
}

// Server configures the dev API server (cmd/devserver).
type Server struct {
	Host        string        `yaml:"host" env:"SERVER_HOST" env-default:"localhost"`
	Port        int           `yaml:"port" env:"SERVER_PORT" env-default:"8082"`
	Timeout     time.Duration `yaml:"timeout" env:"SERVER_TIMEOUT" env-default:"15s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url" env:"API_BASE_URL" env-default:"http://localhost:8082"`
	Timeout time.Duration `yaml:"timeout" env:"API_TIMEOUT" env-default:"15s"`
}

// StorageConfig selects the credential store backing. Backend is one of
// memory, file, encrypted, redis; the choice is made once at composition time.
// Encrypted needs a passphrase and is what device builds ship with.
type StorageConfig struct {
	Backend    string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"file"`
	Path       string `yaml:"path" env:"STORAGE_PATH" env-default:""`
	Passphrase string `yaml:"passphrase" env:"STORAGE_PASSPHRASE" env-default:""`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// RefreshConfig gates the single-flight token refresh path. Off by default:
// a 401 then simply ends the session.
type RefreshConfig struct {
	Enabled bool          `yaml:"enabled" env:"REFRESH_ENABLED" env-default:"false"`
	Leeway  time.Duration `yaml:"leeway" env:"REFRESH_LEEWAY" env-default:"30s"`
}

type OTPConfig struct {
	CountdownFrom int           `yaml:"countdown_from" env:"OTP_COUNTDOWN_FROM" env-default:"59"`
	TickInterval  time.Duration `yaml:"tick_interval" env:"OTP_TICK_INTERVAL" env-default:"1s"`
}

// -------------Get Config Path from Flag or Env --------------
var configPath string

func init() {
	flag.StringVar(&configPath, "config", "", "Path to the config file")
}

func fetchConfigPath() string {
	var res string

	if !flag.Parsed() {
		flag.Parse()
	}

	res = configPath

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}

// LoadConfig reads the config file named by the -config flag or CONFIG_PATH.
// With neither set, the environment-variable defaults apply on their own.
func LoadConfig() Config {
	path := fetchConfigPath()
	if path == "" {
		var cfg Config
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			panic(err)
		}
		return cfg
	}
	return LoadConfigFromPath(path)
}

func LoadConfigFromPath(path string) Config {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		panic(err)
	}
	return cfg
}
