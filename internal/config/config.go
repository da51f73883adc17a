package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongoDB  = "mongodb"
)

type Config struct {
	Env        string        `yaml:"env" env:"ENV" env-default:"local"`
	Storage    StorageConfig `yaml:"storage"`
	HTTP       HTTPConfig    `yaml:"http"`
	Tokens     TokensConfig  `yaml:"tokens"`
	BcryptCost int           `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"10"`
	SeedPath   string        `yaml:"seed_path" env:"SEED_PATH"`
}

type StorageConfig struct {
	Driver string      `yaml:"driver" env:"STORAGE_DRIVER" env-default:"sqlite"`
	Path   string      `yaml:"path" env:"STORAGE_PATH" env-default:"./storage/authsvc.db"`
	DSN    string      `yaml:"dsn" env:"POSTGRES_DSN"`
	Mongo  MongoConfig `yaml:"mongo"`
}

type MongoConfig struct {
	URI      string `yaml:"uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"authsvc"`
}

type HTTPConfig struct {
	Address      string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env-default:"5s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env-default:"5s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env-default:"60s"`
	PublicPaths  []string      `yaml:"public_paths" env-default:"/api/auth/register,/api/auth/login"`
}

type TokensConfig struct {
	AccessTTL       time.Duration `yaml:"access_ttl" env-default:"1h"`
	RefreshTTL      time.Duration `yaml:"refresh_ttl" env-default:"168h"`
	RefreshStoreTTL time.Duration `yaml:"refresh_store_ttl" env-default:"168h"`
	// empty means a random key is generated at startup
	SigningKey string `yaml:"signing_key" env:"AUTH_SIGNING_KEY"`
}

// MustLoad reads the config file named by the -config flag or the
// CONFIG_PATH environment variable.
func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}

	return LoadConfig(path)
}

func LoadConfig(path string) *Config {
	var cfg Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config file not found: " + path)
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		panic("failed to read config: " + err.Error())
	}

	return &cfg
}

// fetchConfigPath: flag > env.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
