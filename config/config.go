package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL"`
	HTTP     HTTP
	Postgres Postgres
	Redis    Redis
	API      API
	Auth     Auth
	Demo     Demo
	Jobs     Jobs
}

type HTTP struct {
	Port            string        `env:"HTTP_PORT" envDefault:"8080"`
	CORSOrigin      string        `env:"CORS_ORIGIN" envDefault:"*"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type Postgres struct {
	Host            string `env:"PG_HOST"`
	Port            int    `env:"PG_PORT"`
	DbName          string `env:"PG_DB_NAME"`
	Password        string `env:"PG_PASSWORD"`
	User            string `env:"PG_USER"`
	MaxOpenConns    int    `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	ConnMaxLifetime int    `env:"PG_CONN_MAX_LIFETIME" envDefault:"300"`
	MaxIdleConns    int    `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime int    `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"60"`
	MigrationDir    string `env:"PG_MIGRATION_DIR" envDefault:"migrations"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST"`
	Port     int    `env:"REDIS_PORT"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type API struct {
	Debug   bool          `env:"API_DEBUG" envDefault:"false"`
	Timeout time.Duration `env:"API_TIMEOUT" envDefault:"10s"`
	IexApi  IexApi
}

type IexApi struct {
	Url   string `env:"IEX_API_URL" envDefault:"https://cloud.iexapis.com"`
	Token string `env:"IEX_API_TOKEN"`
}

type Auth struct {
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
}

// Demo gates the destructive demo reset. The reset wipes every user in the
// store, so it must stay disabled anywhere real data lives.
type Demo struct {
	Enabled bool          `env:"DEMO_ENABLED" envDefault:"false"`
	LockTTL time.Duration `env:"DEMO_LOCK_TTL" envDefault:"30s"`
}

type Jobs struct {
	SnapshotCrontab string `env:"SNAPSHOT_JOB_CRONTAB" envDefault:"0 0 * * *"`
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	return cfg
}
