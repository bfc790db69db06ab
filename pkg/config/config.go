package config

import (
	"time"
)

// DB holds the backing store connection settings.
type DB struct {
	Url string `envconfig:"URL"`
}

// Log holds logger settings.
type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"json"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[ledger]"`
}

// Retry bounds the engine's optimistic-concurrency retry loop.
type Retry struct {
	MaxAttempts int `envconfig:"MAX_ATTEMPTS" default:"8"`
}

// Pagination bounds transaction-history pages.
type Pagination struct {
	DefaultPageSize int `envconfig:"DEFAULT_PAGE_SIZE" default:"50"`
	MaxPageSize     int `envconfig:"MAX_PAGE_SIZE" default:"500"`
}

// Recovery controls the stale-reservation recovery pass.
type Recovery struct {
	StaleAfter time.Duration `envconfig:"STALE_AFTER" default:"5m"`
}

// App is the top-level application configuration.
type App struct {
	Env        string      `envconfig:"APP_ENV" default:"development"`
	Log        *Log        `envconfig:"LOG"`
	DB         *DB         `envconfig:"DATABASE"`
	Retry      *Retry      `envconfig:"RETRY"`
	Pagination *Pagination `envconfig:"PAGINATION"`
	Recovery   *Recovery   `envconfig:"RECOVERY"`
}
