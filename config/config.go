package config

import "github.com/caarlos0/env/v6"

type Config struct {
	// Server configuration
	Server struct {
		// Port the HTTP API listens on
		Port int `env:"SERVER_PORT" envDefault:"5250"`

		// Path to the sqlite database file
		DatabasePath string `env:"DATABASE_PATH" envDefault:"database/leadmatch.db"`
	}

	// Matching engine configuration
	Matching struct {
		// Days a re-ingested listing counts as a duplicate
		DedupWindowDays int `env:"MATCH_DEDUP_WINDOW_DAYS" envDefault:"14"`

		// Months without activity before a lead stops being matched
		StaleLeadMonths int `env:"MATCH_STALE_LEAD_MONTHS" envDefault:"6"`

		// Buffer size of the matchmaking queue
		QueueSize int `env:"MATCH_QUEUE_SIZE" envDefault:"100"`

		// Hours back the scheduled rematch sweep looks for properties
		RematchWindowHours int `env:"MATCH_REMATCH_WINDOW_HOURS" envDefault:"24"`

		// Minimum score for a match to be pushed to Telegram
		NotifyMinScore int `env:"MATCH_NOTIFY_MIN_SCORE" envDefault:"60"`
	}

	// BatchProcessing configuration
	BatchProcessing struct {
		// Number of concurrent matchmaker workers
		ProcessorCount int `env:"BATCH_PROCESSOR_COUNT" envDefault:"2"`

		// Maximum number of retries for failed notification batches
		MaxRetries int `env:"BATCH_MAX_RETRIES" envDefault:"3"`

		// Delay between retries in seconds
		RetryDelay int `env:"BATCH_RETRY_DELAY" envDefault:"5"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
