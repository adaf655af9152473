// Package config assembles the settings of the stencil binaries from the
// environment.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator"

	"github.com/OFFIS-RIT/stencil/internal/util"
	"github.com/OFFIS-RIT/stencil/pkg/document"
	"github.com/OFFIS-RIT/stencil/pkg/harvest"
	"github.com/OFFIS-RIT/stencil/pkg/interpret"
)

type AI struct {
	Adapter           string  `validate:"oneof=openai ollama"`
	ChatURL           string  `validate:"omitempty,url"`
	ChatKey           string
	ChatModel         string  `validate:"required"`
	ParallelRequests  int     `validate:"min=1"`
	RequestsPerSecond float64 `validate:"gt=0"`
	MaxPromptTokens   int     `validate:"min=256"`
	Retries           int     `validate:"min=1"`
}

type Store struct {
	Adapter     string `validate:"oneof=memory badger postgres"`
	BadgerPath  string
	DatabaseURL string
}

type S3 struct {
	Region         string
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
}

type Server struct {
	Port         string `validate:"required,numeric"`
	AuthURL      string `validate:"omitempty,url"`
	MasterAPIKey string
}

type Queue struct {
	User     string
	Password string
	Host     string
	Port     string
	// MaxRetries is the number of redeliveries before a job is dead-lettered.
	MaxRetries int `validate:"min=0"`
}

// Config is the complete configuration of a stencil process. Values are
// passed into constructors explicitly.
type Config struct {
	Debug   bool
	LogJSON bool

	AI        AI
	Store     Store
	S3        S3
	Server    Server
	Queue     Queue
	Interpret interpret.Options
	Harvest   harvest.Options
	Filter    document.Filter `validate:"-"`

	LeaseTTL time.Duration `validate:"gte=1000000000"`
}

// FromEnv reads the configuration from the environment. Call util.LoadEnv
// first to pick up a .env file.
func FromEnv() *Config {
	interpretOpts := interpret.DefaultOptions()
	interpretOpts.MaxConcurrency = util.GetEnvInt("INTERPRET_MAX_CONCURRENCY", interpretOpts.MaxConcurrency)
	interpretOpts.MaxExamples = util.GetEnvInt("INTERPRET_MAX_EXAMPLES", interpretOpts.MaxExamples)
	interpretOpts.MaxExemplars = util.GetEnvInt("INTERPRET_MAX_EXEMPLARS", interpretOpts.MaxExemplars)
	interpretOpts.Snippet.Context = util.GetEnvInt("INTERPRET_SNIPPET_CONTEXT", interpretOpts.Snippet.Context)
	interpretOpts.Snippet.Target = util.GetEnvInt("INTERPRET_SNIPPET_TARGET", interpretOpts.Snippet.Target)
	interpretOpts.LayoutTags = util.GetEnvList("INTERPRET_LAYOUT_TAGS", interpretOpts.LayoutTags)

	harvestOpts := harvest.DefaultOptions()
	harvestOpts.MergeLeafRuns = util.GetEnvBool("HARVEST_MERGE_LEAF_RUNS", harvestOpts.MergeLeafRuns)

	return &Config{
		Debug:   util.GetEnvBool("DEBUG", false),
		LogJSON: util.GetEnvBool("LOG_JSON", false),
		AI: AI{
			Adapter:           util.GetEnvString("AI_ADAPTER", "openai"),
			ChatURL:           util.GetEnv("AI_CHAT_URL"),
			ChatKey:           util.GetEnv("AI_CHAT_KEY"),
			ChatModel:         util.GetEnvString("AI_CHAT_MODEL", "gpt-4o-mini"),
			ParallelRequests:  util.GetEnvInt("AI_PARALLEL_REQ", 4),
			RequestsPerSecond: util.GetEnvFloat("AI_REQ_PER_SECOND", 2),
			MaxPromptTokens:   util.GetEnvInt("AI_MAX_PROMPT_TOKENS", 12000),
			Retries:           util.GetEnvInt("AI_RETRIES", 3),
		},
		Store: Store{
			Adapter:     util.GetEnvString("STORE_ADAPTER", "badger"),
			BadgerPath:  util.GetEnvString("BADGER_PATH", ".stencil"),
			DatabaseURL: util.GetEnv("DATABASE_URL"),
		},
		S3: S3{
			Region:         util.GetEnv("AWS_REGION"),
			Endpoint:       util.GetEnv("AWS_ENDPOINT"),
			PublicEndpoint: util.GetEnv("AWS_PUBLIC_ENDPOINT"),
			AccessKey:      util.GetEnv("AWS_ACCESS_KEY"),
			SecretKey:      util.GetEnv("AWS_SECRET_KEY"),
			Bucket:         util.GetEnv("AWS_BUCKET"),
		},
		Server: Server{
			Port:         util.GetEnvString("PORT", "8080"),
			AuthURL:      util.GetEnv("AUTH_URL"),
			MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
		},
		Queue: Queue{
			User:       util.GetEnv("RABBITMQ_USER"),
			Password:   util.GetEnv("RABBITMQ_PASSWORD"),
			Host:       util.GetEnvString("RABBITMQ_HOST", "localhost"),
			Port:       util.GetEnvString("RABBITMQ_PORT", "5672"),
			MaxRetries: util.GetEnvInt("RABBITMQ_MAX_RETRIES", 10),
		},
		Interpret: interpretOpts,
		Harvest:   harvestOpts,
		Filter:    document.DefaultFilter(),
		LeaseTTL:  util.GetEnvDuration("LEASE_TTL", 2*time.Minute),
	}
}

// Validate checks field constraints and the settings that depend on the
// selected adapters.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	switch c.Store.Adapter {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("invalid configuration: DATABASE_URL is required for the postgres store")
		}
	case "badger":
		if c.Store.BadgerPath == "" {
			return fmt.Errorf("invalid configuration: BADGER_PATH is required for the badger store")
		}
	}
	return nil
}

// ValidateWorker additionally requires the services the worker and server
// depend on.
func (c *Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Store.Adapter != "postgres" {
		return fmt.Errorf("invalid configuration: the worker needs the postgres store, got %q", c.Store.Adapter)
	}
	if c.S3.Bucket == "" {
		return fmt.Errorf("invalid configuration: AWS_BUCKET is required")
	}
	return nil
}

// AMQPURL returns the broker url of the queue settings.
func (q Queue) AMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", q.User, q.Password, q.Host, q.Port)
}
