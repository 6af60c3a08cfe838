package config

import (
	"context"
	"dph-tracker/internal/history"
	"dph-tracker/internal/publish"
	"dph-tracker/internal/scrapers/dph"
	"dph-tracker/internal/scrapers/loinc"
	"dph-tracker/internal/telemetry"
	"dph-tracker/internal/tracker"
	"dph-tracker/lib/configutil"
	configlibsql "dph-tracker/lib/configutil/libsql"
	"errors"
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
)

const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

type SourceConfig struct {
	URL              string `json:"url"`
	TimeoutSeconds   int    `json:"timeout_seconds"`
	CloudflareBypass bool   `json:"cloudflare_bypass"`
}

type HistoryConfig struct {
	// Backend is either "csv" or "sqlite".
	Backend  string              `json:"backend"`
	Dir      string              `json:"dir"`
	Database configlibsql.Struct `json:"database"`
}

type VocabularyConfig struct {
	First   string   `json:"first"`
	Headers []string `json:"headers"`
}

type S3Config struct {
	Bucket   string `json:"bucket"`
	Prefix   string `json:"prefix"`
	Region   string `json:"region"`
	Endpoint string `json:"endpoint"`
}

type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

type EmailConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

// PublishConfig enables a publisher for every section that is set.
type PublishConfig struct {
	S3    *S3Config    `json:"s3"`
	Kafka *KafkaConfig `json:"kafka"`
	Email *EmailConfig `json:"email"`
}

type DaemonConfig struct {
	// Schedule is a standard 5 field cron spec in America/Los_Angeles time.
	Schedule   string `json:"schedule"`
	RunOnStart bool   `json:"run_on_start"`
}

type LoincConfig struct {
	URL    string `json:"url"`
	Output string `json:"output"`
}

type Config struct {
	Debug      bool             `json:"debug"`
	Source     SourceConfig     `json:"source"`
	History    HistoryConfig    `json:"history"`
	Vocabulary VocabularyConfig `json:"vocabulary"`
	Publish    PublishConfig    `json:"publish"`
	Daemon     DaemonConfig     `json:"daemon"`
	Loinc      LoincConfig      `json:"loinc"`
}

// Default is the configuration used for every field a config file leaves out.
func Default() Config {
	return Config{
		Source: SourceConfig{
			URL:            dph.DefaultURL,
			TimeoutSeconds: int(dph.DefaultTimeout / time.Second),
		},
		History: HistoryConfig{
			Backend: BackendCSV,
			Dir:     ".",
		},
		Vocabulary: VocabularyConfig{
			First:   tracker.DefaultFirstSection,
			Headers: tracker.DefaultVocabulary().Headers,
		},
		Daemon: DaemonConfig{
			// the county posts its numbers around noon
			Schedule: "20 12 * * *",
		},
		Loinc: LoincConfig{
			URL:    loinc.DefaultURL,
			Output: loinc.DefaultOutput,
		},
	}
}

// WithDefaults fills every unset field of the config with its default.
func (c Config) WithDefaults() (Config, error) {
	err := mergo.Merge(&c, Default())
	if err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.History.Backend {
	case BackendCSV:
	case BackendSQLite:
		if c.History.Database.File == "" && c.History.Database.URL == "" {
			errs = append(errs, fmt.Errorf("history: sqlite backend needs database.file or database.url"))
		}
	default:
		errs = append(errs, fmt.Errorf("history: unknown backend '%s'", c.History.Backend))
	}
	if c.Source.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("source: negative timeout"))
	}
	_, err := c.Vocabulary.Build()
	if err != nil {
		errs = append(errs, fmt.Errorf("vocabulary: %w", err))
	}
	return errors.Join(errs...)
}

// Load reads `name` (and its .local override), a missing file is the same as
// an empty one.
func Load(name string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](name)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read %s: %w", name, err)
	}
	cfg, err = cfg.WithDefaults()
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c SourceConfig) Options() dph.Options {
	return dph.Options{
		URL:              c.URL,
		Timeout:          time.Duration(c.TimeoutSeconds) * time.Second,
		CloudflareBypass: c.CloudflareBypass,
	}
}

func (c VocabularyConfig) Build() (tracker.Vocabulary, error) {
	return tracker.NewVocabulary(c.First, c.Headers)
}

// OpenStore opens the configured history backend, the returned function
// releases it.
func (c HistoryConfig) OpenStore(tel telemetry.API) (history.Store, func() error, error) {
	switch c.Backend {
	case BackendCSV:
		return history.NewCSVStore(c.Dir, tel), func() error { return nil }, nil
	case BackendSQLite:
		db, err := c.Database.OpenDB(history.Schema)
		if err != nil {
			return nil, nil, err
		}
		return history.NewSQLStore(db, tel), db.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown history backend '%s'", c.Backend)
}

func (c S3Config) Options() publish.S3Options {
	return publish.S3Options{
		Bucket:   c.Bucket,
		Prefix:   c.Prefix,
		Region:   c.Region,
		Endpoint: c.Endpoint,
	}
}

func (c KafkaConfig) Options() publish.KafkaOptions {
	return publish.KafkaOptions{
		Brokers: c.Brokers,
		Topic:   c.Topic,
	}
}

func (c EmailConfig) Options() publish.SmtpOptions {
	return publish.SmtpOptions{
		Server:       c.Server,
		Port:         c.Port,
		EmailAddress: c.EmailAddress,
		Password:     c.Password,
		To:           c.To,
	}
}

// Publishers builds a publisher for every configured section. The returned
// function closes the ones holding connections.
func (c PublishConfig) Publishers(ctx context.Context, tel telemetry.API) ([]tracker.Publisher, func() error, error) {
	var publishers []tracker.Publisher
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for _, closeFn := range closers {
			errs = append(errs, closeFn())
		}
		return errors.Join(errs...)
	}

	if c.S3 != nil {
		p, err := publish.NewS3(ctx, c.S3.Options(), tel)
		if err != nil {
			return nil, nil, err
		}
		publishers = append(publishers, p)
	}
	if c.Kafka != nil {
		p, err := publish.NewKafka(c.Kafka.Options(), tel)
		if err != nil {
			return nil, nil, err
		}
		publishers = append(publishers, p)
		closers = append(closers, p.Close)
	}
	if c.Email != nil {
		p, err := publish.NewEmail(c.Email.Options(), tel)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		publishers = append(publishers, p)
	}

	return publishers, closeAll, nil
}
