// Package config reads engine settings from SHARDBOOK_* environment
// variables, optionally seeded from a .env file.
package config

import (
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const prefix = "SHARDBOOK_"

type Config struct {
	Symbols          int           `validate:"min=1,max=65536"`
	// QueueCapacity must be at least 2 in mpsc mode.
	QueueCapacity    int           `validate:"min=1"`
	QueueMode        string        `validate:"oneof=spsc mpsc"`
	LogQueueCapacity int           `validate:"min=2"`
	IdleBackoff      time.Duration `validate:"gt=0"`

	LogLevel  string `validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFormat string `validate:"oneof=json text"`

	// PriceScale is the number of implied decimals in a Price.
	PriceScale int32 `validate:"min=0,max=18"`

	EnforceFillOrKill bool
	InPlaceReduce     bool

	// OutboxDir enables the trade outbox when set.
	OutboxDir         string        `validate:"required_unless=Broker none"`
	Broker            string        `validate:"oneof=none sarama kafka-go"`
	Brokers           []string      `validate:"required_unless=Broker none,dive,hostname_port"`
	Topic             string        `validate:"required_unless=Broker none"`
	BroadcastInterval time.Duration `validate:"gt=0"`

	// AdminAddr enables the admin HTTP server when set.
	AdminAddr string `validate:"omitempty,hostname_port"`
	Demo      bool
}

func Default() Config {
	return Config{
		Symbols:           4,
		QueueCapacity:     1 << 14,
		QueueMode:         "spsc",
		LogQueueCapacity:  1 << 16,
		IdleBackoff:       time.Millisecond,
		LogLevel:          "info",
		LogFormat:         "json",
		PriceScale:        2,
		Broker:            "none",
		Topic:             "trades",
		BroadcastInterval: 250 * time.Millisecond,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		cfg := sl.Current().Interface().(Config)
		if cfg.QueueMode == "mpsc" && cfg.QueueCapacity < 2 {
			sl.ReportError(cfg.QueueCapacity, "QueueCapacity", "QueueCapacity", "mpsc_min", "2")
		}
	}, Config{})
	return v
}

// Load applies .env (when present) and the environment over Default.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, errors.Wrap(err, "config: .env")
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from Default and the variables lookup finds.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	p := parser{lookup: lookup}

	p.int("SYMBOLS", &cfg.Symbols)
	p.int("QUEUE_CAPACITY", &cfg.QueueCapacity)
	p.str("QUEUE_MODE", &cfg.QueueMode)
	p.int("LOG_QUEUE_CAPACITY", &cfg.LogQueueCapacity)
	p.duration("IDLE_BACKOFF", &cfg.IdleBackoff)
	p.str("LOG_LEVEL", &cfg.LogLevel)
	p.str("LOG_FORMAT", &cfg.LogFormat)
	p.int32("PRICE_SCALE", &cfg.PriceScale)
	p.bool("ENFORCE_FOK", &cfg.EnforceFillOrKill)
	p.bool("IN_PLACE_REDUCE", &cfg.InPlaceReduce)
	p.str("OUTBOX_DIR", &cfg.OutboxDir)
	p.str("BROKER", &cfg.Broker)
	p.list("BROKERS", &cfg.Brokers)
	p.str("TOPIC", &cfg.Topic)
	p.duration("BROADCAST_INTERVAL", &cfg.BroadcastInterval)
	p.str("ADMIN_ADDR", &cfg.AdminAddr)
	p.bool("DEMO", &cfg.Demo)

	if p.err != nil {
		return Config{}, p.err
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: invalid")
	}
	return cfg, nil
}

// parser keeps the first error and ignores later variables.
type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) get(name string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v, ok := p.lookup(prefix + name)
	return strings.TrimSpace(v), ok
}

func (p *parser) fail(name string, err error) {
	p.err = errors.Wrapf(err, "config: %s%s", prefix, name)
}

func (p *parser) str(name string, dst *string) {
	if v, ok := p.get(name); ok {
		*dst = v
	}
}

func (p *parser) int(name string, dst *int) {
	if v, ok := p.get(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			p.fail(name, err)
			return
		}
		*dst = n
	}
}

func (p *parser) int32(name string, dst *int32) {
	if v, ok := p.get(name); ok {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			p.fail(name, err)
			return
		}
		*dst = int32(n)
	}
}

func (p *parser) bool(name string, dst *bool) {
	if v, ok := p.get(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			p.fail(name, err)
			return
		}
		*dst = b
	}
}

func (p *parser) duration(name string, dst *time.Duration) {
	if v, ok := p.get(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			p.fail(name, err)
			return
		}
		*dst = d
	}
}

func (p *parser) list(name string, dst *[]string) {
	if v, ok := p.get(name); ok {
		var out []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		*dst = out
	}
}
