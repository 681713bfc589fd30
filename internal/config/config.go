package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config captures all runtime configuration for the relay worker.
type Config struct {
	App    AppConfig
	Queue  QueueConfig
	Target TargetConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	LogLevel string
}

// QueueConfig holds the SQS queue identifier and receive tuning. The
// visibility timeout must exceed the forward timeout so a message is never
// redelivered while its delivery attempt is still in flight.
type QueueConfig struct {
	URL                      string
	Region                   string
	BatchSize                int
	WaitTimeSeconds          int
	VisibilityTimeoutSeconds int
	PollBackoffSeconds       int
}

// TargetConfig describes the local endpoint messages are forwarded to.
type TargetConfig struct {
	URL                   string
	ForwardTimeoutSeconds int
	WorkerConcurrency     int
}

const defaultTargetURL = "http://127.0.0.1:3000/webhook"

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Config instance.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.Queue.URL = ldr.getString("QUEUE_URL", "", true)
	cfg.Queue.Region = ldr.getString("AWS_REGION", "", false)
	cfg.Queue.BatchSize = ldr.getInt("SQS_BATCH_SIZE", 10, false)
	cfg.Queue.WaitTimeSeconds = ldr.getInt("SQS_WAIT_TIME_SECONDS", 20, false)
	cfg.Queue.VisibilityTimeoutSeconds = ldr.getInt("SQS_VISIBILITY_TIMEOUT_SECONDS", 60, false)
	cfg.Queue.PollBackoffSeconds = ldr.getInt("POLL_BACKOFF_SECONDS", 2, false)

	cfg.Target.URL = ldr.getString("LOCAL_URL", defaultTargetURL, false)
	cfg.Target.ForwardTimeoutSeconds = ldr.getInt("FORWARD_TIMEOUT_SECONDS", 20, false)
	cfg.Target.WorkerConcurrency = ldr.getInt("WORKER_CONCURRENCY", 4, false)

	if cfg.Queue.BatchSize < 1 || cfg.Queue.BatchSize > 10 {
		ldr.addError("SQS_BATCH_SIZE must be between 1 and 10")
	}
	if cfg.Queue.WaitTimeSeconds < 0 || cfg.Queue.WaitTimeSeconds > 20 {
		ldr.addError("SQS_WAIT_TIME_SECONDS must be between 0 and 20")
	}
	if cfg.Queue.VisibilityTimeoutSeconds <= cfg.Target.ForwardTimeoutSeconds {
		ldr.addError("SQS_VISIBILITY_TIMEOUT_SECONDS must exceed FORWARD_TIMEOUT_SECONDS")
	}
	if cfg.Queue.PollBackoffSeconds < 1 {
		ldr.addError("POLL_BACKOFF_SECONDS must be >= 1")
	}
	if cfg.Target.ForwardTimeoutSeconds < 1 {
		ldr.addError("FORWARD_TIMEOUT_SECONDS must be >= 1")
	}
	if cfg.Target.WorkerConcurrency < 1 {
		ldr.addError("WORKER_CONCURRENCY must be >= 1")
	}

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		i, err := strconv.Atoi(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid integer", key))
			return def
		}
		return i
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
