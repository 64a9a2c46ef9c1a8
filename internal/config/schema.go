package config

import (
	"time"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/receiver"
)

// Config is the top-level YAML structure. Fields with an env tag can be
// overridden from the environment.
type Config struct {
	Version   string        `yaml:"version"`
	Server    ServerConf    `yaml:"server"`
	Platform  PlatformConf  `yaml:"platform"`
	Dispatch  DispatchConf  `yaml:"dispatch"`
	Receivers []ReceiverDef `yaml:"receivers"`
}

// ServerConf configures the HTTP listener and logging.
type ServerConf struct {
	Addr     string `yaml:"addr" env:"BROADCASTEVENT_ADDR"`
	LogLevel string `yaml:"log_level" env:"BROADCASTEVENT_LOG_LEVEL"`
}

// PlatformConf selects the platform channel driver.
type PlatformConf struct {
	Driver string    `yaml:"driver" env:"BROADCASTEVENT_PLATFORM"`
	Redis  RedisConf `yaml:"redis"`
}

// RedisConf is used when Driver is "redis".
type RedisConf struct {
	URL            string        `yaml:"url" env:"REDIS_URL"`
	ChannelPrefix  string        `yaml:"channel_prefix" env:"REDIS_CHANNEL_PREFIX"`
	RetryAttempts  int           `yaml:"retry_attempts" env:"REDIS_RETRY_ATTEMPTS"`
	RetryInterval  time.Duration `yaml:"retry_interval" env:"REDIS_RETRY_INTERVAL"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"REDIS_CONNECT_TIMEOUT"`
}

// DispatchConf sizes the delivery worker pool. An unset or zero Workers gets
// the default; Inline is the only way to process deliveries on the platform
// goroutine.
type DispatchConf struct {
	Workers    int  `yaml:"workers" env:"BROADCASTEVENT_DISPATCH_WORKERS"`
	QueueDepth int  `yaml:"queue_depth" env:"BROADCASTEVENT_DISPATCH_QUEUE_DEPTH"`
	Inline     bool `yaml:"inline" env:"BROADCASTEVENT_DISPATCH_INLINE"`
}

// PoolSize is the number of dispatch workers to start; 0 means inline.
func (d DispatchConf) PoolSize() int {
	if d.Inline {
		return 0
	}
	return d.Workers
}

// ReceiverDef declares a receiver that lives as long as it stays in the file.
type ReceiverDef struct {
	ID       string   `yaml:"id"`
	Filter   string   `yaml:"filter"`
	Category string   `yaml:"category"`
	Actions  []string `yaml:"actions"`
	Event    string   `yaml:"event"`
	Where    string   `yaml:"where"`
}

// Presets converts the declared receivers for receiver.PresetSet.
func (c *Config) Presets() []receiver.Preset {
	out := make([]receiver.Preset, 0, len(c.Receivers))
	for _, r := range c.Receivers {
		out = append(out, receiver.Preset{
			ID: r.ID,
			Spec: receiver.Spec{
				Filter:   r.Filter,
				Category: r.Category,
				Actions:  r.Actions,
				Event:    r.Event,
				Where:    r.Where,
			},
		})
	}
	return out
}
