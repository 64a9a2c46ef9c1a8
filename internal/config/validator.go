package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/match"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
)

// Drivers the server knows how to open.
var knownDrivers = map[string]bool{"memory": true, "redis": true}

// Validate checks the config for:
//   - Required fields and known enum values
//   - Duplicate receiver IDs
//   - Receiver filters that no platform could arm, and where clauses that do not compile
func Validate(cfg *Config) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	if _, err := cfg.Server.Level(); err != nil {
		errs = append(errs, fmt.Sprintf("server.log_level: %v", err))
	}
	if !knownDrivers[cfg.Platform.Driver] {
		errs = append(errs, fmt.Sprintf("platform.driver: unknown driver %q", cfg.Platform.Driver))
	}
	if cfg.Platform.Driver == "redis" && cfg.Platform.Redis.URL == "" {
		errs = append(errs, "platform.redis.url: required when driver is redis")
	}
	if cfg.Dispatch.Workers < 0 {
		errs = append(errs, "dispatch.workers: must not be negative")
	}
	if cfg.Dispatch.QueueDepth < 0 {
		errs = append(errs, "dispatch.queue_depth: must not be negative")
	}

	ids := make(map[string]int) // id → index
	for i, r := range cfg.Receivers {
		if r.ID == "" {
			errs = append(errs, fmt.Sprintf("receivers[%d]: id is required", i))
			continue
		}
		if prev, ok := ids[r.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate receiver id %q (receivers[%d] and receivers[%d])", r.ID, prev, i))
		} else {
			ids[r.ID] = i
		}
		if err := payload.NewFilter(r.Filter, r.Category).Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("receiver %s: %v", r.ID, err))
		}
		if r.Event == "" {
			errs = append(errs, fmt.Sprintf("receiver %s: event is required", r.ID))
		}
		if r.Where != "" {
			if _, err := match.Compile(r.Where); err != nil {
				errs = append(errs, fmt.Sprintf("receiver %s: where: %v", r.ID, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Level parses LogLevel ("debug", "info", "warn", "error").
func (s ServerConf) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return 0, err
	}
	return lvl, nil
}
