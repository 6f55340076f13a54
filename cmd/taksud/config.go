package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/layer-3/taksu/adapters/challenge"
)

// Config holds the daemon configuration. The TOML file is optional; every
// field has a default and can be overridden through the environment.
type Config struct {
	ListenAddr    string `toml:"ListenAddr"`
	RedisURL      string `toml:"RedisURL"`
	ChallengeTTL  string `toml:"ChallengeTTL"`
	JWTChallenges bool   `toml:"JWTChallenges"`
}

// loadConfig reads the file named by TAKSUD_CONFIG when set, then applies
// environment overrides on top.
func loadConfig() (*Config, error) {
	cfg := &Config{
		ListenAddr: ":9000",
	}

	if path := os.Getenv("TAKSUD_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.RedisURL = url
	}
	if ttl := os.Getenv("CHALLENGE_TTL"); ttl != "" {
		cfg.ChallengeTTL = ttl
	}
	if v := os.Getenv("JWT_CHALLENGES"); v != "" {
		useJWT, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("parse JWT_CHALLENGES: %w", err)
		}
		cfg.JWTChallenges = useJWT
	}

	return cfg, nil
}

// challengeTTL parses the configured nonce lifetime.
func (c *Config) challengeTTL() (time.Duration, error) {
	if c.ChallengeTTL == "" {
		return challenge.DefaultTTL, nil
	}
	d, err := time.ParseDuration(c.ChallengeTTL)
	if err != nil {
		return 0, fmt.Errorf("parse ChallengeTTL: %w", err)
	}
	return d, nil
}
