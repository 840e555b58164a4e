package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// envConfig holds the settings that come from the environment rather than
// flags. Secrets live here so they never appear in a process listing.
type envConfig struct {
	DeployEnv       string   `env:"DEPLOY_ENV"`
	EnableAdminHTTP string   `env:"SZ_ENABLE_ADMIN_HTTP"`
	EnablePprofHTTP bool     `env:"SZ_ENABLE_PPROF_HTTP" envDefault:"false"`
	AdminToken      string   `env:"SZ_ADMIN_TOKEN"`
	Operators       []string `env:"SZ_OPERATORS" envSeparator:","`

	IndexEndpoint string `env:"SZ_INDEX_ENDPOINT"`
	IndexToken    string `env:"SZ_INDEX_TOKEN"`
	IndexArenaID  string `env:"SZ_INDEX_ARENA_ID" envDefault:"arena"`
}

// loadEnv reads an optional .env file (never overriding variables already set)
// and parses the environment.
func loadEnv(dotenvPath string) (envConfig, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return envConfig{}, fmt.Errorf("load %s: %w", dotenvPath, err)
		}
	}
	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return envConfig{}, fmt.Errorf("parse env: %w", err)
	}
	ops := cfg.Operators[:0]
	for _, op := range cfg.Operators {
		if op = strings.TrimSpace(op); op != "" {
			ops = append(ops, op)
		}
	}
	cfg.Operators = ops
	return cfg, nil
}

func (c envConfig) adminHTTPEnabled() bool {
	if v, err := strconv.ParseBool(strings.TrimSpace(c.EnableAdminHTTP)); err == nil {
		return v
	}
	return defaultEnableAdminHTTP(c.DeployEnv)
}

func defaultEnableAdminHTTP(deployEnv string) bool {
	switch strings.ToLower(strings.TrimSpace(deployEnv)) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
