// Package config resolves runtime settings from the config file, the
// environment and CLI flags, tagging every value with where it came from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// ResolvedValue is one setting plus its provenance.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the CLI-level overrides into resolution.
type ResolveOptions struct {
	ConfigPath      string
	CLIDBPath       string
	CLIJurisdiction string
}

// ResolvedConfig is the full resolved configuration. Precedence per value:
// CLI flag > environment > config file > built-in default.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath       ResolvedValue `json:"db_path"`
	Jurisdiction ResolvedValue `json:"jurisdiction"`

	TierDirect   ResolvedValue `json:"tier_direct"`
	TierInferred ResolvedValue `json:"tier_inferred"`
	TierFallback ResolvedValue `json:"tier_fallback"`
}

type fileConfig struct {
	DBPath       string `yaml:"db_path"`
	Jurisdiction string `yaml:"jurisdiction"`
	Tiers        struct {
		Direct   string `yaml:"direct"`
		Inferred string `yaml:"inferred"`
		Fallback string `yaml:"fallback"`
	} `yaml:"tiers"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".factfill", "config.yaml")
}

// ResolveConfig resolves every setting. A missing config file is fine; a
// malformed one is an error.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.Jurisdiction, cfg.Jurisdiction, SourceConfig, path)
		apply(&out.TierDirect, cfg.Tiers.Direct, SourceConfig, path)
		apply(&out.TierInferred, cfg.Tiers.Inferred, SourceConfig, path)
		apply(&out.TierFallback, cfg.Tiers.Fallback, SourceConfig, path)
	}

	applyEnv(&out.DBPath, "FACTFILL_DB")
	applyEnv(&out.DBPath, "FACTFILL_DB_PATH")
	applyEnv(&out.Jurisdiction, "FACTFILL_JURISDICTION")
	applyEnv(&out.TierDirect, "FACTFILL_TIER_DIRECT")
	applyEnv(&out.TierInferred, "FACTFILL_TIER_INFERRED")
	applyEnv(&out.TierFallback, "FACTFILL_TIER_FALLBACK")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.Jurisdiction, opts.CLIJurisdiction, SourceCLI, "--jurisdiction")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}

	return out, nil
}

// TierValues parses the resolved tier settings, filling unset ones with the
// standard values. An unparsable or out-of-range tier is an error rather
// than a silent default: a typo in a confidence constant should not quietly
// change auto-accept behavior downstream.
func (r ResolvedConfig) TierValues() (direct, inferred, fallback float64, err error) {
	direct, err = tierValue(r.TierDirect, 0.95)
	if err != nil {
		return 0, 0, 0, err
	}
	inferred, err = tierValue(r.TierInferred, 0.80)
	if err != nil {
		return 0, 0, 0, err
	}
	fallback, err = tierValue(r.TierFallback, 0.60)
	if err != nil {
		return 0, 0, 0, err
	}
	return direct, inferred, fallback, nil
}

func tierValue(rv ResolvedValue, def float64) (float64, error) {
	v := strings.TrimSpace(rv.Value)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing tier value %q from %s: %w", rv.Value, rv.From, err)
	}
	if f <= 0 || f > 1 {
		return 0, fmt.Errorf("tier value %q from %s is outside (0, 1]", rv.Value, rv.From)
	}
	return f, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
