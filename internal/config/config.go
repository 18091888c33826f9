// Package config provides process-level configuration for ltam. It loads
// settings from environment variables with the LTAM_ prefix, falling back to
// an optional YAML file of operator defaults, and hot-reloads that file with
// fsnotify so a running server picks up scheduler/retention tuning without a
// restart. Per-anima tuning (SynthesisConfig, DreamConfig, IOConfig) is not
// process config at all — it is DB-backed and owned by internal/store.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config holds all process-level configuration for the ltam-server and
// ltam-cleanup binaries.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	LLM       LLMConfig
	Scheduler SchedulerConfig
	Security  SecurityConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // LTAM_PORT, default 6363
	Host string // LTAM_HOST, default 127.0.0.1
}

// StorageConfig contains database configuration.
type StorageConfig struct {
	Engine string // LTAM_STORAGE_ENGINE: sqlite, postgres (default sqlite)
	DSN    string // LTAM_STORAGE_DSN
}

// LLMConfig contains the LLM/embedding provider configuration fed to
// internal/llm.NewTextGenerator / NewEmbeddingGenerator. It is process-wide:
// an anima's SynthesisConfig/DreamConfig rows carry no provider or model
// override.
type LLMConfig struct {
	Provider       string  // LTAM_LLM_PROVIDER: openai, anthropic, ollama (default ollama)
	APIKey         string  // LTAM_LLM_API_KEY
	Model          string  // LTAM_LLM_MODEL
	EmbeddingModel string  // LTAM_LLM_EMBEDDING_MODEL
	BaseURL        string  // LTAM_LLM_BASE_URL
	RatePerSecond  float64 // LTAM_LLM_RATE_PER_SECOND, default 0 (unpaced)
}

// SchedulerConfig holds operator defaults for the background workflows
// (§5). These are the values the YAML file is meant to carry in bulk; env
// vars still override them when set.
type SchedulerConfig struct {
	SynthesisIntervalHours float64 // LTAM_SYNTHESIS_INTERVAL_HOURS, default 6
	DreamIntervalHours     float64 // LTAM_DREAM_INTERVAL_HOURS, default 12
	StaleDreamSweepMinutes int     // LTAM_STALE_DREAM_SWEEP_MINUTES, default 60
	MaxPacksPerAnima       int     // LTAM_MAX_PACKS_PER_ANIMA, default 50
}

// SecurityConfig contains authentication settings consumed by internal/auth.
type SecurityConfig struct {
	Mode         string // LTAM_SECURITY_MODE: development, production (default development)
	JWKSURL      string // LTAM_JWKS_URL
	JWTAudience  string // LTAM_JWT_AUDIENCE, default "authenticated"
	JWTIssuer    string // LTAM_JWT_ISSUER
}

// fileDefaults mirrors the subset of Config an operator may want to bulk-set
// via YAML rather than one env var at a time. Zero values are "not set" and
// don't override env-derived defaults.
type fileDefaults struct {
	Scheduler struct {
		SynthesisIntervalHours float64 `yaml:"synthesis_interval_hours"`
		DreamIntervalHours     float64 `yaml:"dream_interval_hours"`
		StaleDreamSweepMinutes int     `yaml:"stale_dream_sweep_minutes"`
		MaxPacksPerAnima       int     `yaml:"max_packs_per_anima"`
	} `yaml:"scheduler"`
}

// Load builds a Config from environment variables layered over an optional
// YAML defaults file. yamlPath may be empty, in which case only env vars and
// built-in defaults apply.
func Load(yamlPath string) (*Config, error) {
	cfg := buildBaseConfig()
	if yamlPath == "" {
		return cfg, nil
	}
	fd, err := readFileDefaults(yamlPath)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", yamlPath, err)
	}
	applyFileDefaults(cfg, fd)
	return cfg, nil
}

func readFileDefaults(path string) (*fileDefaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fd fileDefaults
	if err := yaml.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	return &fd, nil
}

// applyFileDefaults overlays YAML scheduler defaults onto cfg wherever the
// field still holds buildBaseConfig's compiled-in default. An env var set to
// any other value wins over YAML; an env var set to exactly the default is
// indistinguishable from "unset", so YAML wins there.
func applyFileDefaults(cfg *Config, fd *fileDefaults) {
	if fd.Scheduler.SynthesisIntervalHours > 0 && cfg.Scheduler.SynthesisIntervalHours == 6 {
		cfg.Scheduler.SynthesisIntervalHours = fd.Scheduler.SynthesisIntervalHours
	}
	if fd.Scheduler.DreamIntervalHours > 0 && cfg.Scheduler.DreamIntervalHours == 12 {
		cfg.Scheduler.DreamIntervalHours = fd.Scheduler.DreamIntervalHours
	}
	if fd.Scheduler.StaleDreamSweepMinutes > 0 && cfg.Scheduler.StaleDreamSweepMinutes == 60 {
		cfg.Scheduler.StaleDreamSweepMinutes = fd.Scheduler.StaleDreamSweepMinutes
	}
	if fd.Scheduler.MaxPacksPerAnima > 0 && cfg.Scheduler.MaxPacksPerAnima == 50 {
		cfg.Scheduler.MaxPacksPerAnima = fd.Scheduler.MaxPacksPerAnima
	}
}

// buildBaseConfig constructs a Config from environment variables and
// built-in defaults, with no YAML file involved.
func buildBaseConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("LTAM_PORT", 6363),
			Host: getEnv("LTAM_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			Engine: getEnv("LTAM_STORAGE_ENGINE", "sqlite"),
			DSN:    getEnv("LTAM_STORAGE_DSN", "./ltam.db"),
		},
		LLM: LLMConfig{
			Provider:       getEnv("LTAM_LLM_PROVIDER", "ollama"),
			APIKey:         getEnv("LTAM_LLM_API_KEY", ""),
			Model:          getEnv("LTAM_LLM_MODEL", ""),
			EmbeddingModel: getEnv("LTAM_LLM_EMBEDDING_MODEL", ""),
			BaseURL:        getEnv("LTAM_LLM_BASE_URL", ""),
			RatePerSecond:  getEnvFloat("LTAM_LLM_RATE_PER_SECOND", 0),
		},
		Scheduler: SchedulerConfig{
			SynthesisIntervalHours: getEnvFloat("LTAM_SYNTHESIS_INTERVAL_HOURS", 6),
			DreamIntervalHours:     getEnvFloat("LTAM_DREAM_INTERVAL_HOURS", 12),
			StaleDreamSweepMinutes: getEnvInt("LTAM_STALE_DREAM_SWEEP_MINUTES", 60),
			MaxPacksPerAnima:       getEnvInt("LTAM_MAX_PACKS_PER_ANIMA", 50),
		},
		Security: SecurityConfig{
			Mode:        getEnv("LTAM_SECURITY_MODE", "development"),
			JWKSURL:     getEnv("LTAM_JWKS_URL", ""),
			JWTAudience: getEnv("LTAM_JWT_AUDIENCE", "authenticated"),
			JWTIssuer:   getEnv("LTAM_JWT_ISSUER", ""),
		},
	}
}

// Watcher hot-reloads a YAML defaults file with fsnotify, the same pattern
// internal/notify reserved for watching an Obsidian vault's markdown files,
// redirected here to watch one config file instead. Snapshot returns the
// latest successfully parsed Config; a parse error on reload leaves the
// previous snapshot in place and is reported via the errs channel.
type Watcher struct {
	path    string
	w       *fsnotify.Watcher
	current atomic.Pointer[Config]
	errs    chan error
	mu      sync.Mutex
}

// Watch starts watching yamlPath for changes, seeding the initial snapshot
// from Load(yamlPath). The caller must call Close when done.
func Watch(yamlPath string) (*Watcher, error) {
	cfg, err := Load(yamlPath)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := fw.Add(yamlPath); err != nil && !os.IsNotExist(err) {
		_ = fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", yamlPath, err)
	}

	watcher := &Watcher{path: yamlPath, w: fw, errs: make(chan error, 1)}
	watcher.current.Store(cfg)
	go watcher.loop()
	return watcher, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.w.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				select {
				case w.errs <- err:
				default:
				}
				continue
			}
			w.current.Store(cfg)
		case _, ok := <-w.w.Errors:
			if !ok {
				return
			}
		}
	}
}

// Snapshot returns the most recently loaded Config.
func (w *Watcher) Snapshot() *Config {
	return w.current.Load()
}

// Errs surfaces reload parse errors; reads are non-blocking from the
// reloader's side so a slow consumer never stalls the watch loop.
func (w *Watcher) Errs() <-chan error {
	return w.errs
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Close()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
