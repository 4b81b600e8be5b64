// Package config loads bundlesmith settings from ~/.bundlesmith/config.yaml,
// BUNDLESMITH_* environment variables and a plugin-local .env file.
//
// Every Load builds a fresh viper instance; nothing is cached between calls.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dshills/bundlesmith/internal/guardrail"
	"github.com/dshills/bundlesmith/internal/llm"
)

const (
	dirName   = ".bundlesmith"
	fileName  = "config"
	fileType  = "yaml"
	envPrefix = "BUNDLESMITH"
	dotEnv    = ".env"
)

// Keys.
const (
	KeyAIEnabled          = "ai.enabled"
	KeyAIProvider         = "ai.provider"
	KeyAIAPIKeyEnv        = "ai.api_key_env"
	KeyAIModel            = "ai.model"
	KeyAIBaseURL          = "ai.base_url"
	KeyPlatformRepository = "platform.repository"
	KeyCriticalNamespaces = "guardrail.critical_namespaces"
	KeySkillsDir          = "skills.dir"
	KeySessionDir         = "session.dir"
)

var defaults = map[string]any{
	KeyAIEnabled:          true,
	KeyAIProvider:         "",
	KeyAIAPIKeyEnv:        "",
	KeyAIModel:            "",
	KeyAIBaseURL:          "",
	KeyPlatformRepository: "",
	KeyCriticalNamespaces: guardrail.DefaultCriticalPrefixes,
	KeySkillsDir:          "",
	KeySessionDir:         "",
}

// Keys returns the known configuration keys, sorted.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Known reports whether key is a configuration key.
func Known(key string) bool {
	_, ok := defaults[strings.ToLower(key)]
	return ok
}

// Dir returns the config directory (~/.bundlesmith).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return dirName
	}
	return filepath.Join(home, dirName)
}

// DefaultFile returns ~/.bundlesmith/config.yaml.
func DefaultFile() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// Options selects the sources Load reads.
type Options struct {
	// File overrides DefaultFile.
	File string
	// PluginDir, when set, is searched for a .env file.
	PluginDir string
}

// Config is a resolved configuration snapshot.
type Config struct {
	AIEnabled          bool
	AIProvider         string
	AIAPIKeyEnv        string
	AIModel            string
	AIBaseURL          string
	PlatformRepository string
	CriticalNamespaces []string
	SkillsDir          string
	SessionDir         string

	// Env holds the plugin-local .env values. The process environment is
	// not modified.
	Env map[string]string
	// File is the config file consulted, whether or not it exists.
	File string

	v *viper.Viper
}

// Load reads the config file (a missing file is not an error), applies
// environment overrides and reads the plugin's .env file.
func Load(opts Options) (*Config, error) {
	file := opts.File
	if file == "" {
		file = DefaultFile()
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetConfigFile(file)
	v.SetConfigType(fileType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(file); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config.Load: reading %s: %w", file, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	c := &Config{
		AIEnabled:          v.GetBool(KeyAIEnabled),
		AIProvider:         strings.TrimSpace(v.GetString(KeyAIProvider)),
		AIAPIKeyEnv:        strings.TrimSpace(v.GetString(KeyAIAPIKeyEnv)),
		AIModel:            strings.TrimSpace(v.GetString(KeyAIModel)),
		AIBaseURL:          strings.TrimSpace(v.GetString(KeyAIBaseURL)),
		PlatformRepository: expandHome(v.GetString(KeyPlatformRepository)),
		CriticalNamespaces: splitList(v.GetStringSlice(KeyCriticalNamespaces)),
		SkillsDir:          expandHome(v.GetString(KeySkillsDir)),
		SessionDir:         expandHome(v.GetString(KeySessionDir)),
		File:               file,
		v:                  v,
	}

	if opts.PluginDir != "" {
		env, err := godotenv.Read(filepath.Join(opts.PluginDir, dotEnv))
		switch {
		case err == nil:
			c.Env = env
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("config.Load: reading %s: %w", dotEnv, err)
		}
	}
	return c, nil
}

// Get returns the resolved value of key as text.
func (c *Config) Get(key string) (string, error) {
	key = strings.ToLower(key)
	if !Known(key) {
		return "", fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	if key == KeyCriticalNamespaces {
		return strings.Join(c.CriticalNamespaces, ","), nil
	}
	return c.v.GetString(key), nil
}

// ProviderConfig returns the AI provider settings.
func (c *Config) ProviderConfig() llm.ProviderConfig {
	return llm.ProviderConfig{
		Enabled:   c.AIEnabled,
		Provider:  c.AIProvider,
		APIKeyEnv: c.AIAPIKeyEnv,
		Model:     c.AIModel,
		Env:       c.Env,
		BaseURL:   c.AIBaseURL,
	}
}

// GuardrailOptions returns the validator settings.
func (c *Config) GuardrailOptions() guardrail.Options {
	return guardrail.Options{
		RepositoryDir:    c.PlatformRepository,
		CriticalPrefixes: c.CriticalNamespaces,
	}
}

// Secrets returns the API key values visible to this configuration, for
// masking in logs.
func (c *Config) Secrets() []string {
	names := []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"}
	if c.AIAPIKeyEnv != "" {
		names = append(names, c.AIAPIKeyEnv)
	}
	var out []string
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			out = append(out, v)
		}
		if v := c.Env[n]; v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Set validates value for key and writes it to file, creating the file and
// its directory when needed. Other keys in the file are preserved.
func Set(file, key, value string) error {
	key = strings.ToLower(key)
	if !Known(key) {
		return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	if file == "" {
		file = DefaultFile()
	}

	var typed any = value
	switch key {
	case KeyAIEnabled:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config.Set: %s: %w", key, err)
		}
		typed = b
	case KeyCriticalNamespaces:
		typed = splitList([]string{value})
	}

	v := viper.New()
	v.SetConfigFile(file)
	v.SetConfigType(fileType)
	if _, err := os.Stat(file); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config.Set: reading %s: %w", file, err)
		}
	}
	v.Set(key, typed)

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("config.Set: creating config directory: %w", err)
	}
	if err := v.WriteConfigAs(file); err != nil {
		return fmt.Errorf("config.Set: writing config file: %w", err)
	}
	return nil
}

// splitList accepts both YAML lists and comma or space separated strings.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
			out = append(out, f)
		}
	}
	return out
}

func expandHome(p string) string {
	p = strings.TrimSpace(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
