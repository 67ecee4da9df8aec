package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/greetings/pkg/debug"
)

// searchPaths are tried in order when neither an explicit path nor
// GREETINGS_CONFIG names a config file.
var searchPaths = []string{"config.yaml", "/etc/greetings/config.yaml"}

// Load builds the configuration in layers: defaults, then the YAML file,
// then GREETINGS_* environment variables, then *_file secrets. The result
// is validated before it is returned.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if path := findConfigFile(configPath); path != "" {
		if err := decodeYAMLFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		debug.Log("config", "loaded config file", "path", path)
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := resolveSecrets(&cfg); err != nil {
		return nil, fmt.Errorf("secret files: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// findConfigFile returns the explicit path, then GREETINGS_CONFIG, then
// the first existing search path, or "" for none.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("GREETINGS_CONFIG"); p != "" {
		return p
	}
	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// decodeYAMLFile decodes path over cfg. Keys that match no field are
// rejected so typos do not silently fall back to defaults.
func decodeYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// envVar binds one environment variable to a setter.
type envVar struct {
	name string
	set  func(cfg *Config, v string) error
}

var envVars = []envVar{
	{"GREETINGS_HOST", func(c *Config, v string) error { c.Server.Host = v; return nil }},
	{"GREETINGS_PORT", intInto(func(c *Config) *int { return &c.Server.Port })},
	{"GREETINGS_READ_TIMEOUT", durationInto(func(c *Config) *time.Duration { return &c.Server.ReadTimeout })},
	{"GREETINGS_WRITE_TIMEOUT", durationInto(func(c *Config) *time.Duration { return &c.Server.WriteTimeout })},
	{"GREETINGS_SHUTDOWN_TIMEOUT", durationInto(func(c *Config) *time.Duration { return &c.Server.ShutdownTimeout })},
	{"GREETINGS_MAX_DELAY", durationInto(func(c *Config) *time.Duration { return &c.Greeting.MaxDelay })},
	{"GREETINGS_STORAGE", func(c *Config, v string) error { c.Storage.Type = v; return nil }},
	{"GREETINGS_STORAGE_SIZE", intInto(func(c *Config) *int { return &c.Storage.MaxSize })},
	{"GREETINGS_POSTGRES_DSN", func(c *Config, v string) error { c.Storage.Postgres.DSN = v; return nil }},
	{"GREETINGS_AUTH_TYPE", func(c *Config, v string) error { c.Auth.Type = v; return nil }},
	{"GREETINGS_JWT_SECRET", func(c *Config, v string) error { c.Auth.JWT.Secret = v; return nil }},
	{"GREETINGS_API_KEYS", func(c *Config, v string) error {
		var keys []APIKeyConfig
		if err := json.Unmarshal([]byte(v), &keys); err != nil {
			return fmt.Errorf("not a JSON array of keys: %w", err)
		}
		if len(keys) > 0 {
			c.Auth.APIKeys = keys
		}
		return nil
	}},
	{"GREETINGS_RATE_LIMIT_RPM", intInto(func(c *Config) *int { return &c.Auth.RateLimit.DefaultRPM })},
	{"GREETINGS_METRICS_ENABLED", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%q is not a boolean", v)
		}
		c.Observability.Metrics.Enabled = b
		return nil
	}},
	{"GREETINGS_LOG_FORMAT", func(c *Config, v string) error { c.Logging.Format = v; return nil }},
}

func intInto(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%q is not an integer", v)
		}
		*field(c) = n
		return nil
	}
}

func durationInto(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%q is not a duration", v)
		}
		*field(c) = d
		return nil
	}
}

// applyEnv applies every set variable in envVars. All malformed values
// are reported together.
func applyEnv(cfg *Config) error {
	var errs []error
	for _, ev := range envVars {
		v := os.Getenv(ev.name)
		if v == "" {
			continue
		}
		if err := ev.set(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ev.name, err))
			continue
		}
		debug.Log("config", "environment override", "var", ev.name)
	}
	return errors.Join(errs...)
}

// secretRef points a *_file setting at the value it fills.
type secretRef struct {
	key  string
	file string
	dst  *string
}

// resolveSecrets reads each *_file setting into its value field unless
// the value is already set. File contents are trimmed.
func resolveSecrets(cfg *Config) error {
	refs := []secretRef{
		{"storage.postgres.dsn_file", cfg.Storage.Postgres.DSNFile, &cfg.Storage.Postgres.DSN},
		{"auth.jwt.secret_file", cfg.Auth.JWT.SecretFile, &cfg.Auth.JWT.Secret},
	}
	for i := range cfg.Auth.APIKeys {
		k := &cfg.Auth.APIKeys[i]
		refs = append(refs, secretRef{fmt.Sprintf("auth.api_keys[%d].key_file", i), k.KeyFile, &k.Key})
	}

	var errs []error
	for _, ref := range refs {
		if ref.file == "" || *ref.dst != "" {
			continue
		}
		data, err := os.ReadFile(ref.file)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ref.key, err))
			continue
		}
		*ref.dst = strings.TrimSpace(string(data))
	}
	return errors.Join(errs...)
}
