package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFileNames are searched, in order, when no file is given.
var ConfigFileNames = []string{"todo.yaml", "todo.yml", "todo.toml"}

// LoadOptions controls where Load looks.
type LoadOptions struct {
	// Dir is searched for .env and config files. Default ".".
	Dir string

	// ConfigFile, if set, must exist and replaces the search.
	ConfigFile string

	// Overrides are applied last (CLI flags). Zero fields are ignored.
	Overrides Config

	// LookupEnv reads the environment. Default os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load merges all sources and validates the result.
func Load(opts LoadOptions) (*Config, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}

	cfg := Default()

	dotenv, err := readDotEnv(filepath.Join(opts.Dir, ".env"))
	if err != nil {
		return nil, err
	}
	cfg.apply(fromEnv(func(k string) (string, bool) {
		v, ok := dotenv[k]
		return v, ok
	}))

	path := opts.ConfigFile
	if path == "" {
		path = findConfigFile(opts.Dir)
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	cfg.apply(fromEnv(opts.LookupEnv))
	cfg.apply(opts.Overrides)

	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = []string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readDotEnv(path string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return env, nil
}

func findConfigFile(dir string) string {
	for _, name := range ConfigFileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// loadFile decodes path over cfg. Keys absent from the file keep their
// current values; unknown keys are an error.
func loadFile(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("unknown keys: %v", undecoded)
		}
		return nil
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		return dec.Decode(cfg)
	default:
		return fmt.Errorf("unsupported config format %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

// fromEnv reads the environment into a Config of overrides.
func fromEnv(lookup func(string) (string, bool)) Config {
	get := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				return v
			}
		}
		return ""
	}

	var o Config
	o.Backend = Backend(get("TODO_BACKEND"))
	o.Addr = get("TODO_ADDR")
	if o.Addr == "" {
		if port := get("PORT"); port != "" {
			o.Addr = ":" + port
		}
	}
	o.Database = get("TODO_DB")
	o.DataDir = get("TODO_DATA_DIR")
	o.MongoURI = get("TODO_MONGODB_URI", "MONGODB_URI", "VITE_MONGODB_URI")
	o.MongoDatabase = get("TODO_MONGODB_DATABASE")
	o.APIURL = get("TODO_API_URL", "VITE_API_URL")
	o.Timeout = get("TODO_TIMEOUT")
	if v := get("TODO_ALLOWED_ORIGINS"); v != "" {
		o.AllowedOrigins = splitList(v)
	}
	o.LogLevel = get("TODO_LOG_LEVEL")
	return o
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
