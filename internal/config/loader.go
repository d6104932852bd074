package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config file names, in lookup order.
const (
	ConfigFileName    = "leaptable.yaml"
	ConfigFileNameAlt = "leaptable.yml"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates nesting levels: LEAPTABLE_INDEX__HOST sets index.host.
const EnvPrefix = "LEAPTABLE_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// flagKeys maps CLI flag names whose config key is not the snake_case
// form of the flag name.
var flagKeys = map[string]string{
	"state":            "state_path",
	"env":              "environment",
	"index-type":       "index.type",
	"index-host":       "index.host",
	"index-port":       "index.port",
	"index-database":   "index.database",
	"index-user":       "index.user",
	"index-password":   "index.password",
	"lock-backend":     "lock.backend",
	"max-facet-values": "facets.max_values",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from defaults, the config file, environment
// variables and flags, in increasing precedence. cfgFile may be empty, in
// which case leaptable.yaml is searched for upward from the working
// directory. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, *Source, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	src := &Source{}
	if cfgFile == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfgFile = findConfigUpward(cwd)
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
		src.File = cfgFile
	}

	if name := selectedEnvironment(k, flags); name != "" {
		if k.Exists("environments." + name) {
			if err := k.Merge(k.Cut("environments." + name)); err != nil {
				return nil, nil, fmt.Errorf("failed to apply environment %s: %w", name, err)
			}
			src.Environment = name
		}
	}

	// LEAPTABLE_WORKER__MAX_RETRIES -> worker.max_retries
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			if key, ok := flagKeys[f.Name]; ok {
				return key, posflag.FlagVal(flags, f)
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.ProjectRoot = projectRoot(src.File)

	switch {
	case cfg.StatePath == ":memory:":
	case flags != nil && flags.Changed("state"):
		// flag paths are relative to the working directory
		if abs, err := filepath.Abs(cfg.StatePath); err == nil {
			cfg.StatePath = abs
		}
	default:
		cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, cfg.ProjectRoot)
	}
	for _, t := range []*TargetConfig{cfg.Index, cfg.Lock.Postgres} {
		expandTargetEnvVars(t)
		ApplyTargetDefaults(t)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, src, nil
}

// Source records where configuration was read from.
type Source struct {
	// File is the config file used, or empty when none was found.
	File string
	// Environment is the environment whose overrides were applied.
	Environment string
}

// selectedEnvironment peeks at the environment name before env vars and
// flags are layered, so that its overrides sit beneath both.
func selectedEnvironment(k *koanf.Koanf, flags *pflag.FlagSet) string {
	if flags != nil && flags.Changed("env") {
		if v, err := flags.GetString("env"); err == nil {
			return v
		}
	}
	if v := os.Getenv(EnvPrefix + "ENVIRONMENT"); v != "" {
		return v
	}
	return k.String("environment")
}

// expandEnvVars expands ${VAR} patterns. Unset variables are left as is.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

// expandTargetEnvVars expands environment variables in credential fields.
func expandTargetEnvVars(t *TargetConfig) {
	if t == nil {
		return
	}
	t.Host = expandEnvVars(t.Host)
	t.Database = expandEnvVars(t.Database)
	t.User = expandEnvVars(t.User)
	t.Password = expandEnvVars(t.Password)
}

func configExistsIn(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// findConfigUpward searches startDir and its parents for a config file.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if p := configExistsIn(dir); p != "" {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// projectRoot is the directory of the config file, or the working
// directory when there is none.
func projectRoot(cfgFile string) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
