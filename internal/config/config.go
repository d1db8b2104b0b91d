// Package config loads the registry settings from the config file, the
// environment and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/redbco/mlregistry/internal/connector"
	"github.com/redbco/mlregistry/internal/schema"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	dirName   = ".mlregistry"
	fileName  = "config"
	fileType  = "yaml"
	envPrefix = "MLREGISTRY"

	// CredentialsEnv names the service account key file.
	CredentialsEnv = "SERVICE_ACCOUNT_CREDENTIALS"
)

// Config holds the registry settings.
type Config struct {
	Project             string `mapstructure:"project" yaml:"project"`
	Dataset             string `mapstructure:"dataset" yaml:"dataset"`
	Table               string `mapstructure:"table" yaml:"table"`
	Region              string `mapstructure:"region" yaml:"region"`
	Location            string `mapstructure:"location" yaml:"location"`
	CredentialsFile     string `mapstructure:"credentials_file" yaml:"credentials_file"`
	LogLevel            string `mapstructure:"log_level" yaml:"log_level"`
	SkipPermissionCheck bool   `mapstructure:"skip_permission_check" yaml:"skip_permission_check"`

	// StrictFeatureImportance rejects non-tree models for tables that store
	// feature importance.
	StrictFeatureImportance bool `mapstructure:"strict_feature_importance" yaml:"strict_feature_importance"`

	// ArchiveBucket and ArchivePrefix locate model snapshots in Cloud Storage.
	ArchiveBucket string `mapstructure:"archive_bucket" yaml:"archive_bucket"`
	ArchivePrefix string `mapstructure:"archive_prefix" yaml:"archive_prefix"`

	Sections schema.Config `mapstructure:"sections" yaml:"sections"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Table:         "model_registry",
		Region:        "us",
		LogLevel:      "info",
		ArchivePrefix: "mlregistry",
		Sections:      schema.DefaultConfig(),
	}
}

// Dir returns the config directory (~/.mlregistry).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return dirName
	}
	return filepath.Join(home, dirName)
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// flagKeys maps command line flag names to config keys.
var flagKeys = map[string]string{
	"project":               "project",
	"dataset":               "dataset",
	"table":                 "table",
	"region":                "region",
	"location":              "location",
	"credentials":           "credentials_file",
	"log-level":             "log_level",
	"skip-permission-check": "skip_permission_check",
	"strict":                "strict_feature_importance",
	"bucket":                "archive_bucket",
	"prefix":                "archive_prefix",
}

// Load reads the config file at path (a missing file is not an error),
// applies MLREGISTRY_* environment variables and then any flags that were set.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetConfigFile(path)
	v.SetConfigType(fileType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("credentials_file", envPrefix+"_CREDENTIALS_FILE", CredentialsEnv); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("project", d.Project)
	v.SetDefault("dataset", d.Dataset)
	v.SetDefault("table", d.Table)
	v.SetDefault("region", d.Region)
	v.SetDefault("location", d.Location)
	v.SetDefault("credentials_file", d.CredentialsFile)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("skip_permission_check", d.SkipPermissionCheck)
	v.SetDefault("strict_feature_importance", d.StrictFeatureImportance)
	v.SetDefault("archive_bucket", d.ArchiveBucket)
	v.SetDefault("archive_prefix", d.ArchivePrefix)
	v.SetDefault("sections.feature_importance", d.Sections.FeatureImportance)
	v.SetDefault("sections.evaluation", d.Sections.Evaluation)
	v.SetDefault("sections.training_info", d.Sections.TrainingInfo)
	v.SetDefault("sections.hyperparameters", d.Sections.Hyperparameters)
	v.SetDefault("sections.tuning_info", d.Sections.TuningInfo)
}

// Validate checks that the registry table is fully addressed.
func (c *Config) Validate() error {
	var missing []string
	if c.Project == "" {
		missing = append(missing, "project")
	}
	if c.Dataset == "" {
		missing = append(missing, "dataset")
	}
	if c.Table == "" {
		missing = append(missing, "table")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", connector.ErrInvalidConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// TableRef returns the registry table address.
func (c *Config) TableRef() connector.TableRef {
	return connector.TableRef{Project: c.Project, Dataset: c.Dataset, TableID: c.Table}
}

// WriteFile saves the config as YAML, creating the directory if needed.
func (c *Config) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
