// Package config loads usdassemble settings from a YAML file, the
// environment and command-line overrides, and turns them into the values
// the pipeline is built from.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/chazu/usdassemble/pkg/asset"
	"github.com/chazu/usdassemble/pkg/compose"
	"github.com/chazu/usdassemble/pkg/logging"
	"github.com/chazu/usdassemble/pkg/scene"
	"github.com/chazu/usdassemble/pkg/scene/pxr"
	"github.com/chazu/usdassemble/pkg/scene/usda"
	"github.com/chazu/usdassemble/pkg/template"
)

const (
	// FileName is the configuration file base name searched for.
	FileName = "usdassemble"
	// EnvPrefix prefixes environment overrides, e.g. USDASSEMBLE_WORKERS.
	EnvPrefix = "USDASSEMBLE"

	BackendUSDA = "usda"
	BackendPXR  = "pxr"
)

// Config is the resolved configuration.
type Config struct {
	TemplateDir     string         `mapstructure:"template_dir"`
	TaxonomyFile    string         `mapstructure:"taxonomy_file"`
	SceneBackend    string         `mapstructure:"scene_backend"`
	RenderPrim      string         `mapstructure:"render_prim"`
	UpAxis          string         `mapstructure:"up_axis"`
	MetersPerUnit   string         `mapstructure:"meters_per_unit"`
	Workers         int            `mapstructure:"workers"`
	BestEffort      []string       `mapstructure:"best_effort"`
	MetricsTextfile string         `mapstructure:"metrics_textfile"`
	Log             logging.Config `mapstructure:"log"`

	// File is the configuration file that was read, if any.
	File string `mapstructure:"-"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	opts := compose.DefaultOptions()
	best := make([]string, len(opts.BestEffort))
	for i, s := range opts.BestEffort {
		best[i] = string(s)
	}
	return Config{
		SceneBackend:  BackendUSDA,
		RenderPrim:    opts.RenderPrim,
		UpAxis:        opts.UpAxis,
		MetersPerUnit: opts.MetersPerUnit,
		Workers:       runtime.NumCPU(),
		BestEffort:    best,
		Log:           logging.DefaultConfig(),
	}
}

// New returns a viper instance with defaults and environment binding set.
// Command-line flags are bound onto it by the caller before Load.
func New() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault("template_dir", d.TemplateDir)
	v.SetDefault("taxonomy_file", d.TaxonomyFile)
	v.SetDefault("scene_backend", d.SceneBackend)
	v.SetDefault("render_prim", d.RenderPrim)
	v.SetDefault("up_axis", d.UpAxis)
	v.SetDefault("meters_per_unit", d.MetersPerUnit)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("best_effort", d.BestEffort)
	v.SetDefault("metrics_textfile", d.MetricsTextfile)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output_path", d.Log.OutputPath)
	v.SetDefault("log.development", d.Log.Development)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration file into v and decodes the result. An
// explicit path must exist; otherwise usdassemble.yaml is looked up in the
// working directory and in ~/.config/usdassemble, and its absence is not an
// error.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		v.SetConfigFile(expanded)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	c.File = v.ConfigFileUsed()

	for _, p := range []*string{&c.TemplateDir, &c.TaxonomyFile, &c.MetricsTextfile, &c.Log.OutputPath} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		*p = expanded
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	var errs []error
	switch c.SceneBackend {
	case BackendUSDA, BackendPXR:
	default:
		errs = append(errs, fmt.Errorf("config: scene_backend %q is not one of %s, %s", c.SceneBackend, BackendUSDA, BackendPXR))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("config: workers must be at least 1, got %d", c.Workers))
	}
	if err := c.ComposeOptions().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ComposeOptions returns the authoring options.
func (c Config) ComposeOptions() compose.Options {
	best := make([]compose.Stage, len(c.BestEffort))
	for i, s := range c.BestEffort {
		best[i] = compose.Stage(s)
	}
	return compose.Options{
		RenderPrim:    c.RenderPrim,
		BestEffort:    best,
		UpAxis:        c.UpAxis,
		MetersPerUnit: c.MetersPerUnit,
	}
}

// Profile loads the taxonomy file, or returns the built-in profile.
func (c Config) Profile() (asset.Profile, error) {
	if c.TaxonomyFile == "" {
		return asset.DefaultProfile(), nil
	}
	f, err := os.Open(c.TaxonomyFile)
	if err != nil {
		return asset.Profile{}, fmt.Errorf("config: taxonomy: %w", err)
	}
	defer f.Close()
	p, err := asset.LoadProfile(f)
	if err != nil {
		return asset.Profile{}, fmt.Errorf("config: %s: %w", c.TaxonomyFile, err)
	}
	return p, nil
}

// Templates returns the configured template tree after checking that every
// template is present.
func (c Config) Templates() (*template.Set, error) {
	set := template.Default()
	if c.TemplateDir != "" {
		var err error
		if set, err = template.FromDir(c.TemplateDir); err != nil {
			return nil, err
		}
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// Scene returns the configured scene backend.
func (c Config) Scene() (scene.Backend, error) {
	switch c.SceneBackend {
	case BackendPXR:
		return pxr.New()
	default:
		return usda.New(), nil
	}
}
