// Package config loads module.Options the way a real deployment would: a
// TOML config file, MODULECTL_-prefixed environment variables, and command
// line flags, layered with github.com/spf13/viper.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	module "github.com/rpm-software-management/module-container-go"
)

const envPrefix = "MODULECTL"

// Load builds a viper instance from (in ascending priority) built-in
// defaults, an optional config file found on paths, MODULECTL_* environment
// variables, and flags already parsed into fs, then decodes it into
// module.Options.
func Load(fs *pflag.FlagSet, configPaths ...string) (module.Options, error) {
	v := viper.New()

	v.SetDefault("persist-dir", "/etc/dnf/modules.d")
	v.SetDefault("max-stream-changes", 2)
	v.SetDefault("all-arch", false)
	v.SetDefault("debug-solver", false)

	v.SetConfigName("modulectl")
	v.SetConfigType("toml")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return module.Options{}, errors.Wrap(err, "reading config file")
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return module.Options{}, errors.Wrap(err, "binding flags")
		}
	}

	opts := module.Options{
		InstallRoot:      v.GetString("install-root"),
		Arch:             v.GetString("arch"),
		PersistDir:       v.GetString("persist-dir"),
		AllArch:          v.GetBool("all-arch"),
		MaxStreamChanges: uint32(v.GetInt("max-stream-changes")),
		DebugSolver:      v.GetBool("debug-solver"),
	}
	return opts.WithDefaults(), nil
}

// Flags returns a FlagSet declaring every option Load understands, for a
// CLI front end to parse and pass back into Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("modulectl", pflag.ContinueOnError)
	fs.String("install-root", "/", "path to treat as the installation root")
	fs.String("arch", "", "architecture modules are resolved for")
	fs.String("persist-dir", "/etc/dnf/modules.d", "persisted module state directory, relative to install-root")
	fs.Bool("all-arch", false, "consider modules for all architectures, not just arch")
	fs.Int("max-stream-changes", 2, "maximum stream changes per module per transaction")
	fs.Bool("debug-solver", false, "enable verbose solver diagnostics")
	return fs
}
