package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"idlecraft.ai/internal/observability"
)

// Config is the merged view of flags, IDLECRAFT_* env vars and idlecraft.yaml.
type Config struct {
	Configs   string `mapstructure:"configs"`
	Tuning    string `mapstructure:"tuning"`
	Data      string `mapstructure:"data"`
	Addr      string `mapstructure:"addr"`
	DisableDB bool   `mapstructure:"disable_db"`
	Resume    bool   `mapstructure:"resume"`
	Seed      int64  `mapstructure:"seed"`

	Log observability.LogConfig `mapstructure:"log"`
}

func (c Config) TuningPath() string {
	if strings.TrimSpace(c.Tuning) != "" {
		return c.Tuning
	}
	return filepath.Join(c.Configs, "tuning.yaml")
}

func (c Config) SnapshotDir() string { return filepath.Join(c.Data, "snapshots") }
func (c Config) IndexPath() string   { return filepath.Join(c.Data, "index", "idlecraft.sqlite") }

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:           "idlecraft",
		Short:         "Autonomous idle-game agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeConfig(v, cfgFile)
		},
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./idlecraft.yaml)")
	root.PersistentFlags().String("configs", "./configs", "world data and tuning directory")
	root.PersistentFlags().String("data", "./data", "runtime data directory")
	_ = v.BindPFlag("configs", root.PersistentFlags().Lookup("configs"))
	_ = v.BindPFlag("data", root.PersistentFlags().Lookup("data"))

	def := observability.DefaultLogConfig()
	v.SetDefault("log.level", def.Level)
	v.SetDefault("log.format", def.Format)
	v.SetDefault("log.max_size_mb", def.MaxSizeMB)
	v.SetDefault("log.max_backups", def.MaxBackups)
	v.SetDefault("log.max_age_days", def.MaxAgeDays)
	v.SetDefault("log.compress", def.Compress)

	root.AddCommand(newRunCmd(v), newInspectCmd(v))
	return root
}

func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("idlecraft")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("IDLECRAFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func loadConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
