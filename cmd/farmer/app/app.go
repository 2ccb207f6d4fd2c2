// Package app builds the farmer command tree.
package app

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/reef-pi/farmer/cmd/farmer/app/options"
	"github.com/reef-pi/farmer/controller/daemon"
	"github.com/reef-pi/farmer/pkg/log"
)

const (
	commandName = "farmer"
	envPrefix   = "FARMER"
	commandDesc = `farmer runs the vertical-farming rig: the position registry, the
relocation robot, the light and pump scheduler and sensor telemetry.`
)

// NewFarmerCommand returns the root command.
func NewFarmerCommand() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:           commandName,
		Short:         "Vertical-farming rig controller",
		Long:          commandDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to a YAML configuration file.")
	cmd.AddCommand(newServeCommand(&cfgFile), newConfigCommand())
	return cmd
}

func newServeCommand(cfgFile *string) *cobra.Command {
	opts := options.NewFarmOptions()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the farm daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			if err := loadConfig(v, cmd, *cfgFile, opts); err != nil {
				return err
			}
			cfg, err := opts.Config()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			log.Init(opts.Log)
			if *cfgFile != "" {
				watchLogLevel(v)
			}

			farm, err := daemon.New(cfg)
			if err != nil {
				log.Error(err, "Failed to set up farm")
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return farm.Run(ctx)
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

// loadConfig layers the config file and FARMER_* environment variables under
// explicitly set flags and decodes the result into opts.
func loadConfig(v *viper.Viper, cmd *cobra.Command, cfgFile string, opts *options.FarmOptions) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}
	if err := v.Unmarshal(opts); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// watchLogLevel applies log.level changes in the config file without a
// restart. Other settings need a restart.
func watchLogLevel(v *viper.Viper) {
	v.OnConfigChange(func(e fsnotify.Event) {
		level := v.GetString("log.level")
		log.SetLevel(level)
		log.Info("Configuration changed", "file", e.Name, "log.level", level)
	})
	v.WatchConfig()
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "defaults",
		Short: "Print the default configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(options.NewFarmOptions())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	return cmd
}
