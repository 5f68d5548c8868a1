package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"headtrack/internal/config"
)

// configEnv names a config file when --config is not given.
const configEnv = "HEADTRACK_CONFIG"

type app struct {
	configPath string
	debug      bool
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "headtrack",
		Short:        "head orientation tracker",
		Long:         "headtrack fuses accelerometer, gyroscope and magnetometer samples into a predicted head pose.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to YAML config (default $"+configEnv+", else built-in defaults)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "toggle debug logging")

	root.AddCommand(newRunCmd(a), newProbeCmd(a), newConfigCmd(a))
	return root
}

func (a *app) load() error {
	path := a.configPath
	if path == "" {
		path = os.Getenv(configEnv)
	}
	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("config load failed: %w", err)
		}
	}
	if a.debug {
		cfg.Log.Level = log.DebugLevel.String()
	}
	a.cfg = cfg
	return setupLogging(cfg.Log)
}

func setupLogging(cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if cfg.JSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration",
		Long:  "config prints the configuration after defaults are applied, as YAML.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}
