package main

import (
	"fmt"
	"os"

	"github.com/fjod/chaos-shop/internal/config"
	"github.com/fjod/chaos-shop/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Version = "dev"

// cli carries the configuration shared by every subcommand.
type cli struct {
	v          *viper.Viper
	configPath string
	cfg        *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.New()}

	rootCmd := &cobra.Command{
		Use:           "chaos-shop",
		Short:         "Demo storefront with switchable faults for observability drills",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.v, c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			logger.Init(cfg.Log.Level, "chaos-shop")
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = c.v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(serveCmd(c))
	rootCmd.AddCommand(migrateCmd(c))
	rootCmd.AddCommand(seedCmd(c))
	rootCmd.AddCommand(chaosCmd(c))

	return rootCmd
}
