package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"imgconv"
	"imgconv/internal/config"
	"imgconv/internal/logger"
)

// configKey is the flag annotation naming the configuration key a flag overrides.
const configKey = "imgconv_config_key"

type cli struct {
	configPath string
	logLevel   string

	cfg  config.Config
	opts []imgconv.Option
	log  logger.Log
}

func main() {
	c := &cli{}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.root().ExecuteContext(ctx); err != nil {
		log := c.log
		if log == nil {
			log, _ = logger.New(config.Default().Log)
		}
		log.Error(err, "Command failed.")
		stop()
		os.Exit(1)
	}
}

func (c *cli) root() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "imgconv",
		Short:             "Convert images between formats",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.initConfig,
	}

	cmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to a YAML configuration file")
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error")
	bindFlag(cmd.PersistentFlags().Lookup("log-level"), "log.level")

	cmd.AddCommand(
		c.convertCommand(),
		c.guessCommand(),
		c.formatsCommand(),
		c.benchCommand(),
		c.serveCommand(),
		c.workerCommand(),
	)
	return cmd
}

// bindFlag makes a changed flag override the configuration key.
func bindFlag(f *pflag.Flag, key string) {
	if f.Annotations == nil {
		f.Annotations = map[string][]string{}
	}
	f.Annotations[configKey] = []string{key}
}

func (c *cli) initConfig(cmd *cobra.Command, args []string) error {
	keys := map[string]string{}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := f.Annotations[configKey]; ok && len(key) == 1 {
			keys[f.Name] = key[0]
		}
	})

	cfg, err := config.Load(c.configPath, cmd.Flags(), keys)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}

	opts, err := cfg.Convert.Options()
	if err != nil {
		return err
	}

	c.cfg = cfg
	c.opts = opts
	c.log = log.WithField(logger.FieldPackage, "main")
	return nil
}
