package main

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/loanml/pkg/config"
	"github.com/YuminosukeSato/loanml/pkg/errors"
	"github.com/YuminosukeSato/loanml/pkg/log"
)

// viperKeyAnnotation marks a flag with the config key it overrides. Only the
// flags of the command being run are bound, so two commands may use the same
// flag name for different keys.
const viperKeyAnnotation = "loanml/viper-key"

// app holds the state shared by all subcommands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string

	cfg       *config.Config
	logger    log.Logger
	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "loanml",
		Short: "Loan approval model training and prediction",
		Long: `loanml trains six classifiers on a loan application dataset, keeps the most
accurate one together with its preprocessing, and scores new applications
from the command line or over HTTP.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: ./loanml.yaml or $HOME/.config/loanml/config.yaml)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (console, json)")
	pf.String("log-file", "", "also write JSON logs to this rotating file")
	bindFlag(pf, "log-level", "logging.level")
	bindFlag(pf, "log-format", "logging.format")
	bindFlag(pf, "log-file", "logging.file")

	root.AddCommand(a.trainCmd(), a.predictCmd(), a.serveCmd(), versionCmd())
	return root
}

func bindFlag(fs *pflag.FlagSet, name, key string) {
	_ = fs.SetAnnotation(name, viperKeyAnnotation, []string{key})
}

// setup binds the running command's flags, loads the configuration and
// installs the process logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if keys, ok := f.Annotations[viperKeyAnnotation]; ok && bindErr == nil {
			bindErr = a.v.BindPFlag(keys[0], f)
		}
	})
	if bindErr != nil {
		return errors.Wrap(bindErr, "failed to bind flags")
	}

	if err := config.Init(a.v, a.cfgFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, closer, err := log.Setup(log.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cmd.ErrOrStderr(),
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return errors.Wrap(err, "failed to setup logging")
	}
	a.logger = logger
	a.logCloser = closer
	logger.Debug("Configuration loaded", "config_file", a.v.ConfigFileUsed())
	return nil
}

func (a *app) teardown(_ *cobra.Command, _ []string) error {
	if a.logCloser == nil {
		return nil
	}
	return a.logCloser.Close()
}
