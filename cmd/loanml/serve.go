package main

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/loanml/bundle"
	"github.com/YuminosukeSato/loanml/server"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		Long: `Load a model bundle and serve it until interrupted:

  GET  /healthz
  GET  /api/v1/model
  POST /api/v1/predict
  POST /api/v1/predict/batch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := bundle.Load(a.cfg.Server.Bundle)
			if err != nil {
				return err
			}

			opts := server.OptionsFromConfig(a.cfg.Server)
			opts.Logger = a.logger
			s, err := server.New(b, opts)
			if err != nil {
				return err
			}
			return s.Run(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.String("addr", "", "listen address (default :8080)")
	f.String("bundle", "", "model bundle (default loan_model.gob)")
	f.String("mode", "", "gin mode: debug, release or test")
	f.StringSlice("cors-origin", nil, "browser origin allowed to call the API, repeatable")
	bindFlag(f, "addr", "server.addr")
	bindFlag(f, "bundle", "server.bundle")
	bindFlag(f, "mode", "server.mode")
	bindFlag(f, "cors-origin", "server.cors_origins")
	return cmd
}
