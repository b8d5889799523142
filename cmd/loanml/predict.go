package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/loanml/bundle"
	"github.com/YuminosukeSato/loanml/loan"
	"github.com/YuminosukeSato/loanml/pkg/errors"
	"github.com/YuminosukeSato/loanml/pkg/log"
)

func (a *app) predictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict [file]",
		Short: "Score loan applications with a saved bundle",
		Long: `Read one JSON application object, or an array of them, from file (or stdin
when file is omitted or "-") and print the decision for each. Fields left
out of an application are imputed the way the training data was.`,
		Example: `  echo '{"Credit_History": 1, "ApplicantIncome": 4500}' | loanml predict
  loanml predict --bundle loan_model.gob applications.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.Wrap(err, "failed to open applications")
				}
				defer f.Close()
				in = f
			}
			return a.runPredict(cmd, in)
		},
	}

	cmd.Flags().String("bundle", "", "model bundle (default loan_model.gob)")
	bindFlag(cmd.Flags(), "bundle", "output.bundle")
	return cmd
}

func (a *app) runPredict(cmd *cobra.Command, in io.Reader) error {
	apps, single, err := readApplications(in)
	if err != nil {
		return err
	}
	for i, app := range apps {
		if err := app.Validate(); err != nil {
			return errors.Wrapf(err, "application %d", i)
		}
	}

	b, err := bundle.Load(a.cfg.Output.Bundle)
	if err != nil {
		return err
	}
	a.logger.Debug("Bundle loaded",
		log.PathKey, a.cfg.Output.Bundle,
		log.ModelNameKey, b.Metadata.ModelName,
	)

	preds, err := b.PredictApplications(apps)
	if err != nil {
		return err
	}
	for i := range preds {
		preds[i] = preds[i].Rounded()
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if single {
		return enc.Encode(preds[0])
	}
	return enc.Encode(preds)
}

// readApplications accepts a single object or an array. single reports
// which one it was.
func readApplications(r io.Reader) (apps []loan.Application, single bool, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to read applications")
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, false, errors.NewValueError("predict", "no applications given")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if data[0] == '[' {
		if err := dec.Decode(&apps); err != nil {
			return nil, false, errors.Wrap(err, "invalid applications")
		}
		if len(apps) == 0 {
			return nil, false, errors.NewValueError("predict", "no applications given")
		}
		return apps, false, nil
	}

	var app loan.Application
	if err := dec.Decode(&app); err != nil {
		return nil, false, errors.Wrap(err, "invalid application")
	}
	return []loan.Application{app}, true, nil
}
