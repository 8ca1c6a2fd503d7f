// Command rheobench reduces capillary rheometer measurements to corrected
// flow curves and fitted rheological models.
package main

//
// Main
//

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alexshd/rheobench/internal/config"
	"github.com/alexshd/rheobench/internal/logger"
)

// app is the state shared by every subcommand.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
	prompt     prompter
	logOutput  io.Writer // nil logs to stderr
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.logOutput != nil {
		a.logger, err = logger.New(a.logOutput, cfg.Log)
		if err == nil {
			slog.SetDefault(a.logger)
		}
	} else {
		a.logger, err = logger.Setup(cfg.Log)
	}
	return err
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "rheobench",
		Short:         "Capillary rheometry: Bagley, Mooney and Rabinowitsch corrections and model fitting",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")

	root.AddCommand(
		analyzeSubcommand(a),
		bagleySubcommand(a),
		mooneySubcommand(a),
		fitSubcommand(a),
		outliersSubcommand(a),
		aggregateSubcommand(a),
		convertSubcommand(a),
		sessionsSubcommand(a),
	)
	return root
}

func main() {
	a := &app{prompt: surveyPrompter{}}
	if err := newRootCommand(a).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rheobench: %v\n", err)
		os.Exit(1)
	}
}
