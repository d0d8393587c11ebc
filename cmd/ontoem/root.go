package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cnclabs/ontoem/internal/logging"
)

var (
	logLevel string
	logJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "ontoem",
	Short: "ontoem - embeddings of OWL ontology axioms",
	Long: `ontoem learns vector-space embeddings of the EL axioms of an OWL ontology
and evaluates them on protein-protein interaction and subsumption prediction.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log_level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log_json", false, "Log as JSON")
}

func Execute() error {
	return rootCmd.Execute()
}

func newLogger() (*zap.Logger, error) {
	return logging.New(logLevel, logJSON)
}
