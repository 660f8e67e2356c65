package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var outDir, font string

	rootCmd := &cobra.Command{
		Use:           "abstkit",
		Short:         "Research abstract toolkit: tables, Batch API jobs, morphology and scoring",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil {
				logger.Debug("[CLI] no .env file found, using system environment variables")
			}
			return setupEnv(outDir, font)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeEnv()
		},
	}
	rootCmd.PersistentFlags().StringVar(&outDir, "out", "", "Output directory (default OUTPUT_DIR)")
	rootCmd.PersistentFlags().StringVar(&font, "font", "", "TTF font for chart labels (default CHART_FONT)")

	rootCmd.AddCommand(
		newTokensCmd(),
		newExtractCmd(),
		newBatchCmd(),
		newTermsCmd(),
		newCSVCmd(),
		newReadabilityCmd(),
		newMorphCmd(),
		newCorpusCmd(),
		newRewriteCmd(),
		newClassifyCmd(),
		newLabelsCmd(),
		newExpressionsCmd(),
		newSynthCmd(),
		newScoreCmd(),
		newUsageCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		closeEnv()
		os.Exit(1)
	}
}
