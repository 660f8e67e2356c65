package main

import (
	"fmt"

	"abstkit/adapters/chart"
	"abstkit/internal/termfreq"

	"github.com/spf13/cobra"
)

const (
	combinedTermsFile   = "combined_terms.csv"
	termFrequencyFile   = "term_frequencies.csv"
	termHistogramFile   = "term_histogram.png"
	defaultHistogramTop = 1500
)

func newTermsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "terms",
		Short: "Count, merge and plot extracted term lists",
	}

	count := &cobra.Command{
		Use:   "count [files...]",
		Short: "Rank the terms of comma-separated term files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			terms, err := termfreq.ReadTerms(args...)
			if err != nil {
				return err
			}
			entries := termfreq.Count(terms)
			out := outPath(termFrequencyFile)
			if err := termfreq.SaveRanking(out, entries); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d terms, %d unique -> %s\n", len(terms), len(entries), out)
			return nil
		},
	}

	merge := &cobra.Command{
		Use:   "merge [dir]",
		Short: "Combine every term list in a directory and rank the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := termfreq.Merge(args[0], logger)
			if err != nil {
				return err
			}
			combined := outPath(combinedTermsFile)
			if err := termfreq.WriteCombined(combined, res.Terms); err != nil {
				return err
			}
			ranking := outPath(termFrequencyFile)
			if err := termfreq.SaveRanking(ranking, res.Ranking); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d files, %d terms, %d unique -> %s, %s\n", len(res.Files), len(res.Terms), len(res.Ranking), combined, ranking)
			return nil
		},
	}

	var top int
	plot := &cobra.Command{
		Use:   "plot [ranking.csv]",
		Short: "Bar chart of term frequency by rank",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := termfreq.ReadRanking(args[0])
			if err != nil {
				return err
			}
			entries = termfreq.Top(entries, top)
			chartFont()
			out := outPath(termHistogramFile)
			title := fmt.Sprintf("Term Frequency by Ranking (Top %d)", len(entries))
			if err := chart.RankBars(out, title, termfreq.Counts(entries)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	plot.Flags().IntVar(&top, "top", defaultHistogramTop, "Ranks to plot")

	cmd.AddCommand(count, merge, plot)
	return cmd
}
