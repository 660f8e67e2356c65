package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"abstkit/adapters/excel"
	"abstkit/app"
	"abstkit/internal/chunk"

	"github.com/spf13/cobra"
)

func newTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Token counting helpers",
	}

	var columns []string
	var max int
	var withHTML bool
	report := &cobra.Command{
		Use:   "report [files...]",
		Short: "Report how the combined target columns pack into token-limited lists",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			counter, err := tokenCounter()
			if err != nil {
				return err
			}
			if max <= 0 {
				max = cfg.Batch.MaxInputTokens
			}
			for _, path := range args {
				t, err := excel.ReadTable(path)
				if err != nil {
					return err
				}
				values, err := chunk.CombineColumns(t, columns)
				if err != nil {
					return err
				}
				r := chunk.BuildTokenReport(path, values, counter, max)
				out := outPath(fmt.Sprintf("%s_%s_token_report.md", excel.Stamp(time.Now(), excel.StampMinute), baseName(path)))
				if err := r.Render().Save(out, withHTML || cfg.Output.ReportHTML); err != nil {
					return err
				}
				fmt.Printf("%s: %d unique, %d tokens, %d lists -> %s\n", path, r.UniqueCount, r.TotalTokens, len(r.Lists), out)
			}
			return nil
		},
	}
	report.Flags().StringSliceVar(&columns, "columns", []string{"研究目的", "研究方法", "研究成果"}, "Columns combined per row")
	report.Flags().IntVar(&max, "max", 0, "Tokens per list (default BATCH_MAX_INPUT_TOKENS)")
	report.Flags().BoolVar(&withHTML, "html", false, "Also render the report as HTML")

	cmd.AddCommand(report)
	return cmd
}

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract technical terms through the Batch API",
	}

	var columns []string
	submit := &cobra.Command{
		Use:   "submit [file]",
		Short: "Plan, submit and wait for the term extraction batches of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := openAI()
			if err != nil {
				return err
			}
			counter, err := tokenCounter()
			if err != nil {
				return err
			}
			t, err := excel.ReadTable(args[0])
			if err != nil {
				return err
			}
			svc := app.NewTermService(batchRunner(ctx, client), counter, prompts(), cfg.AI.Model, cfg.Batch)
			batches, err := svc.Plan(t, columns)
			if err != nil {
				return err
			}
			logger.Info("[CLI] %d batches planned for %s", len(batches), args[0])
			jobs, err := svc.Submit(ctx, batches)
			if err != nil {
				return err
			}
			for _, j := range jobs {
				if j != nil {
					fmt.Printf("%s\t%s\t%d requests\n", j.BatchID, j.InputFile, j.RequestCount)
				}
			}
			return nil
		},
	}
	submit.Flags().StringSliceVar(&columns, "columns", []string{"研究目的", "研究方法", "研究成果"}, "Columns to extract terms from")

	collect := &cobra.Command{
		Use:   "collect [input-file]",
		Short: "Collect the outputs of every ledger batch into a terms file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := openAI()
			if err != nil {
				return err
			}
			counter, err := tokenCounter()
			if err != nil {
				return err
			}
			svc := app.NewTermService(batchRunner(ctx, client), counter, prompts(), cfg.AI.Model, cfg.Batch)
			terms, err := svc.CollectTerms(ctx)
			if err != nil {
				return err
			}
			out := outPath(app.TermsFileName(excel.Stamp(time.Now(), excel.StampMinute), args[0]))
			if err := app.WriteTerms(out, terms); err != nil {
				return err
			}
			fmt.Printf("%d terms -> %s\n", len(terms), out)
			return nil
		},
	}

	cmd.AddCommand(submit, collect)
	return cmd
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Inspect or cancel submitted batches",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the live status of every batch in the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := openAI()
			if err != nil {
				return err
			}
			statuses, err := batchRunner(ctx, client).Status(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BATCH\tSTATUS\tDONE/TOTAL\tFAILED\tINPUT")
			for _, s := range statuses {
				if s.Err != nil {
					fmt.Fprintf(w, "%s\terror: %v\t\t\t%s\n", s.BatchID, s.Err, s.InputFile)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d\t%s\n", s.BatchID, s.Status,
					s.RequestCounts.Completed, s.RequestCounts.Total, s.RequestCounts.Failed, s.InputFile)
			}
			return w.Flush()
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel [batch-id]",
		Short: "Cancel a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := openAI()
			if err != nil {
				return err
			}
			b, err := batchRunner(ctx, client).Cancel(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", b.ID, b.Status)
			return nil
		},
	}

	cmd.AddCommand(status, cancel)
	return cmd
}
