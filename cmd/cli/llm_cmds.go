package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"abstkit/adapters/chart"
	"abstkit/adapters/excel"
	"abstkit/ai"
	"abstkit/app"
	"abstkit/internal/errors"

	"github.com/spf13/cobra"
)

func newRewriteCmd() *cobra.Command {
	opts := app.RewriteOptions{}
	cmd := &cobra.Command{
		Use:   "rewrite [file]",
		Short: "Rewrite text columns through a chain of prompts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := newLLM()
			if err != nil {
				return err
			}
			t, err := excel.ReadTable(args[0])
			if err != nil {
				return err
			}
			if opts.Model == "" {
				opts.Model = cfg.AI.Model
			}

			out := outPath(excel.TimestampedName("baseline_rewritten_output_", ".csv", excel.StampSecond))
			w, err := excel.NewCSVAppender(out, app.RewriteHeaders(t, opts))
			if err != nil {
				return err
			}
			defer w.Close()

			svc := app.NewRewriteService(client, prompts(), usageService(ctx), cfg.AI.Temperature, cfg.AI.MaxTokens)
			n, err := svc.Run(ctx, t, opts, w)
			fmt.Fprintf(cmd.OutOrStdout(), "%d rows -> %s\n", n, out)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&opts.KeyColumns, "keys", []string{"課題管理番号", "課題ID", "研究課題名"}, "Columns written first")
	cmd.Flags().StringSliceVar(&opts.Targets, "targets", []string{"成果概要（日本語）"}, "Columns to rewrite")
	cmd.Flags().StringSliceVar(&opts.Stages, "stages", []string{ai.PromptRewritePlain}, "Prompt names applied in order")
	cmd.Flags().StringSliceVar(&opts.Exclude, "exclude", []string{"各IDの最新年度", "フラグ", "ランダムフラグ"}, "Columns left out of the output")
	cmd.Flags().StringVar(&opts.Model, "model", "", "Model (default LLM_MODEL)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Rows to process; 0 means all")
	return cmd
}

func newClassifyCmd() *cobra.Command {
	var taskPath string
	var perCell bool
	opts := app.ClassifyOptions{}
	cmd := &cobra.Command{
		Use:   "classify [files...]",
		Short: "Label every non-empty column of each table",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := newLLM()
			if err != nil {
				return err
			}
			var task *app.ClassifyTask
			if taskPath != "" {
				task, err = app.LoadClassifyTask(taskPath, prompts())
			} else {
				task, err = app.DefaultClassifyTask(prompts())
			}
			if err != nil {
				return err
			}
			opts.Chunked = !perCell
			if opts.Model == "" {
				opts.Model = cfg.AI.Model
			}

			svc := app.NewClassifyService(client, usageService(ctx), task)
			for _, path := range args {
				t, err := excel.ReadTable(path)
				if err != nil {
					logger.Error("[CLI] %s: %v", path, err)
					continue
				}
				written, err := svc.ClassifyTable(ctx, t, cfg.Output.Dir, opts)
				if err != nil {
					return err
				}
				for _, p := range written {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&taskPath, "task", "", "YAML task definition (default relationship labels)")
	cmd.Flags().BoolVar(&perCell, "per-cell", false, "One request per cell instead of chunks")
	cmd.Flags().DurationVar(&opts.Interval, "interval", time.Second, "Pause between chunks")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Cells per column; 0 means all")
	cmd.Flags().IntVar(&opts.Workers, "workers", 3, "Columns processed at once")
	cmd.Flags().StringVar(&opts.Model, "model", "", "Model (default LLM_MODEL)")
	return cmd
}

func newLabelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Summarise classification output",
	}

	var keyword string
	count := &cobra.Command{
		Use:   "count [dir]",
		Short: "Count labels per file and overall, with bar charts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := app.CountLabelFiles(args[0], keyword)
			if err != nil {
				return err
			}
			dir := outPath(excel.TimestampedName("分類ラベル集計_", "", excel.StampSecond))
			written, err := summary.Write(dir)
			if err != nil {
				return err
			}

			chartFont()
			for _, f := range summary.Files {
				labels, counts := app.Bars(f.Entries)
				path := filepath.Join(dir, app.LabelChartFileName(f.File))
				if err := chart.LabelBars(path, f.File, labels, counts); err != nil {
					return err
				}
				written = append(written, path)
			}
			labels, counts := app.Bars(summary.Total)
			total := filepath.Join(dir, app.TotalLabelChartFile)
			if err := chart.LabelBars(total, "全体", labels, counts); err != nil {
				return err
			}
			written = append(written, total)

			for _, p := range written {
				fmt.Println(p)
			}
			return nil
		},
	}
	count.Flags().StringVar(&keyword, "keyword", "", "Only CSVs whose name contains this")

	cmd.AddCommand(count)
	return cmd
}

func newExpressionsCmd() *cobra.Command {
	var persona, model string
	var testMode bool
	cmd := &cobra.Command{
		Use:   "expressions [file]",
		Short: "Generate lay symptom descriptions for a symptom dictionary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if persona == "" {
				return errors.InvalidInput("--persona is required")
			}
			client, err := openAI()
			if err != nil {
				return err
			}
			t, err := excel.ReadTable(args[0])
			if err != nil {
				return err
			}
			rows, err := app.ExpressionRows(t)
			if err != nil {
				return err
			}
			if testMode && len(rows) > 1 {
				rows = rows[:1]
			}
			if model == "" {
				model = cfg.AI.Model
			}

			svc := app.NewExpressionService(batchRunner(ctx, client), prompts(), model, cfg.AI.MaxTokens, cfg.Batch.WorkDir)
			records, err := svc.Generate(ctx, rows, persona)
			if err != nil {
				return err
			}
			out := outPath(app.ExpressionFileName(excel.Stamp(time.Now(), excel.StampMinute), persona))
			if err := excel.WriteCSV(out, app.ExpressionHeaders, records); err != nil {
				return err
			}
			fmt.Printf("%d rows -> %s\n", len(records), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&persona, "persona", "", "Who the model speaks as, e.g. 高齢の患者")
	cmd.Flags().StringVar(&model, "model", "", "Model (default LLM_MODEL)")
	cmd.Flags().BoolVar(&testMode, "test", false, "Only the first row")
	return cmd
}

func newSynthCmd() *cobra.Command {
	opts := app.DefaultSynthOptions()
	cmd := &cobra.Command{
		Use:   "synth [file]",
		Short: "Generate fictitious abstracts and compare them with their closest example",
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

			svc := app.NewSynthService(batchRunner(ctx, client), counter, client, prompts(), cfg.AI.EmbeddingModel, cfg.Batch.WorkDir)
			pool, err := svc.Pool(t, opts)
			if err != nil {
				return err
			}
			logger.Info("[CLI] %d example abstracts in the pool", len(pool))
			plans, err := svc.Plan(pool, opts)
			if err != nil {
				return err
			}
			results, err := svc.Run(ctx, plans, opts.MaxTextTokens)
			if err != nil {
				return err
			}

			stamp := excel.Stamp(time.Now(), excel.StampSecond)
			for _, r := range results {
				if err := app.WriteSynthResult(cfg.Output.Dir, stamp, r); err != nil {
					return err
				}
				fmt.Printf("%s: similarity %.4f with %s\n", r.CustomID, r.Similarity, r.Nearest.ID)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Requests, "requests", opts.Requests, "Abstracts to generate")
	cmd.Flags().Int64Var(&opts.Seed, "seed", opts.Seed, "Shuffle seed")
	cmd.Flags().StringVar(&opts.Keyword, "keyword", opts.Keyword, "Value the filter column must contain")
	cmd.Flags().StringVar(&opts.FilterColumn, "filter-column", opts.FilterColumn, "Column matched against the keyword")
	cmd.Flags().StringVar(&opts.TextColumn, "text-column", opts.TextColumn, "Abstract text column")
	cmd.Flags().StringVar(&opts.Model, "model", opts.Model, "Generation model")
	return cmd
}

func newUsageCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Summarise recorded LLM token usage by model",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := usageService(cmd.Context())
			if svc == nil {
				return errors.DatabaseError("usage store unavailable")
			}
			summary, err := svc.Summary(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s - %s: %d requests, %d tokens (%d prompt, %d completion)\n",
				summary.PeriodStart.Format(time.DateOnly), summary.PeriodEnd.Format(time.DateOnly),
				summary.RequestCount, summary.TotalTokens, summary.TotalPromptTokens, summary.TotalCompletionTokens)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tREQUESTS\tTOKENS")
			models := make([]string, 0, len(summary.ByModel))
			for m := range summary.ByModel {
				models = append(models, m)
			}
			sort.Strings(models)
			for _, m := range models {
				u := summary.ByModel[m]
				fmt.Fprintf(w, "%s\t%d\t%d\n", m, u.RequestCount, u.TotalTokens)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Days to look back")
	return cmd
}
