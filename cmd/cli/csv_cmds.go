package main

import (
	"fmt"
	"strings"

	"abstkit/adapters/excel"
	"abstkit/internal/report"
	"abstkit/internal/tabular"

	"github.com/spf13/cobra"
)

func newCSVCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Split, join, profile and filter CSV/xlsx tables",
	}
	cmd.AddCommand(
		newCSVSplitCmd(),
		newCSVJoinCmd(),
		newCSVConcatCmd(),
		newCSVProfileCmd(),
		newCSVMissingCmd(),
		newCSVFilterCmd(),
		newCSVPairCmd(),
	)
	return cmd
}

func newCSVSplitCmd() *cobra.Command {
	var column, prefix string
	cmd := &cobra.Command{
		Use:   "split [file]",
		Short: "Write one CSV per value of a column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := excel.ReadTable(args[0])
			if err != nil {
				return err
			}
			written, err := tabular.Split(t, column, cfg.Output.Dir, prefix)
			if err != nil {
				return err
			}
			for _, p := range written {
				fmt.Println(p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&column, "column", "年度", "Column to group by")
	cmd.Flags().StringVar(&prefix, "prefix", "年度", "Output file name prefix")
	return cmd
}

func newCSVJoinCmd() *cobra.Command {
	var key, how, name string
	cmd := &cobra.Command{
		Use:   "join [left] [right]",
		Short: "Join two tables on a key column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			joinType, err := tabular.ParseJoinType(how)
			if err != nil {
				return err
			}
			left, err := excel.ReadTable(args[0])
			if err != nil {
				return err
			}
			right, err := excel.ReadTable(args[1])
			if err != nil {
				return err
			}
			joined, err := tabular.Join(left, right, key, joinType)
			if err != nil {
				return err
			}
			if name == "" {
				name = excel.TimestampedName("", "_joined.csv", excel.StampMinute)
			}
			out := outPath(name)
			if err := excel.WriteTable(out, joined); err != nil {
				return err
			}
			fmt.Printf("%d rows -> %s\n", len(joined.Rows), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "課題管理番号", "Join key column")
	cmd.Flags().StringVar(&how, "how", "inner", "inner, left or outer")
	cmd.Flags().StringVar(&name, "name", "", "Output file name")
	return cmd
}

func newCSVConcatCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "concat [files...]",
		Short: "Stack tables vertically, unioning their columns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables := make([]*excel.Table, 0, len(args))
			for _, p := range args {
				t, err := excel.ReadTable(p)
				if err != nil {
					return err
				}
				tables = append(tables, t)
			}
			merged := tabular.Concat(tables)
			if name == "" {
				name = excel.TimestampedName("", "_concat.csv", excel.StampMinute)
			}
			out := outPath(name)
			if err := excel.WriteTable(out, merged); err != nil {
				return err
			}
			fmt.Printf("%d rows -> %s\n", len(merged.Rows), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Output file name")
	return cmd
}

func newCSVProfileCmd() *cobra.Command {
	var withHTML bool
	cmd := &cobra.Command{
		Use:   "profile [files...]",
		Short: "Per-column record, missing and text length statistics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles := tabular.ProfileFiles(args, logger)
			rows := tabular.ProfileRecords(profiles)
			out := outPath(excel.TimestampedName("", "_profile.csv", excel.StampMinute))
			if err := excel.WriteCSV(out, tabular.ProfileHeaders, rows); err != nil {
				return err
			}

			doc := report.New("列プロファイル")
			doc.Line("対象ファイル数: %d", len(args))
			doc.Table(tabular.ProfileHeaders, rows)
			summary := strings.TrimSuffix(out, ".csv") + ".md"
			if err := doc.Save(summary, withHTML || cfg.Output.ReportHTML); err != nil {
				return err
			}
			fmt.Printf("%d columns -> %s, %s\n", len(profiles), out, summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withHTML, "html", false, "Also render the summary as HTML")
	return cmd
}

func newCSVMissingCmd() *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "missing [xlsx files...]",
		Short: "Count blank cells per sheet and column",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			counts := tabular.MissingCounts(args, rows, logger)
			out := outPath(excel.TimestampedName("missing_counts_", ".csv", excel.StampSecond))
			if err := excel.WriteCSV(out, tabular.MissingHeaders, tabular.MissingRecords(counts)); err != nil {
				return err
			}
			fmt.Printf("%d columns -> %s\n", len(counts), out)
			return nil
		},
	}
	cmd.Flags().IntVar(&rows, "rows", 1001, "Data rows read per sheet")
	return cmd
}

func newCSVFilterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter [file]",
		Short: "Explode 正規形 and keep graded, tree-R symptom rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := excel.ReadTable(args[0])
			if err != nil {
				return err
			}
			filtered, err := tabular.Filter(t, tabular.ExpressionFilter())
			if err != nil {
				return err
			}
			out := outPath(baseName(args[0]) + "_filtered.csv")
			if err := excel.WriteTable(out, filtered); err != nil {
				return err
			}
			fmt.Printf("%d of %d rows -> %s\n", len(filtered.Rows), len(t.Rows), out)
			return nil
		},
	}
	return cmd
}

func newCSVPairCmd() *cobra.Command {
	var idCol, leftCol, rightCol string
	cmd := &cobra.Command{
		Use:   "pair [file]",
		Short: "Align the sentences of two text columns into an xlsx sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := excel.ReadTable(args[0])
			if err != nil {
				return err
			}
			pairs, err := tabular.PairSentences(t, idCol, leftCol, rightCol)
			if err != nil {
				return err
			}
			out := outPath(baseName(args[0]) + "_sentences.xlsx")
			if err := excel.WriteXLSX(out, "Sheet1", pairs.Headers, pairs.Records()); err != nil {
				return err
			}
			fmt.Printf("%d sentence rows -> %s\n", len(pairs.Rows), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&idCol, "id", "ID", "ID column")
	cmd.Flags().StringVar(&leftCol, "left", "成果概要", "First text column")
	cmd.Flags().StringVar(&rightCol, "right", "人手修正", "Second text column")
	return cmd
}
