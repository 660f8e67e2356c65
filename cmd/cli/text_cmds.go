package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"abstkit/adapters/chart"
	"abstkit/adapters/excel"
	"abstkit/internal/corpus"
	"abstkit/internal/metrics"
	"abstkit/internal/nlp"
	"abstkit/internal/readability"
	"abstkit/ports"

	"github.com/spf13/cobra"
)

func newReadabilityCmd() *cobra.Command {
	var columns []string
	cmd := &cobra.Command{
		Use:   "readability [file]",
		Short: "Add jReadability scores for text columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			an, err := analyzer()
			if err != nil {
				return err
			}
			t, err := excel.ReadTable(args[0])
			if err != nil {
				return err
			}
			if err := readability.Annotate(t, columns, an); err != nil {
				return err
			}
			out := outPath(baseName(args[0]) + "_readability.csv")
			if err := excel.WriteTable(out, t); err != nil {
				return err
			}
			fmt.Printf("%d rows -> %s\n", len(t.Rows), out)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&columns, "columns", []string{"成果概要"}, "Text columns to score")
	return cmd
}

// inputText joins args, or reads --file when given
func inputText(args []string, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return strings.Join(args, " "), nil
}

func newMorphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "morph",
		Short: "Morphological analysis helpers",
	}

	var file string
	analyze := func(args []string) (ports.Morphologizer, string, error) {
		an, err := analyzer()
		if err != nil {
			return nil, "", err
		}
		text, err := inputText(args, file)
		return an, text, err
	}

	verbs := &cobra.Command{
		Use:   "verbs [text...]",
		Short: "Base forms of every verb",
		RunE: func(cmd *cobra.Command, args []string) error {
			an, text, err := analyze(args)
			if err != nil {
				return err
			}
			for _, v := range nlp.Verbs(an.Analyze(text)) {
				fmt.Println(v)
			}
			return nil
		},
	}

	pairs := &cobra.Command{
		Use:   "pairs [text...]",
		Short: "Surface and base form of every verb",
		RunE: func(cmd *cobra.Command, args []string) error {
			an, text, err := analyze(args)
			if err != nil {
				return err
			}
			for _, p := range nlp.VerbPairs(an.Analyze(text)) {
				fmt.Printf("%s\t%s\n", p.Surface, p.Base)
			}
			return nil
		},
	}

	phrases := &cobra.Command{
		Use:   "phrases [text...]",
		Short: "Noun phrases of the form AのB",
		RunE: func(cmd *cobra.Command, args []string) error {
			an, text, err := analyze(args)
			if err != nil {
				return err
			}
			for _, p := range nlp.NounPhrases(an.Analyze(text)) {
				fmt.Println(p)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&file, "file", "", "Read the text from a file")
	cmd.AddCommand(verbs, pairs, phrases)
	return cmd
}

func printCounts(counts []corpus.WordCount) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for i, c := range counts {
		fmt.Fprintf(w, "%d\t%s\t%d\n", i+1, c.Word, c.Count)
	}
	return w.Flush()
}

func newCorpusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Word statistics over a gzip JSONL article dump",
	}

	var top int
	load := func(path string) ([]corpus.Article, ports.Morphologizer, error) {
		an, err := analyzer()
		if err != nil {
			return nil, nil, err
		}
		articles, err := corpus.ReadArticles(path)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("[Corpus] %d articles read from %s", len(articles), path)
		return articles, an, nil
	}

	words := &cobra.Command{
		Use:   "words [dump.json.gz]",
		Short: "Most frequent words, without symbols and particles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			articles, an, err := load(args[0])
			if err != nil {
				return err
			}
			return printCounts(corpus.WordCounts(articles, an).MostCommon(top))
		},
	}

	nouns := &cobra.Command{
		Use:   "nouns [dump.json.gz]",
		Short: "Most frequent nouns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			articles, an, err := load(args[0])
			if err != nil {
				return err
			}
			return printCounts(corpus.NounCounts(articles, an).MostCommon(top))
		},
	}

	var titleKeyword string
	tfidf := &cobra.Command{
		Use:   "tfidf [dump.json.gz]",
		Short: "Top TF-IDF nouns of the articles whose title has a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			articles, an, err := load(args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TERM\tTF\tIDF\tSCORE")
			for _, e := range corpus.TFIDF(articles, an, titleKeyword, top) {
				fmt.Fprintf(w, "%s\t%d\t%.4f\t%.4f\n", e.Term, e.TFSum, e.IDF, e.Score)
			}
			return w.Flush()
		},
	}
	tfidf.Flags().StringVar(&titleKeyword, "title", "", "Keep articles whose title contains this")

	zipf := &cobra.Command{
		Use:   "zipf [dump.json.gz]",
		Short: "Log-log plot of word frequency against rank",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			articles, an, err := load(args[0])
			if err != nil {
				return err
			}
			ranks, freqs := corpus.Zipf(corpus.WordCounts(articles, an))
			chartFont()
			out := outPath("zipf.png")
			if err := chart.LogLog(out, "Zipf's Law", "Rank", "Frequency", ranks, freqs); err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}

	cmd.PersistentFlags().IntVar(&top, "top", 20, "Entries to show")
	cmd.AddCommand(words, nouns, tfidf, zipf)
	return cmd
}

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score rewritten text against the 人手修正 reference",
	}

	tokenizer := func() (metrics.Tokenizer, error) {
		an, err := analyzer()
		if err != nil {
			return nil, err
		}
		return func(s string) []string { return nlp.Wakati(an.Analyze(s)) }, nil
	}

	run := func(path, suffix string, score func(*excel.Table, metrics.Tokenizer) (*excel.Table, error)) error {
		tok, err := tokenizer()
		if err != nil {
			return err
		}
		t, err := excel.ReadTable(path)
		if err != nil {
			return err
		}
		scored, err := score(t, tok)
		if err != nil {
			return err
		}
		out := outPath(excel.TimestampedName("", suffix, excel.StampSecond))
		if err := excel.WriteTable(out, scored); err != nil {
			return err
		}
		fmt.Printf("%d rows -> %s\n", len(scored.Rows), out)
		return nil
	}

	bleu := &cobra.Command{
		Use:   "bleu [file]",
		Short: "Sentence BLEU per candidate column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], "_BLEUScore.csv", metrics.BLEUTable)
		},
	}
	rouge := &cobra.Command{
		Use:   "rouge [file]",
		Short: "ROUGE-1, ROUGE-2 and ROUGE-L per candidate column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], "_ROUGEScores_all.csv", metrics.RougeTable)
		},
	}

	cmd.AddCommand(bleu, rouge)
	return cmd
}
