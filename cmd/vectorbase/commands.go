package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hrygo/vectorbase/ai/retrieval"
	"github.com/hrygo/vectorbase/internal/version"
	"github.com/hrygo/vectorbase/store"
)

// withApp loads the profile, builds the app and runs fn with it.
func withApp(fn func(*cobra.Command, *app, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		p, err := loadProfile()
		if err != nil {
			return err
		}
		a, err := newApp(p)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := fn(cmd, a, args); err != nil {
			printDatabaseError(err, p)
			return err
		}
		return nil
	}
}

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <text>...",
		Short: "Embed and store each argument, printing the assigned ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			for _, text := range args {
				id, err := a.vb.Add(cmd.Context(), text)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", id, text)
			}
			return nil
		}),
	}
}

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>",
		Short: "Store every non-empty line of a file as one batch",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			lines, err := readLinesFromFile(args[0])
			if err != nil {
				return err
			}
			if err := a.vb.AddBatch(cmd.Context(), lines); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d entries\n", len(lines))
			return nil
		}),
	}
}

func newFindCmd() *cobra.Command {
	var (
		maxResults int
		cutoff     float64
		corpus     string
	)
	cmd := &cobra.Command{
		Use:   "find <text>",
		Short: "Print the stored entries most similar to text",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if corpus != "" {
				lines, err := readLinesFromFile(corpus)
				if err != nil {
					return err
				}
				if err := a.vb.AddBatch(cmd.Context(), lines); err != nil {
					return err
				}
			}

			var cutoffPtr *float64
			if cmd.Flags().Changed("cutoff") {
				cutoffPtr = &cutoff
			}
			opts := findOptions(a.vb.Store().Mode(), maxResults, cutoffPtr)

			results, err := a.vb.FindWithOptions(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			printResults(cmd.OutOrStdout(), results)
			return nil
		}),
	}
	cmd.Flags().IntVar(&maxResults, "max-results", retrieval.DefaultMaxResults, "maximum number of results")
	cmd.Flags().Float64Var(&cutoff, "cutoff", 0, "maximum distance (memory driver) or minimum score (database drivers)")
	cmd.Flags().StringVar(&corpus, "corpus", "", "ingest this file before searching, useful with the memory driver")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vectorbase %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
		},
	}
}

// findOptions applies the flags to the defaults for mode. A nil cutoff keeps
// the default threshold.
func findOptions(mode store.RelevanceMode, maxResults int, cutoff *float64) store.FindOptions {
	opts := retrieval.DefaultFindOptions(mode)
	opts.MaxResults = maxResults
	if cutoff != nil {
		if mode == store.RelevanceScore {
			opts.Cutoff = store.MinScore(float32(*cutoff))
		} else {
			opts.Cutoff = store.MaxDistance(float32(*cutoff))
		}
	}
	return opts
}

func printResults(w io.Writer, results []store.Entry) {
	if len(results) == 0 {
		fmt.Fprintln(w, "no matches")
		return
	}
	for _, e := range results {
		id := "-"
		if e.HasID() {
			id = fmt.Sprint(*e.ID)
		}
		fmt.Fprintf(w, "%s\t%s\n", id, e.Text())
	}
}

func readLinesFromFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()
	return readLines(f)
}

// readLines returns the trimmed non-empty lines of r.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read lines")
	}
	return lines, nil
}
