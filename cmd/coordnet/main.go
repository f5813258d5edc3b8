// Command coordnet builds and queries user-user coordination networks from
// a corpus of social media messages: retweets, near-duplicate text, shared
// reply targets, shared links, and textual similarity.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/orsinium-labs/stopwords"
	"github.com/spf13/cobra"

	"github.com/kittclouds/coordnet/internal/store"
	"github.com/kittclouds/coordnet/pkg/engine"
	"github.com/kittclouds/coordnet/pkg/ingest"
	"github.com/kittclouds/coordnet/pkg/normalize"
	"github.com/kittclouds/coordnet/pkg/output"
	"github.com/kittclouds/coordnet/pkg/resolve"
)

func main() {
	var configPath string
	var dbFlag string

	root := &cobra.Command{
		Use:   "coordnet",
		Short: "coordnet — coordination network toolkit",
		Long:  "Detects coordinated behavior in a message corpus by computing user-user networks over shared retweets, text, reply targets, links, and similarity.",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "coordnet.yaml", "path to config file")
	root.PersistentFlags().StringVar(&dbFlag, "database", "", "path to the sqlite database (overrides config/env)")

	root.AddCommand(
		preprocessCmd(&configPath, &dbFlag),
		resolveURLsCmd(&configPath, &dbFlag),
		computeCmd(&configPath, &dbFlag),
		exportNetworkCmd(&configPath, &dbFlag),
		exportUserNodesCmd(&configPath, &dbFlag),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the layered config and applies any flag overrides the
// caller collected, since flags win over both the config file and the
// environment.
func loadConfig(configPath, dbFlag string) (Config, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return Config{}, err
	}
	if dbFlag != "" {
		cfg.Database = dbFlag
	}
	return cfg, nil
}

func openStore(configPath, dbFlag string) (*store.Store, Config, error) {
	cfg, err := loadConfig(configPath, dbFlag)
	if err != nil {
		return nil, Config{}, fmt.Errorf("load config: %w", err)
	}
	s, err := store.Open(cfg.Database)
	if err != nil {
		return nil, Config{}, fmt.Errorf("open store %s: %w", cfg.Database, err)
	}
	return s, cfg, nil
}

func stopwordFilter(lang string) normalize.StopwordFilter {
	switch lang {
	case "", "none":
		return nil
	case "en", "english":
		return stopwords.English
	default:
		return nil
	}
}

func preprocessCmd(configPath, dbFlag *string) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "preprocess <file>",
		Short: "load a CSV or Twitter JSON export into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore(*configPath, *dbFlag)
			if err != nil {
				return err
			}
			defer s.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			in := ingest.New(s)
			ctx := cmd.Context()
			switch format {
			case "csv":
				err = in.IngestCSV(ctx, f)
			case "twitter_json":
				err = in.IngestTwitterJSON(ctx, f)
			default:
				return fmt.Errorf("unknown format %q (want csv or twitter_json)", format)
			}
			if err != nil {
				return fmt.Errorf("ingest %s: %w", args[0], err)
			}
			log.Infof("ingested %s", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "input format: csv or twitter_json")
	return cmd
}

func resolveURLsCmd(configPath, dbFlag *string) *cobra.Command {
	var concurrency, ratePerSec, burst, maxRedirects int
	var fromHeader string

	cmd := &cobra.Command{
		Use:   "resolve-urls",
		Short: "follow redirects for every unresolved url in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cfg, err := openStore(*configPath, *dbFlag)
			if err != nil {
				return err
			}
			defer s.Close()

			if concurrency <= 0 {
				concurrency = cfg.Concurrency
			}
			if ratePerSec <= 0 {
				ratePerSec = cfg.RatePerSec
			}
			if fromHeader == "" {
				fromHeader = cfg.FromHeader
			}

			r := resolve.New(resolve.Options{
				Concurrency:  concurrency,
				RatePerSec:   ratePerSec,
				Burst:        burst,
				MaxRedirects: maxRedirects,
				FromHeader:   fromHeader,
			})
			return r.ResolveAll(cmd.Context(), s, log.Default())
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "max in-flight requests")
	cmd.Flags().IntVar(&ratePerSec, "rate", 0, "request issuance rate per second")
	cmd.Flags().IntVar(&burst, "burst", 0, "request issuance burst size")
	cmd.Flags().IntVar(&maxRedirects, "max-redirects", 5, "maximum redirects to follow per url")
	cmd.Flags().StringVar(&fromHeader, "from", "", "contact address sent in the From request header")
	return cmd
}

func computeCmd(configPath, dbFlag *string) *cobra.Command {
	var kind string
	var timeWindow, minWeight, nWorkers, minTokens int
	var threshold float64
	var resolved, force bool

	cmd := &cobra.Command{
		Use:   "compute <kind>",
		Short: "compute a coordination network: co_retweet, co_tweet, co_reply, co_similar_tweet, or co_link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k := store.Kind(args[0])
			valid := false
			for _, allowed := range store.AllKinds {
				if k == allowed {
					valid = true
					break
				}
			}
			if !valid {
				return fmt.Errorf("unknown network kind %q", args[0])
			}

			s, cfg, err := openStore(*configPath, *dbFlag)
			if err != nil {
				return err
			}
			defer s.Close()

			if nWorkers <= 0 {
				nWorkers = cfg.NWorkers
			}
			if timeWindow <= 0 {
				timeWindow = cfg.TimeWindow
			}
			if minWeight <= 0 || (!cmd.Flags().Changed("min-edge-weight") && cfg.MinWeight > 0) {
				minWeight = cfg.MinWeight
			}

			eng := engine.New(s, stopwordFilter(cfg.StopwordLang))
			opts := engine.Options{
				Kind:        k,
				TimeWindow:  float64(timeWindow),
				MinWeight:   minWeight,
				NWorkers:    nWorkers,
				Resolved:    resolved,
				Threshold:   threshold,
				MinTokens:   minTokens,
				ForceReproc: force,
				Logger:      log.Default(),
			}
			return eng.Compute(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVar(&timeWindow, "time-window", 0, "seconds separating two messages for them to coordinate")
	cmd.Flags().IntVar(&minWeight, "min-edge-weight", 1, "minimum edge weight to retain")
	cmd.Flags().IntVar(&nWorkers, "n-workers", 0, "number of parallel workers")
	cmd.Flags().Float64Var(&threshold, "similarity-threshold", 0.7, "co_similar_tweet: minimum jaccard similarity")
	cmd.Flags().IntVar(&minTokens, "min-document-size-similarity", 0, "co_similar_tweet: minimum token count, 0 disables the gate")
	cmd.Flags().BoolVar(&resolved, "resolved", false, "co_link: join on resolved urls instead of raw urls")
	cmd.Flags().BoolVar(&force, "force", false, "reprocess text normalization/tokenization even if already filled")
	return cmd
}

func exportNetworkCmd(configPath, dbFlag *string) *cobra.Command {
	var out, format string
	var symmetric, loops bool

	cmd := &cobra.Command{
		Use:   "export-network <kind>",
		Short: "export a computed network as CSV or GraphML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k := store.Kind(args[0])

			s, _, err := openStore(*configPath, *dbFlag)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			edges, err := output.EdgeRows(ctx, s.DB(), k, output.FilterOptions{Symmetric: symmetric, Loops: loops})
			if err != nil {
				return fmt.Errorf("load edges: %w", err)
			}

			var f *os.File
			if out == "" || out == "-" {
				f = os.Stdout
			} else {
				f, err = os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
			}

			switch format {
			case "csv":
				return output.WriteEdgeCSV(f, edges)
			case "graphml":
				nodes, err := output.NodeRows(ctx, s.DB(), 5)
				if err != nil {
					return fmt.Errorf("load nodes: %w", err)
				}
				return output.WriteGraphML(f, edges, nodes, 5)
			default:
				return fmt.Errorf("unknown format %q (want csv or graphml)", format)
			}
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file path (default stdout)")
	cmd.Flags().StringVar(&format, "output-format", "csv", "output format: csv or graphml")
	cmd.Flags().BoolVar(&symmetric, "include-symmetric-edges", false, "also emit the reverse direction of every edge")
	cmd.Flags().BoolVar(&loops, "include-self-loops", false, "include self-loops")
	return cmd
}

func exportUserNodesCmd(configPath, dbFlag *string) *cobra.Command {
	var out string
	var nMessages int

	cmd := &cobra.Command{
		Use:   "export-user-nodes",
		Short: "export per-user node annotations (username, recent messages) as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore(*configPath, *dbFlag)
			if err != nil {
				return err
			}
			defer s.Close()

			nodes, err := output.NodeRows(cmd.Context(), s.DB(), nMessages)
			if err != nil {
				return fmt.Errorf("load nodes: %w", err)
			}

			var f *os.File
			if out == "" || out == "-" {
				f = os.Stdout
			} else {
				f, err = os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
			}
			return output.WriteNodeCSV(f, nodes, nMessages)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file path (default stdout)")
	cmd.Flags().IntVar(&nMessages, "n-messages", 5, "number of recent messages to include per user")
	return cmd
}
