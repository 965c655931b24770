package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/law-makers/batchcrawl/internal/ui"
	urlutil "github.com/law-makers/batchcrawl/internal/utils/url"
	"github.com/law-makers/batchcrawl/pkg/models"
)

var loadOpts struct {
	levels   []int
	requests int
}

// loadCmd represents the load command
var loadCmd = &cobra.Command{
	Use:   "load <url>",
	Short: "Measure throughput against one URL at increasing concurrency",
	Long: `Issues the same request repeatedly through the batch processor, once per
concurrency level, and reports throughput and success rate for each level.
The summary cache is bypassed so every request reaches the server.`,
	Example: `  # Default levels 1, 5, 10 and 20 with 50 requests each
  batchcrawl load https://staging.example.com/health

  # Custom levels
  batchcrawl load https://staging.example.com --levels 2,4,8 --requests 200`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().IntSliceVar(&loadOpts.levels, "levels", []int{1, 5, 10, 20}, "Concurrent batches per level")
	loadCmd.Flags().IntVarP(&loadOpts.requests, "requests", "n", 50, "Requests per level")
}

type loadResult struct {
	level     int
	succeeded int
	elapsed   time.Duration
}

func runLoad(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}
	target := args[0]
	if err := urlutil.ValidateURL(target); err != nil {
		return err
	}
	if loadOpts.requests <= 0 {
		return fmt.Errorf("requests must be > 0")
	}

	fetcher := a.NewFetcher(models.FetchOptions{CacheTTL: -1})
	var results []loadResult

	for _, level := range loadOpts.levels {
		if level <= 0 {
			return fmt.Errorf("concurrency level must be > 0, got %d", level)
		}

		cfg := a.Config.Batch
		cfg.MaxConcurrentBatches = level
		cfg.ItemDelay = 0
		p, err := a.NewProcessorWithConfig(fetcher, cfg)
		if err != nil {
			return err
		}

		// one batch per concurrent slot
		urls := make([]string, loadOpts.requests)
		for i := range urls {
			urls[i] = target
		}
		per := max(1, (len(urls)+level-1)/level)

		start := time.Now()
		succeeded := make([]int, level)
		g, gctx := errgroup.WithContext(cmd.Context())
		for i := 0; i < level; i++ {
			lo, hi := i*per, min((i+1)*per, len(urls))
			if lo >= hi {
				break
			}
			i := i
			g.Go(func() error {
				pages, err := p.ProcessBatch(gctx, urls[lo:hi], fmt.Sprintf("load_%d_%d", level, i))
				succeeded[i] = len(pages)
				return err
			})
		}
		err = g.Wait()
		elapsed := time.Since(start)
		p.Close()
		if err != nil {
			return err
		}

		total := 0
		for _, n := range succeeded {
			total += n
		}
		results = append(results, loadResult{level: level, succeeded: total, elapsed: elapsed})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n%s %s\n\n", ui.Heading("Load test"), ui.Dim(target))

	// no colors inside the table, tabwriter counts escape codes as width
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LEVEL\tSUCCESS\tELAPSED\tREQ/S")
	for _, r := range results {
		rate := float64(r.succeeded) / float64(loadOpts.requests)
		fmt.Fprintf(w, "%d\t%.1f%%\t%s\t%.1f\n",
			r.level,
			rate*100,
			r.elapsed.Round(time.Millisecond),
			float64(loadOpts.requests)/r.elapsed.Seconds())
	}
	return w.Flush()
}
