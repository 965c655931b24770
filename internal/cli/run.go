package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/law-makers/batchcrawl/internal/app"
	"github.com/law-makers/batchcrawl/internal/batch"
	"github.com/law-makers/batchcrawl/internal/config"
	headersutil "github.com/law-makers/batchcrawl/internal/utils/headers"
	"github.com/law-makers/batchcrawl/internal/utils/output"
	urlutil "github.com/law-makers/batchcrawl/internal/utils/url"
	"github.com/law-makers/batchcrawl/pkg/models"
)

var runOpts struct {
	output   string
	format   string
	selector string
	markdown bool
	headers  []string
	perBatch int
	noCache  bool
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Fetch and summarize every URL in a list",
	Long: `Reads one URL per line from a file (or stdin), fetches them through the
adaptive batch processor and writes one summary per page that succeeded.

Lines starting with # are ignored. Pages that still fail after the configured
retries are logged and left out of the output.`,
	Example: `  # Fetch a list with the adaptive strategy
  batchcrawl run urls.txt

  # Conservative profile, CSV output
  batchcrawl run urls.txt --strategy conservative -o pages.csv

  # Pipe URLs in, split into batches of 200, export Prometheus metrics
  cat urls.txt | batchcrawl run --per-batch 200 --metrics-addr :9090

  # Convert the main content to Markdown
  batchcrawl run urls.txt --selector article --markdown -o pages.md`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	config.RegisterBatchFlags(runCmd)

	runCmd.Flags().StringVarP(&runOpts.output, "output", "o", "", "File to write results to (default stdout)")
	runCmd.Flags().StringVarP(&runOpts.format, "format", "f", "", "Output format: json, jsonl, csv, md (default from --output extension, else json)")
	runCmd.Flags().StringVar(&runOpts.selector, "selector", "", "CSS selector of the content used for word count and Markdown")
	runCmd.Flags().BoolVar(&runOpts.markdown, "markdown", false, "Convert page content to Markdown")
	runCmd.Flags().StringArrayVarP(&runOpts.headers, "header", "H", nil, "Custom headers (e.g., -H \"Authorization: Bearer token\")")
	runCmd.Flags().IntVar(&runOpts.perBatch, "per-batch", 0, "URLs per ProcessBatch call; 0 sends the whole list as one batch")
	runCmd.Flags().BoolVar(&runOpts.noCache, "no-cache", false, "Do not reuse summaries fetched earlier in this run")
}

func runRun(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	format, err := resolveFormat(runOpts.format, runOpts.output)
	if err != nil {
		return err
	}

	urls, err := readURLs(cmd, args)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs to process")
	}

	hdrs, err := headersutil.ParseHeaders(runOpts.headers)
	if err != nil {
		return err
	}

	fetchOpts := models.FetchOptions{
		Headers:  hdrs,
		Selector: runOpts.selector,
		Markdown: runOpts.markdown || format == output.FormatMarkdown,
	}
	if runOpts.noCache {
		fetchOpts.CacheTTL = -1
	}

	bar := newProgressBar(len(urls), a.Config.LogLevel == "error" || a.Config.JSONLog)
	p, err := a.NewProcessor(a.NewFetcher(fetchOpts), batch.WithItemHook(func(bool) { bar.Add(1) }))
	if err != nil {
		return err
	}
	defer p.Close()

	ctx := cmd.Context()
	if a.Config.MetricsAddr != "" {
		if err := startMetricsServer(ctx, a, p); err != nil {
			return err
		}
	}

	log.Debug().
		Int("urls", len(urls)).
		Str("strategy", string(p.Strategy())).
		Int("per_batch", runOpts.perBatch).
		Msg("Starting run")

	start := time.Now()
	pages, runErr := processAll(ctx, p, urls, runOpts.perBatch)
	bar.Finish()

	if err := writeResults(cmd.OutOrStdout(), runOpts.output, format, pages); err != nil {
		return err
	}

	printRunSummary(cmd.ErrOrStderr(), len(urls), len(pages), time.Since(start), p)
	return runErr
}

// processAll splits urls into groups of perBatch and runs them as concurrent
// ProcessBatch calls. The processor's gate decides how many actually run at
// once. Results keep input order; partial results are kept on error.
func processAll(ctx context.Context, p *app.PageProcessor, urls []string, perBatch int) ([]*models.PageSummary, error) {
	if perBatch <= 0 {
		perBatch = len(urls)
	}

	var groups [][]string
	for start := 0; start < len(urls); start += perBatch {
		groups = append(groups, urls[start:min(start+perBatch, len(urls))])
	}

	results := make([][]*models.PageSummary, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			pages, err := p.ProcessBatch(gctx, group, "")
			results[i] = pages
			return err
		})
	}
	err := g.Wait()

	var pages []*models.PageSummary
	for _, r := range results {
		pages = append(pages, r...)
	}
	return pages, err
}

func readURLs(cmd *cobra.Command, args []string) ([]string, error) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("open URL list: %w", err)
		}
		defer f.Close()
		r = f
	}

	urls, rejected, err := urlutil.ReadList(r)
	if err != nil {
		return nil, err
	}
	for _, rj := range rejected {
		log.Warn().Int("line", rj.Line).Str("text", rj.Text).Err(rj.Err).Msg("Skipping invalid URL")
	}
	return urls, nil
}

func resolveFormat(format, path string) (output.Format, error) {
	if format != "" {
		return output.ParseFormat(format)
	}
	if path != "" {
		return output.FormatFromPath(path), nil
	}
	return output.FormatJSON, nil
}

func writeResults(stdout io.Writer, path string, format output.Format, pages []*models.PageSummary) error {
	if path == "" {
		return output.Write(stdout, format, pages)
	}
	if err := output.Save(path, format, pages); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Debug().Str("file", path).Int("pages", len(pages)).Msg("Output saved")
	return nil
}

func newProgressBar(total int, hidden bool) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Fetching"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetVisibility(!hidden),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
}

func startMetricsServer(ctx context.Context, a *app.Application, p *app.PageProcessor) error {
	reg, err := app.NewRegistry(p, a.Pool)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	go func() {
		if err := app.ServeMetrics(ctx, a.Config.MetricsAddr, reg); err != nil {
			log.Error().Err(err).Str("addr", a.Config.MetricsAddr).Msg("Metrics server failed")
		}
	}()
	log.Info().Str("addr", a.Config.MetricsAddr).Msg("Serving metrics on /metrics")
	return nil
}
