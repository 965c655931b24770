package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/law-makers/batchcrawl/internal/app"
	"github.com/law-makers/batchcrawl/internal/ui"
)

func printRunSummary(w io.Writer, total, succeeded int, elapsed time.Duration, p *app.PageProcessor) {
	m := p.Metrics()
	pool := p.Pool().Metrics()

	fmt.Fprintf(w, "\n%s\n", ui.Heading("Run summary"))
	fmt.Fprintf(w, "  URLs:          %d\n", total)
	fmt.Fprintf(w, "  Succeeded:     %s\n", ui.Success(fmt.Sprint(succeeded)))
	if failed := total - succeeded; failed > 0 {
		fmt.Fprintf(w, "  Failed:        %s\n", ui.Error(fmt.Sprint(failed)))
	}
	fmt.Fprintf(w, "  Success rate:  %s\n", ui.Rate(m.SuccessRate))
	fmt.Fprintf(w, "  Batches:       %d (%d timed out)\n", m.BatchesProcessed, m.BatchesTimedOut)
	fmt.Fprintf(w, "  Elapsed:       %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  Throughput:    %.1f items/s (last batch)\n", m.ThroughputPerSecond)
	fmt.Fprintf(w, "  Requests:      %d (%d failed, avg %s)\n", pool.TotalRequests, pool.FailedRequests, pool.AvgResponseTime.Round(time.Millisecond))
	fmt.Fprintf(w, "  Heap:          %.1f MB\n", m.MemoryUsageMB)
	fmt.Fprintln(w)
}
