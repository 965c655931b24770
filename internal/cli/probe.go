package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/law-makers/batchcrawl/internal/batch"
	"github.com/law-makers/batchcrawl/internal/resource"
	"github.com/law-makers/batchcrawl/internal/ui"
)

var probeOpts struct {
	cpu    float64
	memory float64
	items  int
	asJSON bool
}

// probeCmd represents the probe command
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Show current resource pressure and the chunk size each strategy would pick",
	Long: `Samples host CPU and memory once and prints, for every strategy, the
operating limits it derives from the configuration and the chunk size it
would use right now. --cpu and --memory replace the live reading to answer
"what would happen at this load".`,
	Example: `  # Live reading
  batchcrawl probe

  # What-if: a busy host
  batchcrawl probe --cpu 85 --memory 50`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().Float64Var(&probeOpts.cpu, "cpu", -1, "Assume this CPU utilization percent instead of sampling")
	probeCmd.Flags().Float64Var(&probeOpts.memory, "memory", -1, "Assume this memory utilization percent instead of sampling")
	probeCmd.Flags().IntVarP(&probeOpts.items, "items", "n", 1000, "Batch length the sizes are computed for")
	probeCmd.Flags().BoolVar(&probeOpts.asJSON, "json-output", false, "Print the report as JSON")
}

type probeRow struct {
	Strategy  batch.Strategy       `json:"strategy"`
	Limits    batch.AdaptiveConfig `json:"limits"`
	ChunkSize int                  `json:"chunk_size"`
	Throttled bool                 `json:"throttled"`
}

type probeReport struct {
	Snapshot             resource.Snapshot `json:"snapshot"`
	ResourceFactor       float64           `json:"resource_factor"`
	SuggestedConcurrency int               `json:"suggested_concurrency"`
	Strategies           []probeRow        `json:"strategies"`
}

func runProbe(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	sampler := a.Sampler
	if probeOpts.cpu >= 0 || probeOpts.memory >= 0 {
		live := sampler.Sample(cmd.Context())
		cpu, mem := live.CPUPercent, live.MemoryPercent
		if probeOpts.cpu >= 0 {
			cpu = probeOpts.cpu
		}
		if probeOpts.memory >= 0 {
			mem = probeOpts.memory
		}
		sampler = resource.NewSampler(resource.NewFixedSource(cpu, mem), resource.WithLogger(*a.Logger))
	}

	report := buildProbeReport(sampler.Sample(cmd.Context()), a.Config.Batch, probeOpts.items)

	out := cmd.OutOrStdout()
	if probeOpts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	snap := report.Snapshot
	fmt.Fprintf(out, "\n%s\n", ui.Heading("Resources"))
	fmt.Fprintf(out, "  CPU:        %.1f%%\n", snap.CPUPercent)
	fmt.Fprintf(out, "  Memory:     %.1f%% (%.0f MB available)\n", snap.MemoryPercent, snap.MemoryAvailableMB)
	fmt.Fprintf(out, "  Heap:       %.1f MB (budget %d MB)\n", snap.ProcessMemoryMB, a.Config.Batch.MemoryLimitMB)
	fmt.Fprintf(out, "  Factor:     %.2f\n", report.ResourceFactor)
	fmt.Fprintf(out, "  Suggested:  %d concurrent requests\n\n", report.SuggestedConcurrency)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STRATEGY\tBASE\tBATCHES\tCPU LIMIT\tMEM LIMIT\tCHUNK\tTHROTTLED")
	for _, r := range report.Strategies {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.0f%%\t%.0f%%\t%d\t%t\n",
			r.Strategy, r.Limits.BatchSize, r.Limits.MaxConcurrent,
			r.Limits.CPULimit, r.Limits.MemoryLimit, r.ChunkSize, r.Throttled)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return nil
}

func buildProbeReport(snap resource.Snapshot, cfg batch.Config, items int) probeReport {
	report := probeReport{
		Snapshot:             snap,
		ResourceFactor:       batch.ResourceFactor(snap),
		SuggestedConcurrency: resource.OptimalConcurrency(snap),
	}
	for _, s := range batch.Strategies {
		ac := batch.DeriveAdaptiveConfig(cfg, s)
		report.Strategies = append(report.Strategies, probeRow{
			Strategy:  s,
			Limits:    ac,
			ChunkSize: min(items, batch.EffectiveBatchSize(items, ac.BatchSize, s, snap, cfg.AdaptiveSizing)),
			Throttled: snap.CPUPercent > ac.CPULimit || snap.MemoryPercent > ac.MemoryLimit,
		})
	}
	return report
}
