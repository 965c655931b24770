package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Write logs as JSON")
	cmd.PersistentFlags().String("config", "", "Path to configuration file (optional)")
	cmd.PersistentFlags().StringP("strategy", "s", DefaultStrategy, "Processing strategy: conservative, balanced, aggressive, adaptive")
	cmd.PersistentFlags().StringSlice("proxy", nil, "Proxy to rotate through (repeatable, e.g. http://localhost:8080)")
	cmd.PersistentFlags().Duration("timeout", 0, "Per-request timeout (default from config)")
	cmd.PersistentFlags().String("user-agent", "", "Custom user agent string")
}

// RegisterBatchFlags registers the flags that tune batch processing.
func RegisterBatchFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.Flags().IntP("batch-size", "b", 0, "Base chunk size before adaptive sizing")
	cmd.Flags().IntP("max-batches", "c", 0, "Maximum concurrent batches")
	cmd.Flags().Duration("batch-timeout", 0, "Deadline for one batch")
	cmd.Flags().Int("retries", 0, "Attempts per item, including the first")
	cmd.Flags().Duration("item-delay", -1, "Pause between items of one chunk")
	cmd.Flags().Int("memory-limit", 0, "Go heap budget in MB before throttling")
	cmd.Flags().Float64("cpu-limit", 0, "Host CPU percent before throttling")
	cmd.Flags().Bool("no-adaptive", false, "Disable adaptive chunk sizing")
	cmd.Flags().Float64("rps", 0, "Per-host request rate limit (0 keeps the configured value)")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
}
