package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/law-makers/batchcrawl/internal/ui"
)

// customHelpFunc provides a colorized help output
func customHelpFunc(cmd *cobra.Command, args []string) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "\n%s\n", ui.Bold(ui.Accent(strings.ToUpper(cmd.Name()))))
	if cmd.Short != "" {
		fmt.Fprintln(w, cmd.Short)
	}
	if cmd.Long != "" && cmd.Long != cmd.Short {
		fmt.Fprintf(w, "\n%s\n", cmd.Long)
	}

	fmt.Fprintf(w, "\n%s\n", ui.Heading("Usage"))
	if cmd.Runnable() {
		fmt.Fprintf(w, "  %s\n", ui.Accent(cmd.UseLine()))
	}
	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "  %s %s %s\n", ui.Accent(cmd.CommandPath()), ui.Warn("<command>"), ui.Dim("[flags]"))
	}

	if cmd.HasExample() {
		fmt.Fprintf(w, "\n%s\n", ui.Heading("Examples"))
		for _, line := range strings.Split(cmd.Example, "\n") {
			trimmed := strings.TrimSpace(line)
			switch {
			case trimmed == "":
			case strings.HasPrefix(trimmed, "#"):
				fmt.Fprintf(w, "  %s\n", ui.Dim(trimmed))
			default:
				fmt.Fprintf(w, "  %s\n", ui.Success("$ "+trimmed))
			}
		}
	}

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "\n%s\n", ui.Heading("Commands"))
		width := 0
		var cmds []*cobra.Command
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() && c.Name() != "help" {
				cmds = append(cmds, c)
				width = max(width, len(c.Name()))
			}
		}
		for _, c := range cmds {
			fmt.Fprintf(w, "  %s%s%s\n", ui.Accent(c.Name()), strings.Repeat(" ", width-len(c.Name())+2), ui.Dim(c.Short))
		}
	}

	if cmd.HasAvailableLocalFlags() {
		fmt.Fprintf(w, "\n%s\n", ui.Heading("Flags"))
		printFlags(w, cmd.LocalFlags().FlagUsages())
	}
	if cmd.HasAvailableInheritedFlags() {
		fmt.Fprintf(w, "\n%s\n", ui.Heading("Global Flags"))
		printFlags(w, cmd.InheritedFlags().FlagUsages())
	}
	fmt.Fprintln(w)
}

// printFlags colors the flag column of pflag's usage text.
func printFlags(w io.Writer, usages string) {
	for _, line := range strings.Split(usages, "\n") {
		trimmed := strings.TrimLeft(line, " ")
		if trimmed == "" {
			continue
		}
		flagPart, desc, ok := strings.Cut(trimmed, "   ")
		if !ok || !strings.HasPrefix(trimmed, "-") {
			fmt.Fprintf(w, "  %s\n", ui.Dim(trimmed))
			continue
		}
		fmt.Fprintf(w, "  %-36s %s\n", ui.Success(flagPart), ui.Dim(strings.TrimSpace(desc)))
	}
}
