package ui

import "fmt"

// ANSI color and style constants for CLI output
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[97m"
	ColorRed    = "\033[31m"
)

// Enabled turns styling on or off, e.g. for JSON logs or non-terminal output.
var Enabled = true

func style(code, s string) string {
	if !Enabled {
		return s
	}
	return code + s + ColorReset
}

func Bold(s string) string    { return style(ColorBold, s) }
func Heading(s string) string { return style(ColorBold+ColorWhite, s) }
func Success(s string) string { return style(ColorGreen, s) }
func Warn(s string) string    { return style(ColorYellow, s) }
func Error(s string) string   { return style(ColorRed, s) }
func Dim(s string) string     { return style(ColorDim, s) }
func Accent(s string) string  { return style(ColorCyan, s) }

// Rate formats a 0..1 ratio as a percentage colored by how healthy it is.
func Rate(r float64) string {
	s := fmt.Sprintf("%.1f%%", r*100)
	switch {
	case r >= 0.95:
		return Success(s)
	case r >= 0.75:
		return Warn(s)
	default:
		return Error(s)
	}
}

// Percent colors a utilization percentage red once it passes limit.
func Percent(v, limit float64) string {
	s := fmt.Sprintf("%.1f%%", v)
	if v > limit {
		return Error(s)
	}
	return Success(s)
}
