package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	"      _    _ _ _  __ _",
	"  ___| | _(_) | |/ _| | _____      __",
	" / __| |/ / | | | |_| |/ _ \\ \\ /\\ / /",
	" \\__ \\   <| | | |  _| | (_) \\ V  V /",
	" |___/_|\\_\\_|_|_|_| |_|\\___/ \\_/\\_/",
}

var bannerColors = []string{"#34d399", "#2dd4bf", "#22d3ee", "#38bdf8", "#60a5fa"}

// PrintBanner writes the skillflow banner with a gradient when w supports color.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)

	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, out.String(line).Foreground(out.Color(bannerColors[i%len(bannerColors)])))
	}
	fmt.Fprintln(w, out.String("  v"+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(w)
}
