package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lixenwraith/framekit/terminal"
)

// Caps report palette
var (
	accentColor = lipgloss.Color("#7D56F4")
	goodColor   = lipgloss.Color("#43BF6D")
	badColor    = lipgloss.Color("#FF5555")
	mutedColor  = lipgloss.Color("#626262")

	capsTitleStyle = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	capsKeyStyle   = lipgloss.NewStyle().Foreground(mutedColor).Width(14)
	capsBoxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)
)

func newCapsCmd(opts *options) *cobra.Command {
	var query bool
	cmd := &cobra.Command{
		Use:   "caps",
		Short: "Print probed terminal capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caps := terminal.Probe()
			probe := "environment"

			if query && term.IsTerminal(int(os.Stdin.Fd())) {
				tty := terminal.New()
				if err := tty.Init(); err != nil {
					return err
				}
				status, ok := terminal.QueryMode(tty, terminal.SyncOutputMode, probeTimeout)
				tty.Fini()
				if ok {
					caps.SyncOutput = status.Recognized()
					probe = fmt.Sprintf("DECRPM status %d", status)
				} else {
					probe = "environment (no DECRPM reply)"
				}
			}

			final := opts.cfg.Overrides().Apply(caps)
			return writeCaps(cmd.OutOrStdout(), final, probe)
		},
	}
	cmd.Flags().BoolVar(&query, "query", true, "ask the terminal for mode 2026 support")
	return cmd
}

func writeCaps(w io.Writer, caps terminal.Capabilities, probe string) error {
	yes := func(b bool) string {
		if b {
			return lipgloss.NewStyle().Foreground(goodColor).Render("yes")
		}
		return lipgloss.NewStyle().Foreground(badColor).Render("no")
	}

	bracket := "synchronized output (CSI ?2026)"
	if !caps.UseSync() {
		bracket = "cursor hide/show fallback"
	}

	rows := [][2]string{
		{"TERM", caps.TermName},
		{"TERM_PROGRAM", caps.TermProgram},
		{"multiplexer", caps.Mux.String()},
		{"sync output", yes(caps.SyncOutput)},
		{"use sync", yes(caps.UseSync())},
		{"frame bracket", bracket},
		{"color tier", caps.Tier.String()},
		{"probe", probe},
	}

	var b strings.Builder
	b.WriteString(capsTitleStyle.Render("terminal capabilities"))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(capsKeyStyle.Render(r[0]))
		b.WriteString(r[1])
	}
	_, err := fmt.Fprintln(w, capsBoxStyle.Render(b.String()))
	return err
}
