// Package terminal turns cell diffs into ANSI byte streams and owns the tty.
//
// A Presenter writes each frame as one flush. When the terminal supports
// synchronized output (DEC private mode 2026) the frame is wrapped in
// CSI ?2026h / CSI ?2026l; otherwise the cursor is hidden for the duration
// of the write. Multiplexers (tmux, screen, zellij) disable the sync bracket.
//
// Writes go through a Channel; only the holder of its OutputToken may present.
// Capabilities come from the environment (Probe) and, when raw mode is on,
// from a DECRPM reply (ProbeSyncOutput).
//
// Sequences are emitted directly; terminfo is not consulted.
package terminal
