package terminal

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/muesli/termenv"
)

// Mux identifies a terminal multiplexer between the application and the emulator
type Mux uint8

const (
	MuxNone Mux = iota
	MuxTmux
	MuxScreen
	MuxZellij
)

func (m Mux) String() string {
	switch m {
	case MuxTmux:
		return "tmux"
	case MuxScreen:
		return "screen"
	case MuxZellij:
		return "zellij"
	default:
		return "none"
	}
}

// Capabilities describes what the output terminal understands
// Probed once per session; changed only through Presenter.SetCapabilities
type Capabilities struct {
	SyncOutput  bool // DEC private mode 2026 is recognized
	Tier        ColorTier
	Mux         Mux
	TermName    string // $TERM
	TermProgram string // $TERM_PROGRAM
}

// InMux reports whether output passes through a multiplexer
func (c Capabilities) InMux() bool { return c.Mux != MuxNone }

// UseSync reports whether frames are bracketed with mode 2026
// Multiplexers forward the bracket inconsistently, so it is never used behind one
func (c Capabilities) UseSync() bool { return c.SyncOutput && !c.InMux() }

func (c Capabilities) String() string {
	return fmt.Sprintf("term=%s program=%s sync=%t tier=%s mux=%s",
		c.TermName, c.TermProgram, c.SyncOutput, c.Tier, c.Mux)
}

// SyncMode overrides synchronized output detection
type SyncMode uint8

const (
	SyncAuto SyncMode = iota
	SyncOn
	SyncOff
)

// ParseSyncMode accepts auto, on, off
func ParseSyncMode(s string) (SyncMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return SyncAuto, nil
	case "on", "true", "1", "yes":
		return SyncOn, nil
	case "off", "false", "0", "no":
		return SyncOff, nil
	}
	return SyncAuto, fmt.Errorf("unknown sync mode %q", s)
}

func (m SyncMode) String() string {
	switch m {
	case SyncOn:
		return "on"
	case SyncOff:
		return "off"
	default:
		return "auto"
	}
}

// Overrides force probed values; the zero value changes nothing
type Overrides struct {
	Sync SyncMode
	Tier *ColorTier
}

// Apply returns caps with the overrides folded in
func (o Overrides) Apply(caps Capabilities) Capabilities {
	switch o.Sync {
	case SyncOn:
		caps.SyncOutput = true
	case SyncOff:
		caps.SyncOutput = false
	}
	if o.Tier != nil {
		caps.Tier = *o.Tier
	}
	return caps
}

// syncTerms are TERM substrings of emulators known to implement mode 2026
var syncTerms = []string{"kitty", "wezterm", "foot", "alacritty", "ghostty", "contour"}

// syncPrograms are TERM_PROGRAM values of emulators known to implement mode 2026
var syncPrograms = []string{"WezTerm", "iTerm.app", "ghostty", "contour", "vscode"}

// Probe detects capabilities from the process environment
// The color tier comes from termenv when stdout is a terminal, env heuristics otherwise
func Probe() Capabilities {
	caps := ProbeEnv(os.Getenv)
	if os.Getenv("NO_COLOR") != "" {
		return caps
	}
	switch termenv.EnvColorProfile() {
	case termenv.TrueColor:
		caps.Tier = TierTrueColor
	case termenv.ANSI256:
		caps.Tier = Tier256
	case termenv.ANSI:
		caps.Tier = Tier16
	}
	return caps
}

// ProbeEnv detects capabilities from environment variables only
func ProbeEnv(getenv func(string) string) Capabilities {
	caps := Capabilities{
		TermName:    getenv("TERM"),
		TermProgram: getenv("TERM_PROGRAM"),
	}

	switch {
	case getenv("TMUX") != "":
		caps.Mux = MuxTmux
	case getenv("ZELLIJ") != "":
		caps.Mux = MuxZellij
	case getenv("STY") != "":
		caps.Mux = MuxScreen
	case strings.HasPrefix(caps.TermName, "tmux"):
		caps.Mux = MuxTmux
	case strings.HasPrefix(caps.TermName, "screen"):
		caps.Mux = MuxScreen
	}

	caps.SyncOutput = detectSync(getenv, caps.TermName, caps.TermProgram)
	caps.Tier = detectTier(getenv, caps.TermName)
	return caps
}

func detectSync(getenv func(string) string, term, program string) bool {
	if getenv("KITTY_WINDOW_ID") != "" ||
		getenv("WEZTERM_PANE") != "" ||
		getenv("ALACRITTY_WINDOW_ID") != "" ||
		getenv("GHOSTTY_RESOURCES_DIR") != "" ||
		getenv("WT_SESSION") != "" {
		return true
	}
	termLower := strings.ToLower(term)
	for _, s := range syncTerms {
		if strings.Contains(termLower, s) {
			return true
		}
	}
	for _, p := range syncPrograms {
		if program == p {
			return true
		}
	}
	return false
}

func detectTier(getenv func(string) string, term string) ColorTier {
	if getenv("NO_COLOR") != "" {
		return TierMono
	}
	if term == "dumb" {
		return TierMono
	}

	colorterm := getenv("COLORTERM")
	if colorterm == "truecolor" || colorterm == "24bit" {
		return TierTrueColor
	}

	if getenv("KITTY_WINDOW_ID") != "" ||
		getenv("KONSOLE_VERSION") != "" ||
		getenv("ITERM_SESSION_ID") != "" ||
		getenv("ALACRITTY_WINDOW_ID") != "" ||
		getenv("ALACRITTY_LOG") != "" ||
		getenv("WEZTERM_PANE") != "" ||
		getenv("WT_SESSION") != "" {
		return TierTrueColor
	}

	termLower := strings.ToLower(term)
	if strings.Contains(termLower, "truecolor") ||
		strings.Contains(termLower, "24bit") ||
		strings.Contains(termLower, "direct") {
		return TierTrueColor
	}
	if strings.Contains(termLower, "256") {
		return Tier256
	}
	if term == "" || termLower == "linux" || termLower == "vt100" || termLower == "ansi" {
		return Tier16
	}

	return Tier256
}

// SyncOutputMode is the DEC private mode number of synchronized output
const SyncOutputMode = 2026

// ModeQuery returns the DECRQM request for a DEC private mode
func ModeQuery(mode int) []byte {
	return []byte("\x1b[?" + strconv.Itoa(mode) + "$p")
}

// ModeStatus is the DECRPM answer for one mode
type ModeStatus uint8

const (
	ModeNotRecognized  ModeStatus = 0
	ModeSet            ModeStatus = 1
	ModeReset          ModeStatus = 2
	ModePermanentSet   ModeStatus = 3
	ModePermanentReset ModeStatus = 4
)

// Recognized reports whether the terminal knows the mode, regardless of its current value
func (s ModeStatus) Recognized() bool {
	return s >= ModeSet && s <= ModePermanentReset
}

// ParseModeReport extracts (mode, status) from a DECRPM response `ESC [ ? mode ; status $ y`
// Leading bytes before the report are skipped
func ParseModeReport(data []byte) (mode int, status ModeStatus, ok bool) {
	start := bytes.Index(data, []byte("\x1b[?"))
	if start < 0 {
		return 0, 0, false
	}
	payload := data[start+3:]

	dollar := bytes.IndexByte(payload, '$')
	if dollar < 0 || dollar+1 >= len(payload) || payload[dollar+1] != 'y' {
		return 0, 0, false
	}

	params := bytes.Split(payload[:dollar], []byte{';'})
	if len(params) < 2 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(string(bytes.TrimSpace(params[0])))
	if err != nil {
		return 0, 0, false
	}
	st, err := strconv.Atoi(string(bytes.TrimSpace(params[1])))
	if err != nil || st < 0 || st > 255 {
		return 0, 0, false
	}
	return m, ModeStatus(st), true
}

// ApplyModeReport updates caps from a DECRPM response; unrelated or malformed reports leave it unchanged
func ApplyModeReport(caps Capabilities, data []byte) (Capabilities, bool) {
	mode, status, ok := ParseModeReport(data)
	if !ok || mode != SyncOutputMode {
		return caps, false
	}
	caps.SyncOutput = status.Recognized()
	return caps, true
}
