package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/lixenwraith/framekit/engine"
	"github.com/lixenwraith/framekit/layout"
	"github.com/lixenwraith/framekit/logging"
	"github.com/lixenwraith/framekit/metrics"
	"github.com/lixenwraith/framekit/render"
	"github.com/lixenwraith/framekit/terminal"
)

// Demo timing
const (
	refreshInterval = 250 * time.Millisecond
	probeTimeout    = 150 * time.Millisecond
)

func newDemoCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the live dashboard; q or Ctrl-C quits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) || !term.IsTerminal(int(os.Stdin.Fd())) {
				return errors.New("demo needs an interactive terminal")
			}
			return runDemo(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.inline, "inline", 0, "draw in an inline region of N rows at the bottom instead of the alternate screen")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func runDemo(ctx context.Context, opts *options) error {
	cfg := opts.cfg

	level, _ := logging.ParseLevel(cfg.Log.Level)
	logger, closeLog, err := logging.OpenFile(cfg.Log.File, level)
	if err != nil {
		return err
	}
	defer closeLog()

	id := logging.NewSessionID()
	logger = logging.ForSession(logger, id)

	tty := terminal.New()
	if err := tty.Init(); err != nil {
		return err
	}
	defer tty.Fini()

	// Raw mode is on, so the DECRPM reply can be read before input polling starts
	caps := terminal.Probe()
	overrides := cfg.Overrides()
	if overrides.Sync == terminal.SyncAuto {
		caps = terminal.ProbeSyncOutput(tty, caps, probeTimeout)
	}
	caps = overrides.Apply(caps)
	logger.Info("terminal capabilities", "caps", caps.String())

	width, height := tty.Size()
	viewHeight := height

	rec := metrics.NewRecorder()
	pool := render.NewGraphemePool()
	presenterOpts := []terminal.Option{
		terminal.WithLogger(logger),
		terminal.WithObserver(rec),
		terminal.WithPool(pool),
		terminal.WithMergeGap(cfg.Render.MergeGap),
	}
	if cfg.Inline() {
		viewHeight = min(cfg.Present.InlineHeight, height)
		// Scroll the shell up to make room for the region
		fmt.Fprint(os.Stdout, string(bytes.Repeat([]byte("\r\n"), viewHeight)))
		presenterOpts = append(presenterOpts, terminal.WithInline(height-viewHeight, viewHeight))
	}

	ch := terminal.NewChannel(tty.Output())
	tok, err := ch.Acquire()
	if err != nil {
		return err
	}
	defer ch.Release(tok)
	presenter := terminal.NewPresenter(ch, caps, presenterOpts...)

	input := terminal.NewInputService(tty)
	if err := input.Start(); err != nil {
		return err
	}
	defer input.Stop()

	if err := presenter.Enter(tok); err != nil {
		return err
	}
	defer presenter.Leave(tok)

	clock := engine.SystemClock{}
	dash := newDashboard(width, viewHeight, clock.Now())
	if cfg.Layout.ForceFull {
		dash.eng.SetForceFull(true)
	}
	sessionOpts := []engine.Option{
		engine.WithClock(clock),
		engine.WithLogger(logger),
		engine.WithObserver(rec),
		engine.WithPool(pool),
		engine.WithConfig(cfg.SessionConfig()),
		engine.WithID(id),
	}
	if cfg.Inline() {
		sessionOpts = append(sessionOpts, engine.WithInline(cfg.Present.InlineHeight))
	}
	session := engine.NewSession(dash.eng, presenter, tok, sessionOpts...)
	session.Update(func(*layout.Engine) { dash.refresh(clock.Now(), session) })
	session.WriteLog(fmt.Sprintf("framekit %s session %s", version, id))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(guarded(func() error {
		defer cancel()
		return session.Run(ctx)
	}))

	g.Go(guarded(func() error {
		terminal.WatchResize(ctx, tty, session.Resize)
		return nil
	}))

	g.Go(guarded(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case data, ok := <-input.Input():
				if !ok {
					cancel()
					return nil
				}
				switch {
				case bytes.ContainsAny(data, "qQ\x03"):
					cancel()
					return nil
				case bytes.ContainsAny(data, "rR\x0c"):
					session.WriteLog("redraw requested at " + clock.Now().Format(time.TimeOnly))
					session.Redraw()
				}
			}
		}
	}))

	g.Go(guarded(func() error {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				session.Update(func(*layout.Engine) { dash.refresh(clock.Now(), session) })
			}
		}
	}))

	if cfg.Metrics.Addr != "" {
		g.Go(guarded(func() error {
			return metrics.Serve(ctx, cfg.Metrics.Addr, rec, logger)
		}))
	}

	err = g.Wait()
	logger.Info("demo finished", "stats", fmt.Sprintf("%+v", session.Stats()), "err", err)
	return err
}
