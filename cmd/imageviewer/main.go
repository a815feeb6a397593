// Command imageviewer is a line-oriented shell over an image viewing session.
//
//	imageviewer [file]
//
// Configuration is read from $XDG_CONFIG_HOME/imageviewer/config.toml and
// ./imageviewer.toml.  Type "help" for the command list.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/Skryldev/imageviewer"
	"github.com/Skryldev/imageviewer/config"
	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
	"github.com/Skryldev/imageviewer/hooks"
	"github.com/Skryldev/imageviewer/session"
	"github.com/Skryldev/imageviewer/view"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(args []string, in io.Reader, out io.Writer) int {
	cfg, err := config.Load(config.DefaultPaths()...)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		return 1
	}
	logger := newLogger(cfg)
	v, err := imageviewer.New(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	d := session.NewDispatcher(v.Session, session.DispatcherOptions{
		Logger: logger,
		OnRenderError: func(gen uint64, err error) {
			fmt.Fprintln(out, errorStyle.Render(apperrors.Prompt(err)))
		},
	})
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	go drainFrames(ctx, d, logger)

	sh := &shell{
		d:       d,
		parser:  parser{codec: v.Codec, margin: cfg.WatermarkMargin},
		metrics: v.Metrics,
		out:     out,
		prompt:  isTerminal(in),
	}
	code := 0
	if len(args) > 0 {
		if !sh.exec(ctx, session.Open{Path: args[0]}) {
			code = 1
		} else if v.Zoom != view.Fit(view.FitPage) {
			sh.exec(ctx, session.SetZoomMode{Zoom: v.Zoom})
		}
	}
	if !sh.loop(ctx, in) {
		code = 1
	}

	stop()
	<-done
	if err := v.Close(context.Background()); err != nil {
		logger.Warn("session.shutdown", "error", err)
	}
	return code
}

func newLogger(cfg config.Config) *hooks.SlogLogger {
	opts := &slog.HandlerOptions{Level: hooks.ParseLevel(cfg.LogLevel)}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	return hooks.NewSlogLogger(slog.New(h))
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// drainFrames consumes redraws; the shell has no surface to paint them on.
func drainFrames(ctx context.Context, d *session.Dispatcher, log core.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-d.Frames():
			log.Debug("session.frame", "generation", f.Generation, "size", fmt.Sprintf("%dx%d", f.Size.Width, f.Size.Height))
		}
	}
}

type shell struct {
	d       *session.Dispatcher
	parser  parser
	metrics *hooks.InMemoryMetrics
	out     io.Writer
	prompt  bool
	failed  bool
}

// loop reads commands until EOF, quit or cancellation.  It reports whether
// every command in a non-interactive run succeeded.
func (sh *shell) loop(ctx context.Context, in io.Reader) bool {
	sc := bufio.NewScanner(in)
	for {
		if sh.prompt {
			fmt.Fprint(sh.out, promptStyle.Render("imageviewer> "))
		}
		if !sc.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		l, err := sh.parser.parse(sc.Text())
		if err != nil {
			sh.fail(err.Error())
			continue
		}
		switch l.Builtin {
		case builtinQuit:
			return sh.prompt || !sh.failed
		case builtinHelp:
			fmt.Fprint(sh.out, helpText())
			continue
		case builtinStats:
			sh.printStats()
			continue
		}
		if l.Command != nil {
			sh.exec(ctx, l.Command)
		}
	}
	return sh.prompt || !sh.failed
}

func (sh *shell) exec(ctx context.Context, cmd session.Command) bool {
	start := time.Now()
	v, err := sh.d.Do(ctx, cmd)
	if err != nil {
		sh.fail(apperrors.Prompt(err))
		return false
	}
	sh.print(v)
	if v == nil {
		fmt.Fprintln(sh.out, dimStyle.Render(fmt.Sprintf("ok (%s)", time.Since(start).Round(time.Millisecond))))
	}
	return true
}

func (sh *shell) fail(msg string) {
	sh.failed = true
	fmt.Fprintln(sh.out, errorStyle.Render(msg))
}

func (sh *shell) print(v any) {
	switch v := v.(type) {
	case nil:
	case core.Metadata:
		for _, e := range v.Entries() {
			fmt.Fprintf(sh.out, "%s %s\n", keyStyle.Render(e.Key+":"), e.Value)
		}
	case core.Size:
		fmt.Fprintf(sh.out, "%dx%d\n", v.Width, v.Height)
	case core.Format:
		fmt.Fprintln(sh.out, string(v))
	case session.Properties:
		rows := [][2]string{
			{"File", v.File},
			{"Format", string(v.Format)},
			{"Size", fmt.Sprintf("%dx%d", v.Width, v.Height)},
			{"Stored", fmt.Sprintf("%dx%d", v.Stored.Width, v.Stored.Height)},
			{"Model", v.Model.String()},
			{"Page", fmt.Sprintf("%d/%d", v.Page, v.Pages)},
			{"Operations", fmt.Sprint(v.Operations)},
			{"Materialized", fmt.Sprint(v.Materialized)},
		}
		for _, r := range rows {
			fmt.Fprintf(sh.out, "%s %s\n", keyStyle.Render(r[0]+":"), r[1])
		}
	case []string:
		for _, p := range v {
			fmt.Fprintln(sh.out, p)
		}
	case session.Frame:
		fmt.Fprintf(sh.out, "frame %dx%d\n", v.Size.Width, v.Size.Height)
	default:
		fmt.Fprintln(sh.out, v)
	}
}

func (sh *shell) printStats() {
	snap := sh.metrics.Snapshot()
	names := make([]string, 0, len(snap.OpCalls))
	for n := range snap.OpCalls {
		names = append(names, n)
	}
	slices.Sort(names)
	for _, n := range names {
		fmt.Fprintf(sh.out, "%s calls=%d total=%dms errors=%d\n",
			keyStyle.Render(n), snap.OpCalls[n], snap.OpDurationsMs[n], snap.OpErrors[n])
	}
	fmt.Fprintf(sh.out, "%s %d\n", keyStyle.Render("pixels:"), snap.TotalPixels)
}

func helpText() string {
	var b strings.Builder
	section := func(title string, lines ...string) {
		b.WriteString(promptStyle.Render(title) + "\n")
		for _, l := range lines {
			b.WriteString("  " + l + "\n")
		}
	}
	section("file",
		"open <path>", "close", "save <path> [format]",
		"page <n>  (1-based)", "next", "prev")
	section("history", "undo", "redo", "reset")
	section("view",
		"zoom in|out|fit-page|fit-height|fit-width|<percent>",
		"window <w> <h>",
		"frame <out.png>")
	section("edit",
		"op <name> [args]  e.g. op rotate 90, op scale 0.5, op crop 0 0 10 10",
		"brighten | darken",
		"crop <x> <y> <w> <h>  (view coordinates)",
		"clip rect|ellipse <x> <y> <w> <h> [outside]",
		"clip polygon <x,y> <x,y> <x,y> ... [outside]",
		`watermark text "<text>" [color= font= size= style= pos= margin=]`,
		"watermark shape <tall-rectangle|wide-rectangle|square|triangle> [color= pos= alpha= mode= outline=<w> margin=]",
		"watermark image <path> [pos= alpha= mode= margin=]")
	section("info", "meta", "dims", "format", "props", "thumbs <dir>", "stats")
	section("shell", "help", "quit")
	return b.String()
}
