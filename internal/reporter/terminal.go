package reporter

import (
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/five82/splitproc/internal/util"
)

// TerminalReporter outputs human-friendly, colorized text to the terminal,
// including a live cache-occupancy gauge per clip while the server runs.
type TerminalReporter struct {
	mu       sync.Mutex
	verbose  bool
	gauges   map[int]*progressbar.ProgressBar
	cyan     *color.Color
	green    *color.Color
	yellow   *color.Color
	red      *color.Color
	magenta  *color.Color
	bold     *color.Color
	dim      *color.Color
}

// NewTerminalReporter creates a new terminal reporter with verbose mode disabled.
func NewTerminalReporter() *TerminalReporter {
	return NewTerminalReporterVerbose(false)
}

// NewTerminalReporterVerbose creates a new terminal reporter with configurable verbose mode.
func NewTerminalReporterVerbose(verbose bool) *TerminalReporter {
	return &TerminalReporter{
		verbose: verbose,
		gauges:  make(map[int]*progressbar.ProgressBar),
		cyan:    color.New(color.FgCyan, color.Bold),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow, color.Bold),
		red:     color.New(color.FgRed, color.Bold),
		magenta: color.New(color.FgMagenta),
		bold:    color.New(color.Bold),
		dim:     color.New(color.Faint),
	}
}

const labelWidth = 16

func (r *TerminalReporter) printLabel(label, value string) {
	paddedLabel := fmt.Sprintf("%-*s", labelWidth, label)
	fmt.Printf("  %s %s\n", r.bold.Sprint(paddedLabel), value)
}

func (r *TerminalReporter) Hardware(summary HardwareSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("HARDWARE")
	r.printLabel("Hostname:", summary.Hostname)
	r.printLabel("CPUs:", fmt.Sprintf("%d", summary.NumCPU))
}

func (r *TerminalReporter) ServerStarted(summary ServerStartedSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("CHANNEL")
	r.printLabel("Port:", summary.Port)
	r.printLabel("Clips:", fmt.Sprintf("%d", summary.ClipCount))
	r.printLabel("Slots/clip:", fmt.Sprintf("%d", summary.SlotCount))
	r.printLabel("Cache:", fmt.Sprintf("max=%d behind=%d", summary.MaxCacheFrames, summary.CacheBehind))
}

func (r *TerminalReporter) ClipReady(summary ClipReadySummary) {
	format := "Y8"
	if summary.Planar {
		format = "planar YUV"
	}
	r.printLabel(fmt.Sprintf("clip %d:", summary.Index), fmt.Sprintf("%s %dx%d, %d frames, %s", summary.Name, summary.Width, summary.Height, summary.FrameCount, format))
}

func (r *TerminalReporter) gauge(clipIndex, maxCacheFrames int) *progressbar.ProgressBar {
	g, ok := r.gauges[clipIndex]
	if ok {
		return g
	}
	g = progressbar.NewOptions(maxCacheFrames,
		progressbar.OptionSetDescription(fmt.Sprintf("clip %d cache", clipIndex)),
		progressbar.OptionSetWidth(24),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	r.gauges[clipIndex] = g
	return g
}

func (r *TerminalReporter) CacheStatus(s CacheSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := r.gauge(s.ClipIndex, s.MaxCacheFrames)
	_ = g.Set(s.CacheLen)
}

func (r *TerminalReporter) ClipError(s ClipErrorSummary) {
	fmt.Println()
	_, _ = r.red.Printf("clip %d errored: %s\n", s.ClipIndex, s.Message)
}

func (r *TerminalReporter) ClientConnected(s ClientSummary) {
	if !r.verbose {
		return
	}
	state := "connected"
	if !s.Connected {
		state = "disconnected"
	}
	fmt.Printf("  %s client for clip %d %s\n", r.magenta.Sprint("›"), s.ClipIndex, state)
}

func (r *TerminalReporter) ShutdownComplete(s ShutdownSummary) {
	r.mu.Lock()
	for _, g := range r.gauges {
		_ = g.Finish()
	}
	r.gauges = make(map[int]*progressbar.ProgressBar)
	r.mu.Unlock()

	fmt.Println()
	_, _ = r.cyan.Println("SHUTDOWN")
	r.printLabel("Clips served:", fmt.Sprintf("%d", s.ClipCount))
	r.printLabel("Teardown time:", util.FormatDurationFromSecs(int64(s.Elapsed.Seconds())))
}

func (r *TerminalReporter) Warning(message string) {
	fmt.Println()
	_, _ = r.yellow.Printf("WARN: %s\n", message)
}

func (r *TerminalReporter) Error(err ReporterError) {
	_, _ = fmt.Fprintln(os.Stderr)
	_, _ = r.red.Fprintf(os.Stderr, "ERROR %s\n", err.Title)
	_, _ = fmt.Fprintf(os.Stderr, "  %s\n", err.Message)
	if err.Context != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Context: %s\n", err.Context)
	}
	if err.Suggestion != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Suggestion: %s\n", err.Suggestion)
	}
}

func (r *TerminalReporter) OperationComplete(message string) {
	fmt.Println()
	fmt.Printf("%s %s\n", r.green.Add(color.Bold).Sprint("✓"), r.bold.Sprint(message))
}

func (r *TerminalReporter) Verbose(message string) {
	if !r.verbose {
		return
	}
	fmt.Printf("  %s %s\n", r.dim.Sprint("›"), r.dim.Sprint(message))
}
