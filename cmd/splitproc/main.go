// Package main provides the CLI entry point for splitproc.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/five82/splitproc"
	"github.com/five82/splitproc/internal/clip"
	"github.com/five82/splitproc/internal/config"
	"github.com/five82/splitproc/internal/discovery"
	"github.com/five82/splitproc/internal/logging"
	"github.com/five82/splitproc/internal/reporter"
	"github.com/five82/splitproc/internal/shm"
	"github.com/five82/splitproc/internal/syntheticclip"
)

const (
	appName    = "splitproc"
	appVersion = "0.1.0"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "server":
		err = runServer(os.Args[2:])
	case "client":
		err = runClient(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("%s version %s\n", appName, appVersion)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - cross-process video frame delivery channel

Usage:
  %s <command> [options]

Commands:
  server    Serve clip definitions over a shared-memory channel
  client    Attach to a running server and read frames from one clip
  version   Print version information
  help      Show this help message

Run '%s server --help' or '%s client --help' for command options.
`, appName, appName, appName, appName)
}

// serverArgs holds the parsed arguments for the server command.
type serverArgs struct {
	clipDir        string
	port           string
	logDir         string
	verbose        bool
	noLog          bool
	slotCount      int
	maxCacheFrames int
	cacheBehind    int
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Serve clip definitions over a shared-memory channel.

Usage:
  %s server [options]

Required:
  -d, --dir <PATH>       Directory containing .clip.json clip definitions

Options:
  -p, --port <KEY>       Shared-memory mapping key suffix (default: random)
  -l, --log-dir <PATH>   Log directory (defaults to ~/.local/state/splitproc/logs)
  -v, --verbose          Enable verbose output for troubleshooting
  --slots <N>            Response slots per clip. Default: %d
  --max-cache <N>        Max cached frames per clip. Default: %d
  --cache-behind <N>     Cache trail tolerance behind last request. Default: %d
  --no-log               Disable log file creation
`, appName, config.DefaultSlotCount, config.DefaultMaxCacheFrames, config.DefaultCacheBehind)
	}

	var sa serverArgs
	fs.StringVar(&sa.clipDir, "d", "", "Directory containing clip definitions")
	fs.StringVar(&sa.clipDir, "dir", "", "Directory containing clip definitions")
	fs.StringVar(&sa.port, "p", "", "Shared-memory mapping key suffix")
	fs.StringVar(&sa.port, "port", "", "Shared-memory mapping key suffix")
	fs.StringVar(&sa.logDir, "l", "", "Log directory")
	fs.StringVar(&sa.logDir, "log-dir", "", "Log directory")
	fs.BoolVar(&sa.verbose, "v", false, "Enable verbose output")
	fs.BoolVar(&sa.verbose, "verbose", false, "Enable verbose output")
	fs.IntVar(&sa.slotCount, "slots", config.DefaultSlotCount, "Response slots per clip")
	fs.IntVar(&sa.maxCacheFrames, "max-cache", config.DefaultMaxCacheFrames, "Max cached frames per clip")
	fs.IntVar(&sa.cacheBehind, "cache-behind", config.DefaultCacheBehind, "Cache trail tolerance")
	fs.BoolVar(&sa.noLog, "no-log", false, "Disable log file creation")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if sa.clipDir == "" {
		return fmt.Errorf("clip directory is required (-d/--dir)")
	}
	if sa.port == "" {
		// A fresh random port avoids colliding with another server's
		// leftover shared-memory object; the printed port is how clients
		// find this one.
		sa.port = uuid.NewString()[:8]
	}

	return executeServer(sa)
}

func executeServer(sa serverArgs) error {
	logDir := sa.logDir
	if logDir == "" {
		logDir = logging.DefaultLogDir()
	}
	logger, err := logging.Setup(logDir, sa.verbose, sa.noLog, os.Args)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if logger != nil {
		defer func() { _ = logger.Close() }()
	}

	defFiles, err := discovery.FindClipDefs(sa.clipDir)
	if err != nil {
		return fmt.Errorf("failed to discover clip definitions: %w", err)
	}

	sources := make([]clip.Source, len(defFiles))
	specs := make([]shm.ClipSpec, len(defFiles))
	for i, path := range defFiles {
		def, err := syntheticclip.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		sources[i] = syntheticclip.New(def)
		if logger != nil {
			logger.Info("clip %d: %s", i, syntheticclip.Name(path))
		}
		format := clip.SampleFormatY8
		subW, subH := 0, 0
		if def.Planar {
			format = clip.SampleFormatPlanarYUV
			subW, subH = 1, 1
		}
		specs[i] = shm.ClipSpec{Width: def.Width, Height: def.Height, Format: format, SubsampleW: subW, SubsampleH: subH}
	}

	termRep := reporter.NewTerminalReporterVerbose(sa.verbose)
	var rep reporter.Reporter = termRep
	if logger != nil {
		logRep := reporter.NewLogReporter(logger.Writer())
		rep = reporter.NewCompositeReporter(termRep, logRep)
	}
	rep.Hardware(reporter.HardwareSummary{Hostname: hostname(), NumCPU: numCPU()})

	if logger != nil {
		logger.Info("Serving %d clips from %s on port %s", len(defFiles), sa.clipDir, sa.port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []splitproc.Option{
		splitproc.WithPort(sa.port),
		splitproc.WithSlotCount(sa.slotCount),
		splitproc.WithCacheBounds(sa.maxCacheFrames, sa.cacheBehind),
		splitproc.WithVerbose(sa.verbose),
	}
	srv, err := splitproc.NewServerWithReporter(ctx, sources, specs, rep, opts...)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	fmt.Printf("splitproc server listening on port %s (%d clips)\n", sa.port, len(defFiles))
	fmt.Println("Press Ctrl+C to stop.")

	if sa.verbose {
		go func() {
			ticker := time.NewTicker(2 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					srv.ReportCacheStatus()
				}
			}
		}()
	}

	<-ctx.Done()
	return srv.Shutdown()
}

type clientArgs struct {
	clipDir   string
	port      string
	clipIndex int
	frame     int
	timeout   int
}

func runClient(args []string) error {
	fs := flag.NewFlagSet("client", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Attach to a running server and fetch one frame.

Usage:
  %s client [options]

Required:
  -d, --dir <PATH>       Directory containing .clip.json clip definitions
                         (must match what the server was started with)
  -p, --port <KEY>       Shared-memory mapping key suffix printed by the server

Options:
  -c, --clip <N>         Clip index to proxy. Default: 0
  -f, --frame <N>        Frame number to fetch. Default: 0
  --timeout <SECONDS>    Seconds to wait for a response. Default: unbounded
`, appName)
	}

	var ca clientArgs
	fs.StringVar(&ca.clipDir, "d", "", "Directory containing clip definitions")
	fs.StringVar(&ca.clipDir, "dir", "", "Directory containing clip definitions")
	fs.StringVar(&ca.port, "p", "", "Shared-memory mapping key suffix")
	fs.StringVar(&ca.port, "port", "", "Shared-memory mapping key suffix")
	fs.IntVar(&ca.clipIndex, "c", 0, "Clip index to proxy")
	fs.IntVar(&ca.clipIndex, "clip", 0, "Clip index to proxy")
	fs.IntVar(&ca.frame, "f", 0, "Frame number to fetch")
	fs.IntVar(&ca.frame, "frame", 0, "Frame number to fetch")
	fs.IntVar(&ca.timeout, "timeout", 0, "Seconds to wait for a response")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if ca.clipDir == "" {
		return fmt.Errorf("clip directory is required (-d/--dir)")
	}
	if ca.port == "" {
		return fmt.Errorf("port is required (-p/--port): use the value the server printed")
	}

	return executeClient(ca)
}

func executeClient(ca clientArgs) error {
	defFiles, err := discovery.FindClipDefs(ca.clipDir)
	if err != nil {
		return fmt.Errorf("failed to discover clip definitions: %w", err)
	}
	specs := make([]shm.ClipSpec, len(defFiles))
	for i, path := range defFiles {
		def, err := syntheticclip.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		format := clip.SampleFormatY8
		subW, subH := 0, 0
		if def.Planar {
			format = clip.SampleFormatPlanarYUV
			subW, subH = 1, 1
		}
		specs[i] = shm.ClipSpec{Width: def.Width, Height: def.Height, Format: format, SubsampleW: subW, SubsampleH: subH}
	}
	if ca.clipIndex < 0 || ca.clipIndex >= len(specs) {
		return fmt.Errorf("clip index %d out of range [0,%d)", ca.clipIndex, len(specs))
	}

	client, err := splitproc.NewClient(specs,
		splitproc.WithPort(ca.port),
		splitproc.WithClipIndex(ca.clipIndex),
		splitproc.WithSlotCount(config.DefaultSlotCount),
		splitproc.WithRequestTimeout(time.Duration(ca.timeout)*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to open client channel: %w", err)
	}
	defer func() { _ = client.Close() }()

	frame, err := client.GetFrame(ca.frame)
	if err != nil {
		return fmt.Errorf("GetFrame(%d) failed: %w", ca.frame, err)
	}
	fmt.Printf("frame %d: %d Y bytes, pitch %d\n", ca.frame, len(frame.Y), frame.Pitch)
	return nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

func numCPU() int { return runtime.NumCPU() }
