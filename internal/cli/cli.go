// Package cli implements the clamdscan command: it wires flags and the
// optional config file to a clamd client and prints the daemon's answers.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	clamd "github.com/DevHatRo/clamd-sdk-go"
)

// version is overridable at link time:
//
//	go build -ldflags "-X github.com/DevHatRo/clamd-sdk-go/internal/cli.version=1.1.0"
var version = "1.0.0"

// ErrVirusFound is returned when at least one scan reported an infection.
var ErrVirusFound = errors.New("virus found")

// Env carries the process streams so tests can substitute them.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Execute parses args and runs one clamdscan command.
func Execute(ctx context.Context, args []string, env Env) error {
	fs := flag.NewFlagSet("clamdscan", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)

	var (
		configPath    string
		host          string
		port          int
		chunkSize     string
		maxStreamSize string
		timeout       time.Duration
		proxyURL      string
		concurrency   int
		verbose       int
		showVersion   bool
		showHelp      bool
	)

	defaults := DefaultConfig()

	// ── connection ───────────────────────────────────────────────
	fs.StringVarP(&configPath, "config", "c", "", "YAML config file")
	fs.StringVarP(&host, "host", "H", defaults.Host, "clamd host")
	fs.IntVarP(&port, "port", "p", defaults.Port, "clamd TCP port")
	fs.DurationVarP(&timeout, "timeout", "t", 0, "Per-command timeout (0 = none)")
	fs.StringVar(&proxyURL, "proxy", "", "SOCKS5 proxy URL, e.g. socks5://bastion:1080")

	// ── streaming ────────────────────────────────────────────────
	fs.StringVar(&chunkSize, "chunk-size", defaults.ChunkSize, "INSTREAM chunk size")
	fs.StringVar(&maxStreamSize, "max-stream-size", defaults.MaxStreamSize, "Maximum bytes sent per INSTREAM")
	fs.IntVarP(&concurrency, "concurrency", "j", defaults.Concurrency, "Files scanned in parallel by instream")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(env.Stderr, fs) }

	if err := fs.Parse(args); err != nil {
		return err
	}
	if showHelp {
		printUsage(env.Stderr, fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(env.Stdout, "clamdscan %s\n", version)
		return nil
	}

	cfg := defaults
	if configPath != "" {
		loaded, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// Flags given explicitly win over the config file.
	if fs.Changed("host") {
		cfg.Host = host
	}
	if fs.Changed("port") {
		cfg.Port = port
	}
	if fs.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if fs.Changed("proxy") {
		cfg.Proxy = proxyURL
	}
	if fs.Changed("chunk-size") {
		cfg.ChunkSize = chunkSize
	}
	if fs.Changed("max-stream-size") {
		cfg.MaxStreamSize = maxStreamSize
	}
	if fs.Changed("concurrency") {
		cfg.Concurrency = concurrency
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(env.Stderr, fs)
		return errors.New("command required (use --help for usage)")
	}

	base, _ := logrus.ParseLevel(cfg.LogLevel)
	logger := NewLogger(levelFor(base, verbose), env.Stderr)

	opts, err := cfg.ClientOptions(logger)
	if err != nil {
		return err
	}
	client, err := clamd.NewClient(cfg.Host, opts...)
	if err != nil {
		return err
	}

	r := &runner{client: client, cfg: cfg, env: env, log: logger}
	return r.run(ctx, rest[0], rest[1:])
}

type runner struct {
	client *clamd.Client
	cfg    *Config
	env    Env
	log    logrus.FieldLogger
}

func (r *runner) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "version":
		if err := wantArgs(command, args, 0); err != nil {
			return err
		}
		v, err := r.client.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.env.Stdout, v)
		return nil

	case "ping":
		if err := wantArgs(command, args, 0); err != nil {
			return err
		}
		ok, err := r.client.Ping(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("clamd did not answer PONG")
		}
		fmt.Fprintln(r.env.Stdout, "PONG")
		return nil

	case "scan", "multiscan", "contscan", "allmatchscan":
		if err := wantArgs(command, args, 1); err != nil {
			return err
		}
		result, err := r.scanPath(ctx, command, args[0])
		if err != nil {
			return err
		}
		return r.report(args[0], result)

	case "instream":
		if len(args) == 0 {
			return fmt.Errorf("%s: at least one file (or - for stdin) required", command)
		}
		if n := countStdin(args); n > 1 {
			return fmt.Errorf("%s: stdin (-) can only be scanned once, got it %d times", command, n)
		}
		return r.instream(ctx, args)

	case "stats":
		if err := wantArgs(command, args, 0); err != nil {
			return err
		}
		stats, err := r.client.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.env.Stdout, stats)
		return nil

	case "reload":
		if err := wantArgs(command, args, 0); err != nil {
			return err
		}
		if err := r.client.Reload(ctx); err != nil {
			return err
		}
		fmt.Fprintln(r.env.Stdout, "RELOADING")
		return nil

	case "shutdown":
		if err := wantArgs(command, args, 0); err != nil {
			return err
		}
		return r.client.Shutdown(ctx)

	default:
		return fmt.Errorf("unknown command %q (use --help for usage)", command)
	}
}

func (r *runner) scanPath(ctx context.Context, command, path string) (*clamd.ScanResult, error) {
	switch command {
	case "multiscan":
		return r.client.MultiScanPath(ctx, path)
	case "contscan":
		return r.client.ContScanPath(ctx, path)
	case "allmatchscan":
		return r.client.AllMatchScanPath(ctx, path)
	default:
		return r.client.ScanPath(ctx, path)
	}
}

type fileOutcome struct {
	result *clamd.ScanResult
	err    error
}

// instream uploads every named file, at most cfg.Concurrency at a time, and
// prints the outcomes in argument order.
func (r *runner) instream(ctx context.Context, files []string) error {
	outcomes := make([]fileOutcome, len(files))

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i, name := range files {
		g.Go(func() error {
			result, err := r.scanOne(ctx, name)
			outcomes[i] = fileOutcome{result: result, err: err}
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	var failed int
	var infected bool
	for i, name := range files {
		o := outcomes[i]
		if o.err != nil {
			failed++
			fmt.Fprintf(r.env.Stdout, "%s: %v\n", name, o.err)
			continue
		}
		switch err := r.report(name, o.result); {
		case errors.Is(err, ErrVirusFound):
			infected = true
		case err != nil:
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be scanned", failed, len(files))
	}
	if infected {
		return ErrVirusFound
	}
	return nil
}

func (r *runner) scanOne(ctx context.Context, name string) (*clamd.ScanResult, error) {
	if name == "-" {
		return r.client.ScanReader(ctx, r.env.Stdin)
	}

	if fi, err := os.Stat(name); err == nil {
		if fi.IsDir() {
			return nil, clamd.NewValidationError(fmt.Sprintf("%s is a directory", name), nil)
		}
		r.log.WithFields(logrus.Fields{
			"file": name,
			"size": humanize.IBytes(uint64(fi.Size())),
		}).Info("uploading file")
	}
	return r.client.ScanFilePath(ctx, name)
}

// report prints one line per infected file, or the status otherwise.
// Error replies fail the run. Unclassified replies are printed as-is.
func (r *runner) report(name string, result *clamd.ScanResult) error {
	switch result.Status {
	case clamd.StatusClean:
		fmt.Fprintf(r.env.Stdout, "%s: OK\n", name)
	case clamd.StatusVirusDetected:
		for _, f := range result.InfectedFiles {
			file := f.FileName
			if file == "" || file == "stream" {
				file = name
			}
			fmt.Fprintf(r.env.Stdout, "%s:%s FOUND\n", file, f.VirusName)
		}
		return ErrVirusFound
	case clamd.StatusError:
		fmt.Fprintln(r.env.Stdout, replyLine(name, result.Raw))
		return fmt.Errorf("clamd error: %s", result.Raw)
	default:
		fmt.Fprintln(r.env.Stdout, replyLine(name, result.Raw))
	}
	return nil
}

// replyLine prefixes raw with name unless clamd already did.
func replyLine(name, raw string) string {
	if strings.HasPrefix(raw, name+":") {
		return raw
	}
	return name + ": " + raw
}

func countStdin(args []string) int {
	var n int
	for _, a := range args {
		if a == "-" {
			n++
		}
	}
	return n
}

func wantArgs(command string, args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s: expected %d argument(s), got %d", command, n, len(args))
	}
	return nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `clamdscan - clamd command-line client v%s

Usage:
  clamdscan [options] <command> [args...]

Commands:
  version                     Print the clamd version
  ping                        Check that clamd answers PONG
  scan <path>                 Scan a path on the clamd host
  multiscan <path>            Scan a path on the clamd host with several threads
  contscan <path>             Scan a path without stopping at the first virus
  allmatchscan <path>         Scan a path reporting every matching signature
  instream <file...|->        Upload local files (or stdin) and scan them
  stats                       Print clamd statistics
  reload                      Reload the signature databases
  shutdown                    Stop clamd

Options:
`, version)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Exit status: 0 clean, 1 error, 2 virus found.
`)
}
