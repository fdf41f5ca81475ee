// Command opsc computes pass geometry and footprint metrics for a capture
// record, and converts CBOR records to JSON.
//
// Usage:
//
//	opsc pass      [flags] [record.cbor|record.json]
//	opsc footprint [flags] [record.cbor|record.json]
//	opsc convert   [flags] [record.cbor]
//
// Without a record path the first *.cbor file in the current directory is used.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Danselem/dara-opsc/internal/config"
	"github.com/Danselem/dara-opsc/internal/export"
	"github.com/Danselem/dara-opsc/internal/footprint"
	"github.com/Danselem/dara-opsc/internal/passes"
	"github.com/Danselem/dara-opsc/internal/product"
	"github.com/Danselem/dara-opsc/internal/propagation"
	"github.com/Danselem/dara-opsc/internal/tle"
)

const usage = `usage: opsc <command> [flags] [record]

commands:
  pass       azimuth, elevation, range and subpoint for every timestamp
  footprint  ground footprint of the capture
  convert    write a CBOR record as indented JSON
`

// errUsage reports a command line that could not be understood; the message
// has already been printed.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stdoutTTY := term.IsTerminal(int(os.Stdout.Fd()))
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, stdoutTTY); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "opsc:", err)
		}
		os.Exit(1)
	}
}

// options are the flags shared by every command.
type options struct {
	configPath string
	output     string
	tleURL     string
	verbose    bool
	lat, lon   float64
	elevM      float64
	outPath    string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, tty bool) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}
	cmd, args := args[0], args[1:]

	var opts options
	fs := flag.NewFlagSet("opsc "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "config file (default $OPSC_CONFIG)")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging")

	switch cmd {
	case "pass", "footprint":
		fs.StringVar(&opts.output, "o", "", "output format: table, csv or json (default table on a terminal, else csv for pass and json for footprint)")
		fs.StringVar(&opts.tleURL, "tle-url", "", "fetch the TLE from this 3-line source instead of the record")
		if cmd == "pass" {
			fs.Float64Var(&opts.lat, "lat", 0, "observer latitude in degrees (default from config)")
			fs.Float64Var(&opts.lon, "lon", 0, "observer longitude in degrees (default from config)")
			fs.Float64Var(&opts.elevM, "elev", 0, "observer elevation in metres (default from config)")
		}
	case "convert":
		fs.StringVar(&opts.outPath, "out", "", "output path (default: record name with .json)")
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return errUsage
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return errUsage
	}
	if fs.NArg() > 1 {
		fmt.Fprintf(stderr, "expected at most one record path, got %d\n", fs.NArg())
		return errUsage
	}

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))
	level.Set(slog.LevelWarn)

	cfg, err := config.Load(opts.configPath, logger)
	if err != nil {
		return err
	}
	if opts.verbose {
		level.Set(slog.LevelDebug)
	} else if cfg.LogLevel > slog.LevelWarn {
		level.Set(cfg.LogLevel)
	}

	path := fs.Arg(0)
	if path == "" {
		path, err = product.Discover(".")
		if err != nil {
			return err
		}
		logger.Info("using discovered record", "path", path)
	}

	if cmd == "convert" {
		return convert(path, opts.outPath, stdout)
	}

	rec, err := product.ReadFile(path)
	if err != nil {
		return err
	}

	format, err := outputFormat(opts.output, cmd, tty)
	if err != nil {
		return err
	}

	el, err := elementSet(ctx, rec, opts.tleURL, cfg, logger)
	if err != nil {
		return err
	}

	prop := propagation.NewSGP4(logger)

	if cmd == "footprint" {
		proj, err := rec.ProjectionConfig()
		if err != nil {
			return err
		}
		m, err := footprint.NewEngine(prop, logger).Compute(el, rec.Series(), proj)
		if err != nil {
			return err
		}
		return export.WriteFootprint(stdout, m, format)
	}

	obs := cfg.Observer
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lat":
			obs.LatDeg = opts.lat
		case "lon":
			obs.LonDeg = opts.lon
		case "elev":
			obs.ElevationM = opts.elevM
		}
	})
	if !obs.Valid() {
		return fmt.Errorf("observer out of range: lat %v lon %v", obs.LatDeg, obs.LonDeg)
	}

	pool := propagation.NewWorkerPool(cfg.Workers, logger)
	recs, err := passes.NewEngine(prop, pool, logger).Compute(ctx, el, obs, rec.Series())
	if err != nil {
		return err
	}
	return export.WritePasses(stdout, recs, format)
}

// outputFormat resolves -o, defaulting to a table on a terminal.
func outputFormat(flagValue, cmd string, tty bool) (export.Format, error) {
	if flagValue != "" {
		return export.ParseFormat(flagValue)
	}
	switch {
	case tty:
		return export.FormatTable, nil
	case cmd == "pass":
		return export.FormatCSV, nil
	default:
		return export.FormatJSON, nil
	}
}

// elementSet returns the record's TLE, or with a source URL the entry whose
// name matches the record's TLE name.
func elementSet(ctx context.Context, rec *product.Record, url string, cfg config.Config, logger *slog.Logger) (tle.TLE, error) {
	if url == "" {
		url = cfg.TLE.SourceURL
	}
	if url == "" {
		return rec.ElementSet()
	}

	var name string
	if rec.TLE != nil {
		name = rec.TLE.Name
	}
	src := tle.NewSource(
		tle.NewFetcher(url, logger, cfg.TLE.ExtraURLs...),
		tle.NewCache(cfg.TLE.CacheDir, cfg.TLE.MaxFiles),
		logger,
	)
	e, err := src.Lookup(ctx, name)
	if err != nil {
		return tle.TLE{}, err
	}
	return e.TLE, nil
}

func convert(path, outPath string, stdout io.Writer) error {
	format, err := product.FormatFromPath(path)
	if err != nil {
		return err
	}
	if format != product.FormatCBOR {
		return fmt.Errorf("%s is not a CBOR record", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading record: %w", err)
	}
	out, err := product.ToJSON(data)
	if err != nil {
		return err
	}

	if outPath == "" {
		outPath = strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
	}
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	fmt.Fprintf(stdout, "wrote %s\n", outPath)
	return nil
}
