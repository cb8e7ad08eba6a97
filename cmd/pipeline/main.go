// Command pipeline exports the historical dataset and a per-round coverage
// report as CSV files.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/okian/pitwall/internal/adapters/provider"
	app "github.com/okian/pitwall/internal/app"
	"github.com/okian/pitwall/internal/config"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/pipeline"
	"github.com/okian/pitwall/pkg/logger"
)

const ruleWidth = 72

var errUsage = errors.New("usage")

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, nil); err != nil {
		if !errors.Is(err, errUsage) {
			os.Stderr.WriteString("pipeline: " + err.Error() + "\n")
		}
		stop()
		os.Exit(1)
	}
}

// summary is the JSON report printed after a run.
type summary struct {
	Sources      []string     `json:"sources"`
	Years        []int        `json:"years"`
	OutputDir    string       `json:"output_dir"`
	MaxRounds    int          `json:"max_rounds,omitempty"`
	Rows         int          `json:"rows"`
	Events       int          `json:"events"`
	DatasetPath  string       `json:"dataset_csv_path"`
	CoveragePath string       `json:"coverage_csv_path"`
	Notes        []model.Note `json:"notes"`
	GeneratedAt  time.Time    `json:"generated_at"`
}

type options struct {
	sources   []string
	years     []int
	outputDir string
	maxRounds int
	format    string
	path      string
	quiet     bool
}

// run ingests the requested seasons and writes the CSV files. factory is nil
// outside tests; the config-backed factory is used then.
func run(ctx context.Context, args []string, stdout io.Writer, factory provider.Factory) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	opts, err := parseFlags(cfg, args)
	if err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.Named("pipeline")
	if factory == nil {
		factory = app.NewFactory(cfg, app.WithFactoryLogger(log))
	}

	res, err := pipeline.Run(ctx, factory, pipeline.Config{
		Sources:   opts.sources,
		Years:     opts.years,
		MaxRounds: opts.maxRounds,
	}, pipeline.WithLogger(log))
	if err != nil {
		return err
	}
	datasetPath, coveragePath, err := pipeline.WriteFiles(opts.outputDir, res)
	if err != nil {
		return err
	}

	notes := res.Notes
	if notes == nil {
		notes = []model.Note{}
	}
	sum := summary{
		Sources:      opts.sources,
		Years:        opts.years,
		OutputDir:    opts.outputDir,
		MaxRounds:    opts.maxRounds,
		Rows:         len(res.Rows),
		Events:       len(res.Coverage),
		DatasetPath:  datasetPath,
		CoveragePath: coveragePath,
		Notes:        notes,
		GeneratedAt:  time.Now().UTC(),
	}

	if opts.path != "" {
		if err := writeJSONFile(opts.path, sum); err != nil {
			return err
		}
	}
	if opts.quiet {
		return nil
	}
	if opts.format == "json" {
		return writeJSON(stdout, sum)
	}
	writeText(stdout, sum)
	return nil
}

func parseFlags(cfg *config.Config, args []string) (options, error) {
	fs := flag.NewFlagSet("pipeline", flag.ContinueOnError)
	var (
		sources  = fs.String("sources", "local,openf1", "comma separated sources")
		years    = fs.String("years", "", "comma separated seasons, e.g. 2023,2024")
		cacheDir = fs.String("cache-dir", cfg.CacheDir, "REST response cache directory; empty disables it")
		dataDir  = fs.String("data-dir", cfg.DataDir, "root of the local session export")
		logLevel = fs.String("log-level", cfg.LogLevel, "debug, info, warn or error")

		o options
	)
	fs.StringVar(&o.outputDir, "output-dir", "data/f1", "directory for the CSV files")
	fs.IntVar(&o.maxRounds, "max-rounds", 0, "ingest at most this many rounds per season; 0 for all")
	fs.StringVar(&o.format, "output-format", "text", "text or json")
	fs.StringVar(&o.path, "output-path", "", "also write the JSON summary to this file")
	fs.BoolVar(&o.quiet, "quiet", false, "print nothing")

	if err := fs.Parse(args); err != nil {
		return options{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	if o.format != "text" && o.format != "json" {
		return options{}, fmt.Errorf("%w: output-format must be text or json", config.ErrInvalidConfig)
	}
	if o.maxRounds < 0 {
		return options{}, fmt.Errorf("%w: max-rounds must not be negative", config.ErrInvalidConfig)
	}

	o.sources = splitList(*sources)
	if len(o.sources) == 0 {
		return options{}, fmt.Errorf("%w: at least one source is required", config.ErrInvalidConfig)
	}
	ys, err := parseYears(*years)
	if err != nil {
		return options{}, err
	}
	o.years = ys

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "cache-dir":
			cfg.CacheDir = *cacheDir
		case "data-dir":
			cfg.DataDir = *dataDir
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	return o, nil
}

// parseYears returns the distinct years of a comma list in ascending order.
func parseYears(s string) ([]int, error) {
	seen := make(map[int]bool)
	var out []int
	for _, p := range splitList(s) {
		y, err := strconv.Atoi(p)
		if err != nil || y <= 0 {
			return nil, fmt.Errorf("%w: bad year %q", config.ErrInvalidConfig, p)
		}
		if !seen[y] {
			seen[y] = true
			out = append(out, y)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: years are required", config.ErrInvalidConfig)
	}
	sort.Ints(out)
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := writeJSON(f, v); err != nil {
		_ = f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	return f.Close()
}

func writeText(w io.Writer, s summary) {
	rule := strings.Repeat("=", ruleWidth)
	years := make([]string, len(s.Years))
	for i, y := range s.Years {
		years[i] = strconv.Itoa(y)
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "F1 data pipeline")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Sources: %s\n", strings.Join(s.Sources, ", "))
	fmt.Fprintf(w, "Years: %s\n", strings.Join(years, ", "))
	fmt.Fprintf(w, "Events ingested: %d\n", s.Events)
	fmt.Fprintf(w, "Rows written: %d\n", s.Rows)
	fmt.Fprintf(w, "Dataset CSV: %s\n", s.DatasetPath)
	fmt.Fprintf(w, "Coverage CSV: %s\n", s.CoveragePath)
	if len(s.Notes) > 0 {
		fmt.Fprintln(w, "\nNotes:")
		for _, n := range s.Notes {
			fmt.Fprintf(w, "- %s\n", n)
		}
	}
}
