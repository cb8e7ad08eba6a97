// Command predict runs one prediction and prints the ranked table.
//
// Settings come from the usual config layers (defaults, PITWALL_CONFIG,
// PITWALL_* env) and any flag given on the command line overrides them.
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
	"strings"
	"syscall"
	"text/tabwriter"

	app "github.com/okian/pitwall/internal/app"
	"github.com/okian/pitwall/internal/config"
	"github.com/okian/pitwall/internal/domain/model"
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

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			os.Stderr.WriteString("predict: " + err.Error() + "\n")
		}
		stop()
		os.Exit(1)
	}
}

// options holds the flags that are not config overrides.
type options struct {
	format string
	path   string
	quiet  bool
}

// run parses args over the loaded config, runs the prediction and writes the
// result to stdout and, when asked, to a JSON file.
func run(ctx context.Context, args []string, stdout io.Writer, svcOpts ...app.Option) error {
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
	if err := cfg.ValidateRun(); err != nil {
		return err
	}

	svc := app.New(append([]app.Option{
		app.WithConfig(cfg),
		app.WithLogger(logger.Named("predict")),
	}, svcOpts...)...)

	res, err := svc.Predict(ctx, model.RunRequest{Year: cfg.Year, Round: cfg.Round})
	if err != nil {
		return err
	}

	if opts.path != "" {
		if err := writeJSONFile(opts.path, res); err != nil {
			return err
		}
	}
	if opts.quiet {
		return nil
	}
	if opts.format == "json" {
		return writeJSON(stdout, res)
	}
	return writeText(stdout, res)
}

// parseFlags applies the flags that were set on the command line to cfg.
func parseFlags(cfg *config.Config, args []string) (options, error) {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	var (
		mode      = fs.String("mode", cfg.Mode, "qualifying or race")
		source    = fs.String("source", cfg.Source, "openf1, local or fastf1")
		year      = fs.Int("year", cfg.Year, "season of the round to predict")
		round     = fs.Int("round", cfg.Round, "round number to predict")
		seasons   = fs.String("train-seasons", strings.Join(cfg.TrainSeasons, ","), "comma separated training seasons, or auto")
		standings = fs.Bool("include-standings", cfg.IncludeStandings, "add championship position as a race feature")
		cacheDir  = fs.String("cache-dir", cfg.CacheDir, "REST response cache directory; empty disables it")
		dataDir   = fs.String("data-dir", cfg.DataDir, "root of the local session export")
		meeting   = fs.String("meeting-name", cfg.MeetingName, "meeting name filter for the target round")
		country   = fs.String("country-name", cfg.CountryName, "country name filter for the target round")
		topN      = fs.Int("top", cfg.TopN, "number of drivers to print")
		logLevel  = fs.String("log-level", cfg.LogLevel, "debug, info, warn or error")
		disabled  = fs.String("disable-models", strings.Join(cfg.DisabledModels, ","), "comma separated candidate models to skip")

		o options
	)
	fs.StringVar(&o.format, "output-format", "text", "text or json")
	fs.StringVar(&o.path, "output-path", "", "also write the JSON result to this file")
	fs.BoolVar(&o.quiet, "quiet", false, "print nothing")

	if err := fs.Parse(args); err != nil {
		return options{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	if o.format != "text" && o.format != "json" {
		return options{}, fmt.Errorf("%w: output-format must be text or json", config.ErrInvalidConfig)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Mode = *mode
		case "source":
			cfg.Source = *source
		case "year":
			cfg.Year = *year
		case "round":
			cfg.Round = *round
		case "train-seasons":
			cfg.TrainSeasons = []string{*seasons}
		case "include-standings":
			cfg.IncludeStandings = *standings
		case "cache-dir":
			cfg.CacheDir = *cacheDir
		case "data-dir":
			cfg.DataDir = *dataDir
		case "meeting-name":
			cfg.MeetingName = *meeting
		case "country-name":
			cfg.CountryName = *country
		case "top":
			cfg.TopN = *topN
		case "log-level":
			cfg.LogLevel = *logLevel
		case "disable-models":
			cfg.DisabledModels = splitList(*disabled)
		}
	})
	return o, nil
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

func writeJSON(w io.Writer, res model.Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func writeJSONFile(path string, res model.Run) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := writeJSON(f, res); err != nil {
		_ = f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	return f.Close()
}

func writeText(w io.Writer, res model.Run) error {
	rule := strings.Repeat("=", ruleWidth)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Mode: %s | Source: %s | Year: %d | Round: %d\n", res.Mode, res.Source, res.Year, res.Round)
	fmt.Fprintf(w, "Model version: %s | Model: %s\n", res.Version, res.Model)
	fmt.Fprintln(w, rule)

	if len(res.Rows) == 0 {
		fmt.Fprintln(w, "No prediction available.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "rank\tdriver\tpred")
		for _, r := range res.Rows {
			name := r.DriverName
			if name == "" {
				name = r.DriverID
			}
			fmt.Fprintf(tw, "%d\t%s\t%.3f\n", r.Rank, name, r.Pred)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(res.Notes) > 0 {
		fmt.Fprintln(w, "\nNotes:")
		for _, n := range res.Notes {
			fmt.Fprintf(w, "- %s\n", n)
		}
	}
	return nil
}
