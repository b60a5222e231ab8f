package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"tillpulse/internal/config"
	"tillpulse/internal/exporter"
	"tillpulse/internal/files"
	"tillpulse/internal/infrastructure"
	"tillpulse/internal/kpi"
	"tillpulse/internal/normalizer"
	"tillpulse/internal/validation"
	"tillpulse/pkg/contracts"
	"tillpulse/pkg/contracts/domain"
)

// analyzer bundles the pipeline pieces shared by all workers.
type analyzer struct {
	normalizer *normalizer.Normalizer
	aggregator *kpi.Aggregator
	reports    *exporter.ReportExporter
	logger     *slog.Logger
	outDir     string
	format     string
	topN       int
}

// fileResult is the outcome of analyzing a single export.
type fileResult struct {
	file     files.FileInfo
	summary  domain.ValidationSummary
	report   *kpi.Report
	duration time.Duration
	err      error
}

func main() {
	var (
		in       = flag.String("in", "", "register export file or directory to analyze")
		out      = flag.String("out", "reports", "directory for generated report files")
		format   = flag.String("format", "json", "report format: json, csv or both")
		top      = flag.Int("top", 0, "ranking size for top services (0 uses the configured default)")
		schema   = flag.String("schema", "", "config file with schema overrides")
		parallel = flag.Int("parallel", 4, "number of exports analyzed concurrently")
		latest   = flag.Bool("latest", false, "analyze only the most recent export in the directory")
		version  = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Println(contracts.GetVersionString())
		return
	}

	if *in == "" {
		fmt.Fprintln(os.Stderr, "usage: analyze -in <export.csv|directory> [-out dir] [-format json|csv|both]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	switch *format {
	case "json", "csv", "both":
	default:
		fmt.Fprintf(os.Stderr, "unknown format %q, want json, csv or both\n", *format)
		os.Exit(2)
	}

	cfg, err := loadConfig(*schema)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Batch runs log human readable text to the terminal.
	cfg.Logging.Output = "stdout"
	cfg.Logging.Format = "text"
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	topN := cfg.Analytics.TopN
	if *top > 0 {
		topN = *top
	}
	if *parallel < 1 {
		*parallel = 1
	}

	validator := validation.NewExportValidator(logger)
	if err := validator.ValidateOutputDirectory(*out); err != nil {
		logger.Error("Output directory unusable", slog.String("error", err.Error()))
		os.Exit(1)
	}

	targets, err := resolveTargets(validator, *in, *latest)
	if err != nil {
		logger.Error("Failed to resolve inputs", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if len(targets) == 0 {
		logger.Error("No register exports found", slog.String("in", *in))
		os.Exit(1)
	}

	logger.Info("Starting batch analysis",
		slog.String("version", contracts.Version),
		slog.Int("files", len(targets)),
		slog.Int("parallel", *parallel),
		slog.String("format", *format),
		slog.String("out", *out))

	a := &analyzer{
		normalizer: normalizer.New(cfg.Schema, logger),
		aggregator: kpi.NewAggregator(logger, cfg.Analytics.TopN),
		reports:    exporter.NewReportExporter(logger),
		logger:     logger,
		outDir:     *out,
		format:     *format,
		topN:       topN,
	}

	start := time.Now()
	results := a.run(context.Background(), targets, *parallel)

	failed := printRunSummary(os.Stdout, results, time.Since(start))
	if failed > 0 {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// resolveTargets expands -in into the list of exports to analyze. A file is
// analyzed as-is, a directory is scanned for supported export formats.
func resolveTargets(v *validation.ExportValidator, in string, latestOnly bool) ([]files.FileInfo, error) {
	info, err := os.Stat(in)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if err := v.ValidateExportFile(in); err != nil {
			return nil, err
		}
		return []files.FileInfo{{
			Path:    in,
			Name:    filepath.Base(in),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}}, nil
	}

	found, err := files.NewDiscovery("").FindExportFiles(in)
	if err != nil {
		return nil, err
	}

	if latestOnly {
		file, ok := files.Latest(found)
		if !ok {
			return nil, nil
		}
		return []files.FileInfo{file}, nil
	}

	return found, nil
}

// run analyzes every target with bounded concurrency and returns results in
// input order.
func (a *analyzer) run(ctx context.Context, targets []files.FileInfo, parallel int) []fileResult {
	results := make([]fileResult, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			results[i] = a.analyzeFile(ctx, target)
			return nil
		})
	}

	// Workers report per-file failures through their result so one broken
	// export does not abort the rest of the batch.
	g.Wait()

	return results
}

func (a *analyzer) analyzeFile(ctx context.Context, file files.FileInfo) fileResult {
	start := time.Now()
	result := fileResult{file: file}

	a.logger.InfoContext(ctx, "Analyzing export",
		slog.String("file", file.Name),
		slog.Int64("size", file.Size))

	f, err := os.Open(file.Path)
	if err != nil {
		result.err = fmt.Errorf("open: %w", err)
		return result
	}
	defer f.Close()

	ds, err := a.normalizer.Normalize(ctx, f, file.Name)
	if err != nil {
		result.err = fmt.Errorf("normalize: %w", err)
		return result
	}

	report := a.aggregator.Compute(ctx, ds, a.topN)
	insights := kpi.BuildInsights(report)

	if err := a.writeOutputs(ctx, file, report, insights, ds.Summary); err != nil {
		result.err = err
		return result
	}

	result.summary = ds.Summary
	result.report = report
	result.duration = time.Since(start)
	return result
}

// writeOutputs places reports under the output directory: <stem>_report.json
// for JSON and a <stem>/ directory of tables for CSV.
func (a *analyzer) writeOutputs(ctx context.Context, file files.FileInfo, report *kpi.Report, insights *kpi.Insights, summary domain.ValidationSummary) error {
	stem := strings.TrimSuffix(file.Name, filepath.Ext(file.Name))

	if a.format == "json" || a.format == "both" {
		path := filepath.Join(a.outDir, stem+"_report.json")
		if err := a.reports.WriteJSON(ctx, path, report, insights, summary); err != nil {
			return err
		}
	}

	if a.format == "csv" || a.format == "both" {
		dir := filepath.Join(a.outDir, stem)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		if err := a.reports.WriteCSV(ctx, dir, report); err != nil {
			return err
		}
	}

	return nil
}

// printRunSummary writes one line per file plus the combined totals and
// returns the number of failed files.
func printRunSummary(w io.Writer, results []fileResult, elapsed time.Duration) int {
	var failed, rowsKept, rowsDropped int

	fmt.Fprintln(w)
	for _, res := range results {
		if res.err != nil {
			failed++
			fmt.Fprintf(w, "FAIL  %-40s %v\n", res.file.Name, res.err)
			continue
		}
		rowsKept += res.summary.RowsKept
		rowsDropped += res.summary.RowsDropped
		fmt.Fprintf(w, "ok    %-40s %5d rows  revenue %s  (%s)\n",
			res.file.Name, res.summary.RowsKept,
			res.report.TotalRevenue.StringFixed(2),
			res.duration.Round(time.Millisecond))
	}

	fmt.Fprintf(w, "\n%d analyzed, %d failed, %d rows kept, %d dropped in %s\n",
		len(results)-failed, failed, rowsKept, rowsDropped,
		elapsed.Round(time.Millisecond))

	return failed
}
