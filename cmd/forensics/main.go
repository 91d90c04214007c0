package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/anime-shed/image-forensics-go/internal/analyzer"
	"github.com/anime-shed/image-forensics-go/internal/config"
	"github.com/anime-shed/image-forensics-go/internal/container"
	apperrors "github.com/anime-shed/image-forensics-go/internal/errors"
	"github.com/anime-shed/image-forensics-go/internal/observer"
	"github.com/anime-shed/image-forensics-go/pkg/models"
)

// ELA deltas are small; written maps are amplified to be visible
const elaRenderScale = 10

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("forensics", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		quality      = fs.Int("quality", 0, "JPEG quality for error level analysis, 1-100 (default from config)")
		configPath   = fs.String("config", "", "optional YAML configuration file")
		artifactsDir = fs.String("artifacts", "", "directory to write edges.png and ela.png into")
		asJSON       = fs.Bool("json", false, "print the report as JSON")
		fast         = fs.Bool("fast", false, "skip pixel transforms")
		noClone      = fs.Bool("no-clone", false, "skip the duplicated region search")
	)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: forensics [flags] <image-ref>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	ref := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	// Keep stdout clean for the JSON report
	traceOut := stdout
	if *asJSON {
		traceOut = stderr
	}

	c, err := container.NewContainer(cfg,
		container.WithLocalSources(true),
		container.WithObserver(observer.NewConsoleObserver(traceOut)),
	)
	if err != nil {
		fmt.Fprintf(stderr, "init: %v\n", err)
		return 1
	}
	defer c.Close()

	opts := analyzer.DefaultOptions()
	if *fast {
		opts = analyzer.FastOptions()
	}
	if *noClone {
		opts = opts.WithoutCloneDetection()
	}
	opts = opts.WithQuality(cfg.Forensics.ELAQuality)
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "quality" {
			opts = opts.WithQuality(*quality)
		}
	})
	opts.MaxWorkers = cfg.Forensics.MaxWorkers

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, cfg.AnalysisTimeout)
	defer cancelTimeout()

	report, err := c.Service().Analyze(ctx, ref, opts)
	if err != nil {
		// the console observer has already printed the failing stage
		if !apperrors.IsType(err, apperrors.ErrorTypeDecode) {
			fmt.Fprintf(stderr, "%s %v\n", color.RedString("[-]"), err)
		}
		return 1
	}

	if *artifactsDir != "" {
		written, err := writeArtifacts(*artifactsDir, report)
		if err != nil {
			fmt.Fprintf(stderr, "%s %v\n", color.RedString("[-]"), err)
			return 1
		}
		for _, p := range written {
			fmt.Fprintf(traceOut, "%s Wrote %s\n", color.GreenString("[+]"), p)
		}
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(stderr, "encode report: %v\n", err)
			return 1
		}
		return 0
	}

	printSummary(stdout, report)
	return 0
}

func printSummary(w io.Writer, report *models.ForensicReport) {
	fmt.Fprintf(w, "\nReport %s\n", report.ID)
	fmt.Fprintf(w, "  Image:       %s (%s, %dx%d)\n", report.Source, report.Format, report.Width, report.Height)
	fmt.Fprintf(w, "  Screenshot:  %s (+%d)\n", report.Screenshot.Label, report.Screenshot.Score)
	for _, c := range report.Forgery.Contributions {
		fmt.Fprintf(w, "  Heuristic:   %s (+%d)\n", c.Label, c.Score)
	}
	if report.Edges.Available() {
		fmt.Fprintf(w, "  Edges:       %d pixels (density %.4f)\n", report.Edges.Count, report.Edges.Density)
	} else if report.Edges.Error != "" {
		fmt.Fprintf(w, "  Edges:       unavailable: %s\n", report.Edges.Error)
	}
	if report.ELA.Available() {
		s := report.ELA.Stats
		fmt.Fprintf(w, "  ELA (q=%d):  mean %.2f, std dev %.2f, max %.0f\n", report.ELA.Quality, s.Mean, s.StdDev, s.Max)
	} else if report.ELA.Error != "" {
		fmt.Fprintf(w, "  ELA:         unavailable: %s\n", report.ELA.Error)
	}
	if n := len(report.Clones.Candidates); n > 0 {
		fmt.Fprintf(w, "  Clones:      %d candidate block pairs\n", n)
	}

	score := fmt.Sprintf("%d%%", report.TotalScore)
	if report.TotalScore >= 50 {
		score = color.New(color.FgRed, color.Bold).Sprint(score)
	}
	fmt.Fprintf(w, "  Forgery probability: %s\n", score)
}

// writeArtifacts renders the available pixel maps into dir
func writeArtifacts(dir string, report *models.ForensicReport) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}

	var written []string
	if report.Edges.Available() {
		p := filepath.Join(dir, "edges.png")
		if err := writePNG(p, report.Edges.Map.Image()); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	if report.ELA.Available() {
		p := filepath.Join(dir, "ela.png")
		if err := writePNG(p, report.ELA.Map.Image(elaRenderScale)); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	return written, nil
}

func writePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
