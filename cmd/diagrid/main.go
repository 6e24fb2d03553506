// Package main is the command line front end for the diagrid graph engine.
// It loads a diagram document from JSON and runs validation or prints a
// summary; the interactive editing surface lives elsewhere and talks to the
// same internal packages.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/dshills/diagrid/internal/config"
	"github.com/dshills/diagrid/internal/document"
	"github.com/dshills/diagrid/internal/engine/entity"
	"github.com/dshills/diagrid/internal/validate"
	"github.com/dshills/diagrid/internal/validate/luarule"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

type options struct {
	configPath string
	rulePath   string
	logLevel   string
	command    string
	file       string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	logger := newLogger(opts.logLevel)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		return 1
	}

	doc := document.New(nil,
		document.WithConfig(cfg),
		document.WithLogger(logger))

	if opts.rulePath != "" {
		script, err := os.ReadFile(opts.rulePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: read rule script: %v\n", err)
			return 1
		}
		rule, err := luarule.New(string(script))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: load rule script: %v\n", err)
			return 1
		}
		defer rule.Close()
		doc.Validation().AddRule("script:"+opts.rulePath, validate.LevelError, rule)
	}

	if err := loadDocument(doc, opts.file); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	switch opts.command {
	case "validate":
		return runValidate(doc)
	case "info":
		return runInfo(doc, opts.file)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", opts.command)
		flag.Usage()
		return 1
	}
}

func loadDocument(doc *document.Document, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	var snap document.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	return doc.Restore(snap)
}

func runValidate(doc *document.Document) int {
	report := doc.Validation().Validate()

	for _, issue := range report.Errors {
		fmt.Printf("error   %-20s %s\n", issue.Rule, strings.Join(issue.Details, "; "))
	}
	for _, issue := range report.Warnings {
		fmt.Printf("warning %-20s %s\n", issue.Rule, strings.Join(issue.Details, "; "))
	}

	if len(report.Errors) > 0 {
		fmt.Printf("\n%d error(s), %d warning(s)\n", len(report.Errors), len(report.Warnings))
		return 1
	}
	fmt.Printf("valid (%d warning(s))\n", len(report.Warnings))
	return 0
}

func runInfo(doc *document.Document, path string) int {
	fmt.Printf("Document: %s\n", path)
	fmt.Printf("Nodes:    %d\n", doc.Nodes().Count())
	fmt.Printf("Edges:    %d\n", doc.Edges().Count())
	fmt.Printf("Layers:   %d\n", len(doc.Layers().Layers()))

	if bounds, ok := graphBounds(doc); ok {
		fmt.Printf("Bounds:   (%.1f, %.1f) %gx%g\n", bounds.X, bounds.Y, bounds.Width, bounds.Height)
	}

	report := doc.Validation().Validate()
	status := "valid"
	if len(report.Errors) > 0 {
		status = fmt.Sprintf("%d error(s)", len(report.Errors))
	}
	fmt.Printf("Status:   %s\n", status)
	return 0
}

// graphBounds is the union of every node's bounding rectangle.
func graphBounds(doc *document.Document) (entity.Rect, bool) {
	nodes := doc.Nodes().GetAll()
	if len(nodes) == 0 {
		return entity.Rect{}, false
	}

	minX, minY := nodes[0].X, nodes[0].Y
	maxX, maxY := nodes[0].X+nodes[0].Width, nodes[0].Y+nodes[0].Height
	for _, n := range nodes[1:] {
		minX = math.Min(minX, n.X)
		minY = math.Min(minY, n.Y)
		maxX = math.Max(maxX, n.X+n.Width)
		maxY = math.Max(maxY, n.Y+n.Height)
	}
	return entity.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}

func newLogger(level string) *slog.Logger {
	var lv slog.Level
	switch level {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv}))
}

func parseFlags() options {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.rulePath, "rule", "", "Path to a Lua validation rule script")
	flag.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Diagrid - diagram document engine\n\n")
		fmt.Fprintf(os.Stderr, "Usage: diagrid [options] <command> <file>\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  validate   Run validation rules against a document\n")
		fmt.Fprintf(os.Stderr, "  info       Print a document summary\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  diagrid validate flow.json\n")
		fmt.Fprintf(os.Stderr, "  diagrid -rule nocross.lua validate flow.json\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("Diagrid %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		os.Exit(0)
	}

	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(1)
	}

	opts.command = flag.Arg(0)
	opts.file = flag.Arg(1)
	return opts
}
