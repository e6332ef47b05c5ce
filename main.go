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
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mickamy/myxplain/internal/config"
	"github.com/mickamy/myxplain/internal/diff"
	"github.com/mickamy/myxplain/internal/explain"
	"github.com/mickamy/myxplain/internal/metrics"
	"github.com/mickamy/myxplain/internal/parser"
	"github.com/mickamy/myxplain/internal/render/html"
	"github.com/mickamy/myxplain/internal/render/tui"
	"github.com/mickamy/myxplain/internal/server"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "analyze":
		err = analyzeCommand(args)
	case "convert":
		err = convertCommand(args)
	case "graph":
		err = graphCommand(args)
	case "diff":
		err = diffCommand(args)
	case "serve":
		err = serveCommand(args)
	case "version":
		err = versionCommand(args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		_, _ = fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`myxplain - MySQL EXPLAIN analyzer

Usage:
  myxplain <command> [options]

Commands:
  analyze  Analyze an EXPLAIN FORMAT=JSON or EXPLAIN ANALYZE plan (tui, html, json, mermaid)
  convert  Convert EXPLAIN ANALYZE text into EXPLAIN FORMAT=JSON shaped output
  graph    Print the plan graph as Mermaid flowchart text
  diff     Compare two plans and emit a Markdown or JSON summary
  serve    Serve the analyzer over HTTP
  version  Show CLI version information

Plans are read from --input, or from stdin when --input is omitted or "-".
Use "myxplain <command> -h" for command-specific help.`)
}

// commonFlags are shared by every command that analyzes plans.
type commonFlags struct {
	configPath *string
	verbose    *bool
}

func registerCommon(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", "", "Path to configuration file (JSON). Falls back to $"+config.EnvPath),
		verbose:    fs.Bool("verbose", false, "Enable debug logging"),
	}
}

// setup applies the configuration and installs the global logger. The returned func flushes it.
func (c commonFlags) setup() (func(), error) {
	cfg := zap.NewProductionConfig()
	if *c.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	sync := func() { _ = logger.Sync() }

	if err := config.Apply(config.Resolve(*c.configPath)); err != nil {
		sync()
		return nil, err
	}
	return sync, nil
}

func parseFlags(fs *flag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stdout)
			fs.Usage()
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func analyzeCommand(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: myxplain analyze [--input plan.json] [--mode tui|html|json|mermaid] [--out file]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		input      = fs.String("input", "", "Path to the plan (stdin if omitted)")
		output     = fs.String("out", "", "Output path (stdout if omitted)")
		mode       = fs.String("mode", "tui", "Output mode: tui, html, json or mermaid")
		selected   = fs.String("select", "", "Node id to highlight in the graph")
		title      = fs.String("title", "myxplain report", "Report title (HTML)")
		color      = fs.Bool("color", true, "Enable ANSI colors for TUI output")
		maxDepth   = fs.Int("max-depth", 0, "Limit tree depth (TUI)")
		warnings   = fs.Bool("warnings", true, "Show warnings (TUI)")
		includeCSS = fs.Bool("css", true, "Include inline styles (HTML)")
		mermaidSrc = fs.String("mermaid-src", html.DefaultMermaidSrc, "Mermaid script URL; empty omits the graph (HTML)")
		common     = registerCommon(fs)
	)

	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	sync, err := common.setup()
	if err != nil {
		return err
	}
	defer sync()

	res, err := analyzeInput(*input)
	if err != nil {
		return err
	}
	if *selected != "" {
		res.Select(*selected)
	}

	target, closeOut, err := openOutput(*output)
	if err != nil {
		return err
	}
	defer closeOut()

	switch *mode {
	case "tui":
		err = tui.Render(target, res, tui.Options{
			EnableColor:  *color,
			MaxDepth:     *maxDepth,
			ShowWarnings: *warnings,
		})
	case "html":
		err = html.Render(target, res, html.Options{
			Title:         *title,
			IncludeStyles: *includeCSS,
			MermaidSrc:    *mermaidSrc,
		})
	case "json":
		err = writeIndentedJSON(target, res)
	case "mermaid":
		_, err = fmt.Fprintln(target, res.Mermaid())
	default:
		return fmt.Errorf("unknown mode %q (expected tui, html, json or mermaid)", *mode)
	}
	if err != nil {
		return err
	}
	return res.Err
}

func convertCommand(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: myxplain convert [--input plan.txt] [--out plan.json]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		input  = fs.String("input", "", "Path to the plan (stdin if omitted)")
		output = fs.String("out", "", "Output path (stdout if omitted)")
		common = registerCommon(fs)
	)

	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	sync, err := common.setup()
	if err != nil {
		return err
	}
	defer sync()

	text, err := readInput(*input)
	if err != nil {
		return err
	}
	doc, format, err := parser.Parse(text)
	if err != nil {
		return fmt.Errorf("convert %s input: %w", format, err)
	}

	target, closeOut, err := openOutput(*output)
	if err != nil {
		return err
	}
	defer closeOut()
	return writeIndentedJSON(target, doc)
}

func graphCommand(args []string) error {
	fs := flag.NewFlagSet("graph", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: myxplain graph [--input plan.json] [--select n3] [--out graph.mmd]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		input    = fs.String("input", "", "Path to the plan (stdin if omitted)")
		output   = fs.String("out", "", "Output path (stdout if omitted)")
		selected = fs.String("select", "", "Node id to highlight")
		common   = registerCommon(fs)
	)

	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	sync, err := common.setup()
	if err != nil {
		return err
	}
	defer sync()

	res, err := analyzeInput(*input)
	if err != nil {
		return err
	}
	if !res.Recognized() {
		return res.Err
	}
	res.Select(*selected)

	target, closeOut, err := openOutput(*output)
	if err != nil {
		return err
	}
	defer closeOut()
	_, err = fmt.Fprintln(target, res.Mermaid())
	return err
}

func diffCommand(args []string) error {
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: myxplain diff --base base.json --target target.json [--format md|json]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		basePath   = fs.String("base", "", "Path to the baseline plan")
		targetPath = fs.String("target", "", "Path to the target plan")
		format     = fs.String("format", "md", "Output format: md or json")
		output     = fs.String("out", "", "Output path (stdout if omitted)")
		minDelta   = fs.Float64("min-delta", 0, "Minimum cost delta to report (default from config)")
		minPct     = fs.Float64("min-percent", 0, "Minimum percent change to report (default from config)")
		maxItems   = fs.Int("limit", 0, "Maximum rows per section (default from config)")
		common     = registerCommon(fs)
	)

	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	sync, err := common.setup()
	if err != nil {
		return err
	}
	defer sync()

	if *basePath == "" || *targetPath == "" {
		return fmt.Errorf("--base and --target are required")
	}

	base, err := analyzeInput(*basePath)
	if err != nil {
		return fmt.Errorf("load base: %w", err)
	}
	target, err := analyzeInput(*targetPath)
	if err != nil {
		return fmt.Errorf("load target: %w", err)
	}

	opts := diff.OptionsFrom(config.Active().Diff)
	if *minDelta > 0 {
		opts.MinCostDelta = *minDelta
	}
	if *minPct > 0 {
		opts.MinPercentChange = *minPct
	}
	if *maxItems > 0 {
		opts.MaxItems = *maxItems
	}

	report, err := diff.Compare(base, target, opts)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(*output)
	if err != nil {
		return err
	}
	defer closeOut()

	switch *format {
	case "md", "markdown":
		_, err = io.WriteString(out, report.Markdown())
		return err
	case "json":
		payload, err := report.JSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s\n", payload)
		return err
	default:
		return fmt.Errorf("unsupported format %q", *format)
	}
}

func serveCommand(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: myxplain serve [--addr :8080]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		addr   = fs.String("addr", "", "Listen address (default from config)")
		common = registerCommon(fs)
	)

	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	sync, err := common.setup()
	if err != nil {
		return err
	}
	defer sync()

	cfg := config.Active()
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	reg := prometheus.NewRegistry()
	opts := explain.OptionsFrom(cfg)
	opts.Metrics = metrics.NewMetrics(reg)

	srv := server.NewServer(explain.New(opts), reg, cfg.Server)
	srv.RegisterRoutes()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx, cfg.Server.Addr)
}

func versionCommand(args []string) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	short := fs.Bool("short", false, "Print only the version number")

	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	v, meta := resolveVersion()
	if *short {
		fmt.Println(v)
		return nil
	}
	if meta != "" {
		fmt.Printf("myxplain %s (%s)\n", v, meta)
	} else {
		fmt.Printf("myxplain %s\n", v)
	}
	return nil
}

func resolveVersion() (string, string) {
	v := strings.TrimSpace(version)
	if v == "" {
		v = "dev"
	}

	var commit, buildTime string
	var dirty bool
	if info, ok := debug.ReadBuildInfo(); ok {
		if (v == "dev" || v == "(devel)") &&
			info.Main.Version != "" &&
			info.Main.Version != "(devel)" &&
			!strings.HasPrefix(info.Main.Version, "v0.0.0-") {
			v = info.Main.Version
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				commit = setting.Value
			case "vcs.time":
				buildTime = setting.Value
			case "vcs.modified":
				dirty = setting.Value == "true"
			}
		}
	}

	var details []string
	if commit != "" {
		short := commit
		if len(short) > 12 {
			short = short[:12]
		}
		if dirty {
			short += "*"
		}
		details = append(details, fmt.Sprintf("commit %s", short))
	}
	if buildTime != "" {
		details = append(details, fmt.Sprintf("built %s", buildTime))
	}

	return v, strings.Join(details, ", ")
}

func analyzeInput(path string) (*explain.Result, error) {
	text, err := readInput(path)
	if err != nil {
		return nil, err
	}
	return explain.New(explain.OptionsFrom(config.Active())).Analyze(text), nil
}

func readInput(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	return string(data), nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
