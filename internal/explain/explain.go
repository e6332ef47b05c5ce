package explain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mickamy/myxplain/internal/analyzer"
	"github.com/mickamy/myxplain/internal/config"
	"github.com/mickamy/myxplain/internal/graph"
	"github.com/mickamy/myxplain/internal/insight"
	"github.com/mickamy/myxplain/internal/metrics"
	"github.com/mickamy/myxplain/internal/model"
	"github.com/mickamy/myxplain/internal/parser"
)

// Options configures an Analyzer.
type Options struct {
	Rules   config.RuleConfig
	Graph   graph.Options
	Metrics *metrics.Metrics
}

// OptionsFrom builds analyzer options from a configuration.
func OptionsFrom(cfg config.Config) Options {
	return Options{
		Rules: cfg.Rules,
		Graph: graph.OptionsFrom(cfg.Graph),
	}
}

// Analyzer runs the full pipeline: detect, parse, build the tree, diagnose and lay out the graph.
// It keeps no per-call state and is safe for concurrent use.
type Analyzer struct {
	engine  *insight.Engine
	graph   graph.Options
	metrics *metrics.Metrics
}

// New returns an analyzer with the given options.
func New(opts Options) *Analyzer {
	codes := make([]string, 0, len(insight.Codes))
	for _, c := range insight.Codes {
		codes = append(codes, string(c))
	}
	opts.Metrics.InitFindings(codes)

	return &Analyzer{
		engine:  insight.NewEngine(opts.Rules),
		graph:   opts.Graph,
		metrics: opts.Metrics,
	}
}

// Analyze never fails: input that cannot be read as a plan yields a result holding a single
// advisory finding and no tree or graph, with the cause in Err.
func (a *Analyzer) Analyze(input string) *Result {
	start := time.Now()

	doc, format, err := parser.Parse(input)
	if err != nil {
		res := a.unrecognized(format, err)
		a.observe(res, time.Since(start))
		return res
	}

	res, err := a.AnalyzeDocument(doc, format)
	if err != nil {
		res = a.unrecognized(format, err)
	}
	a.observe(res, time.Since(start))
	return res
}

// AnalyzeDocument runs the pipeline on an already parsed document.
func (a *Analyzer) AnalyzeDocument(doc *model.Document, format parser.Format) (*Result, error) {
	analysis, err := analyzer.Analyze(doc)
	if err != nil {
		return nil, err
	}

	res := &Result{
		ID:        uuid.New(),
		Format:    format,
		Document:  doc,
		Analysis:  analysis,
		Findings:  a.engine.Evaluate(analysis.Nodes, analysis.TotalCost),
		graphOpts: a.graph,
	}
	res.Graph = graph.Build(analysis.Root, analysis.Nodes, "", a.graph)

	zap.S().Debugw("analysis complete",
		"id", res.ID,
		"format", format,
		"nodes", analysis.NodeCount,
		"totalCost", analysis.TotalCost,
		"findings", len(res.Findings),
	)
	return res, nil
}

func (a *Analyzer) unrecognized(format parser.Format, err error) *Result {
	reason := err.Error()
	var malformed *parser.MalformedInputError
	if errors.As(err, &malformed) {
		reason = malformed.Reason
	}
	zap.S().Debugw("input rejected", "format", format, "reason", reason, "error", err)

	return &Result{
		ID:        uuid.New(),
		Format:    format,
		Findings:  []insight.Finding{insight.Unrecognized()},
		Err:       err,
		graphOpts: a.graph,
	}
}

func (a *Analyzer) observe(res *Result, elapsed time.Duration) {
	if a.metrics == nil {
		return
	}
	codes := make([]string, 0, len(res.Findings))
	for _, f := range res.Findings {
		codes = append(codes, string(f.Code))
	}
	a.metrics.ObserveAnalysis(string(res.Format), res.Outcome(), len(res.Nodes()), codes, elapsed)
}
