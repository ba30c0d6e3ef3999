package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nulzo/reliability-forge/internal/gateway"
	"github.com/nulzo/reliability-forge/internal/llm"
	"github.com/nulzo/reliability-forge/internal/platform/metrics"
	"github.com/nulzo/reliability-forge/internal/store/model"
	"github.com/nulzo/reliability-forge/internal/templates"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Prompt templates, relative to the templates root.
const (
	ExtractTemplate  = "utils/extract_reliability_input.md"
	IdentifyTemplate = "reliability/utils/identify_reliability_design.md"
	ApplyTemplate    = "reliability/utils/apply_design_pattern.md"
)

const tracerName = "github.com/nulzo/reliability-forge/internal/pipeline"

// Router is the part of gateway.Router the pipeline calls.
type Router interface {
	Chat(ctx context.Context, prompt, model string, opts llm.ChatOptions) (string, error)
	Dispatch(ctx context.Context, prompt string, models []string, opts llm.ChatOptions) (gateway.Result, error)
}

// Recorder persists finished runs, usually asynchronously.
type Recorder interface {
	Log(run *model.Run)
}

type Extraction struct {
	SelectedDesignPattern string `json:"selected_design_pattern"`
	SourceCode            string `json:"source_code"`
	Raw                   string `json:"-"`
}

type Identification struct {
	FormattedDesignPatternName string `json:"formatted_design_pattern_name"`
	Raw                        string `json:"-"`
}

// Generation is the output of the last stage. Found is false when the
// pattern has no manifest and Code holds the placeholder.
type Generation struct {
	Code        string
	CodeByModel map[string]string
	Found       bool
}

type Result struct {
	RunID          string            `json:"run_id"`
	Pattern        string            `json:"pattern"`
	Code           string            `json:"code"`
	CodeByModel    map[string]string `json:"code_by_model,omitempty"`
	Found          bool              `json:"found"`
	Extraction     Extraction        `json:"extraction"`
	Identification Identification    `json:"identification"`
}

type Pipeline struct {
	router           Router
	templates        *templates.Resolver
	model            string
	generationModels []string
	maxTokens        int
	logger           *zap.Logger
	metrics          *metrics.Metrics
	recorder         Recorder
	tracer           trace.Tracer
	now              func() time.Time
}

type Option func(*Pipeline)

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithModel selects the model for the extraction and identification
// stages. Empty means the router's default model.
func WithModel(name string) Option {
	return func(p *Pipeline) { p.model = name }
}

// WithGenerationModels fans the final prompt out to every listed model.
func WithGenerationModels(names []string) Option {
	return func(p *Pipeline) { p.generationModels = append([]string(nil), names...) }
}

func WithMaxTokens(n int) Option {
	return func(p *Pipeline) { p.maxTokens = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

func New(router Router, resolver *templates.Resolver, opts ...Option) *Pipeline {
	p := &Pipeline{
		router:    router,
		templates: resolver,
		logger:    zap.NewNop(),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) opts() llm.ChatOptions {
	return llm.ChatOptions{MaxTokens: p.maxTokens}
}

// ExtractInput asks the model to pull the requested pattern and the source
// code out of free text.
func (p *Pipeline) ExtractInput(ctx context.Context, text string) (Extraction, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.extract")
	defer span.End()

	answer, err := p.ask(ctx, ExtractTemplate, text)
	if err != nil {
		return Extraction{}, spanError(span, err)
	}

	doc, err := parseObject("extraction", answer)
	if err != nil {
		return Extraction{Raw: answer}, spanError(span, err)
	}
	pattern, err := requiredString("extraction", doc, "selected_design_pattern")
	if err != nil {
		return Extraction{Raw: answer}, spanError(span, err)
	}

	ex := Extraction{
		SelectedDesignPattern: strings.TrimSpace(pattern),
		SourceCode:            doc.Get("source_code").String(),
		Raw:                   answer,
	}
	span.SetAttributes(attribute.String("pattern.requested", ex.SelectedDesignPattern))
	return ex, nil
}

// IdentifyDesign maps a free-form pattern name to its canonical name.
func (p *Pipeline) IdentifyDesign(ctx context.Context, name string) (Identification, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.identify")
	defer span.End()

	answer, err := p.ask(ctx, IdentifyTemplate, name)
	if err != nil {
		return Identification{}, spanError(span, err)
	}

	doc, err := parseObject("identification", answer)
	if err != nil {
		return Identification{Raw: answer}, spanError(span, err)
	}
	formatted, err := requiredString("identification", doc, "formatted_design_pattern_name")
	if err != nil {
		return Identification{Raw: answer}, spanError(span, err)
	}

	span.SetAttributes(attribute.String("pattern.identified", formatted))
	return Identification{FormattedDesignPatternName: strings.TrimSpace(formatted), Raw: answer}, nil
}

// SelectAndExecuteTemplate fills the apply template for pattern and sends it
// to the generation models. A pattern without a manifest yields a
// placeholder and no model call.
func (p *Pipeline) SelectAndExecuteTemplate(ctx context.Context, pattern string, ex Extraction) (Generation, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.execute",
		trace.WithAttributes(attribute.String("pattern", pattern)))
	defer span.End()

	vars, found, err := p.templates.Manifest(pattern)
	if err != nil {
		return Generation{}, spanError(span, err)
	}
	if !found {
		p.logger.Info("No template for pattern", zap.String("pattern", pattern), zap.String("dir", templates.PatternDir(pattern)))
		span.SetAttributes(attribute.Bool("template.found", false))
		return Generation{Code: Placeholder(pattern)}, nil
	}

	tpl, err := p.templates.Load(ApplyTemplate)
	if err != nil {
		return Generation{}, spanError(span, err)
	}

	// the fixed keys win over manifest entries of the same name
	vars["design_pattern"] = pattern
	vars["source_code"] = ex.SourceCode
	prompt := templates.Substitute(tpl, vars)

	models := p.generationModels
	if len(models) == 0 && p.model != "" {
		models = []string{p.model}
	}

	res, err := p.router.Dispatch(ctx, prompt, models, p.opts())
	if err != nil {
		return Generation{}, spanError(span, err)
	}

	gen := Generation{Found: true}
	if !res.FanOut {
		gen.Code = ExtractCode(res.Text)
		return gen, nil
	}

	gen.CodeByModel = make(map[string]string, len(res.ByModel))
	for name, answer := range res.ByModel {
		gen.CodeByModel[name] = ExtractCode(answer)
	}
	// Code mirrors the first listed model
	gen.Code = gen.CodeByModel[models[0]]
	span.SetAttributes(attribute.Int("fanout.models", len(models)))
	return gen, nil
}

// Run executes the three stages in order. Any failure aborts the run.
func (p *Pipeline) Run(ctx context.Context, text string) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	start := p.now()
	res := &Result{RunID: uuid.NewString()}
	span.SetAttributes(attribute.String("run.id", res.RunID))

	err := p.run(ctx, text, res)

	p.record(ctx, text, res, err, p.now().Sub(start))
	if err != nil {
		p.metrics.IncPipelineRun(metrics.OutcomeError)
		p.logger.Warn("Pipeline run failed", zap.String("run_id", res.RunID), zap.Error(err))
		return nil, spanError(span, err)
	}

	if res.Found {
		p.metrics.IncPipelineRun(metrics.OutcomeSuccess)
	} else {
		p.metrics.IncPipelineRun(string(model.RunNoTemplate))
	}
	p.logger.Info("Pipeline run finished",
		zap.String("run_id", res.RunID),
		zap.String("pattern", res.Pattern),
		zap.Bool("template_found", res.Found),
		zap.Duration("latency", p.now().Sub(start)),
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, text string, res *Result) error {
	ex, err := p.ExtractInput(ctx, text)
	if err != nil {
		return fmt.Errorf("extract input: %w", err)
	}
	res.Extraction = ex

	id, err := p.IdentifyDesign(ctx, ex.SelectedDesignPattern)
	if err != nil {
		return fmt.Errorf("identify design: %w", err)
	}
	res.Identification = id
	res.Pattern = id.FormattedDesignPatternName

	gen, err := p.SelectAndExecuteTemplate(ctx, res.Pattern, ex)
	if err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	res.Code = gen.Code
	res.CodeByModel = gen.CodeByModel
	res.Found = gen.Found
	return nil
}

func (p *Pipeline) ask(ctx context.Context, tpl, input string) (string, error) {
	raw, err := p.templates.Load(tpl)
	if err != nil {
		return "", err
	}
	prompt := templates.Substitute(raw, map[string]string{"input": input})
	return p.router.Chat(ctx, prompt, p.model, p.opts())
}

func (p *Pipeline) record(ctx context.Context, text string, res *Result, runErr error, latency time.Duration) {
	if p.recorder == nil {
		return
	}

	run := &model.Run{
		ID:               res.RunID,
		Source:           SourceFrom(ctx),
		Input:            text,
		RequestedPattern: res.Extraction.SelectedDesignPattern,
		Pattern:          res.Pattern,
		Code:             res.Code,
		Models:           strings.Join(p.runModels(), ","),
		Status:           model.RunSucceeded,
		LatencyMS:        latency.Milliseconds(),
		CreatedAt:        p.now().UTC(),
	}
	if len(res.CodeByModel) > 0 {
		if b, err := json.Marshal(res.CodeByModel); err == nil {
			run.CodeByModelJSON = string(b)
		}
	}
	switch {
	case runErr != nil:
		run.Status = model.RunFailed
		run.Error = runErr.Error()
	case !res.Found:
		run.Status = model.RunNoTemplate
	}

	p.recorder.Log(run)
}

func (p *Pipeline) runModels() []string {
	if len(p.generationModels) > 0 {
		return p.generationModels
	}
	if p.model != "" {
		return []string{p.model}
	}
	return nil
}

// Placeholder is the code returned for a pattern without a template.
func Placeholder(pattern string) string {
	return "// No template found for " + pattern
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

type contextKey string

const sourceKey contextKey = "run_source"

// WithSource tags runs started with ctx as coming from source.
func WithSource(ctx context.Context, source model.RunSource) context.Context {
	return context.WithValue(ctx, sourceKey, source)
}

func SourceFrom(ctx context.Context) model.RunSource {
	if s, ok := ctx.Value(sourceKey).(model.RunSource); ok {
		return s
	}
	return model.SourceAPI
}

// IsMalformed reports whether err comes from an unparsable model answer.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedOutput)
}
