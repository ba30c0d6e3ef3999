// Command generate runs the pattern pipeline once on a request read from a
// file or stdin and prints the generated code. With -reference it also
// prints a diff against a known-good implementation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/nulzo/reliability-forge/internal/app"
	"github.com/nulzo/reliability-forge/internal/cli"
	"github.com/nulzo/reliability-forge/internal/config"
	"github.com/nulzo/reliability-forge/internal/evaluation"
	"github.com/nulzo/reliability-forge/internal/pipeline"
	"github.com/nulzo/reliability-forge/internal/platform/logger"
	"github.com/nulzo/reliability-forge/internal/store/model"
	"go.uber.org/zap"
)

type options struct {
	configFile string
	input      string
	reference  string
	model      string
	models     string
	jsonOut    bool
	logLevel   string
}

func main() {
	var o options
	flag.StringVar(&o.configFile, "config", os.Getenv("CONFIG_FILE"), "Path to config.yaml")
	flag.StringVar(&o.input, "input", "-", "Request file, - for stdin")
	flag.StringVar(&o.reference, "reference", "", "Reference implementation to diff the result against")
	flag.StringVar(&o.model, "model", "", "Model for the extraction and identification stages")
	flag.StringVar(&o.models, "models", "", "Comma separated generation models; more than one fans out")
	flag.BoolVar(&o.jsonOut, "json", false, "Print the full result as JSON")
	flag.StringVar(&o.logLevel, "log-level", "warn", "Log level (logs go to stderr)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, o); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", cli.CrossMark(), err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	var opts []config.Option
	if o.configFile != "" {
		opts = append(opts, config.WithConfigFile(o.configFile))
	}
	cfg, err := config.LoadConfig(opts...)
	if err != nil {
		return err
	}
	if o.model != "" {
		cfg.Pipeline.Model = o.model
	}
	if o.models != "" {
		cfg.Pipeline.GenerationModels = splitList(o.models)
	}

	log := logger.New(logger.Config{Level: o.logLevel, Format: "console", Output: os.Stderr, File: cfg.Log.File})
	defer func() { _ = log.Sync() }()

	input, err := readInput(o.input, os.Stdin)
	if err != nil {
		return err
	}
	var reference string
	if o.reference != "" {
		b, err := os.ReadFile(o.reference)
		if err != nil {
			return fmt.Errorf("failed to read reference: %w", err)
		}
		reference = string(b)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	a.Start(ctx)
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("Shutdown incomplete", zap.Error(err))
		}
	}()

	ctx = pipeline.WithSource(ctx, model.SourceCLI)
	return generate(ctx, a.Pipeline, input, reference, o.jsonOut, os.Stdout)
}

type runner interface {
	Run(ctx context.Context, text string) (*pipeline.Result, error)
}

type report struct {
	*pipeline.Result
	Evaluation map[string]evaluation.Report `json:"evaluation,omitempty"`
}

func generate(ctx context.Context, r runner, input, reference string, jsonOut bool, w io.Writer) error {
	res, err := r.Run(ctx, input)
	if err != nil {
		return err
	}

	answers := res.CodeByModel
	if len(answers) == 0 {
		answers = map[string]string{"": res.Code}
	}

	out := report{Result: res}
	if reference != "" && res.Found {
		out.Evaluation = make(map[string]evaluation.Report, len(answers))
		for name, code := range answers {
			out.Evaluation[name] = evaluation.Compare(code, reference)
		}
	}

	if jsonOut {
		_, err := fmt.Fprintln(w, cli.PrettyFormat(out))
		return err
	}

	if !res.Found {
		fmt.Fprintf(w, "%s no template for pattern %q\n", cli.WarningSign(), res.Pattern)
	}

	names := make([]string, 0, len(answers))
	for name := range answers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if name != "" {
			fmt.Fprintf(w, "%s %s\n", cli.Arrow(), cli.Style(name, cli.Bold))
		}
		fmt.Fprintln(w, answers[name])

		if rep, ok := out.Evaluation[name]; ok {
			fmt.Fprint(w, cli.ColorDiff(rep.Diff))
			fmt.Fprintf(w, "%s line similarity %s, char similarity %s (+%d -%d)\n",
				cli.CheckMark(), cli.Similarity(rep.LineSimilarity), cli.Similarity(rep.CharSimilarity), rep.Added, rep.Removed)
		}
	}
	return nil
}

func readInput(path string, stdin io.Reader) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "" || path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return "", errors.New("input is empty")
	}
	return string(b), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
