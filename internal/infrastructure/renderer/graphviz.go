package renderer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"diagrammer/internal/domain/entity"
	"diagrammer/internal/domain/repository"
	"diagrammer/internal/infrastructure/catalog"
	"diagrammer/internal/infrastructure/metrics"
	"diagrammer/internal/infrastructure/parser"
	"diagrammer/internal/infrastructure/validator"
)

const (
	dotFileName = "diagram.dot"
	pngFileName = "diagram.png"
)

// RenderError reports which stage failed and, for graphviz failures, what
// the child process printed.
type RenderError struct {
	Stage  string // parse|analyze|dot
	Output string
	Err    error
}

func (e *RenderError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s failed: %v\n%s", e.Stage, e.Err, e.Output)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

type Options struct {
	DotBinary  string
	SearchPath []string // extra directories searched for the graphviz binary
	Timeout    time.Duration
}

type GraphvizRenderer struct {
	parser   *parser.Parser
	analyzer validator.Analyzer
	catalog  *catalog.Catalog
	opts     Options
	logger   *slog.Logger
}

var _ repository.DiagramRenderer = (*GraphvizRenderer)(nil)

func NewGraphvizRenderer(c *catalog.Catalog, analyzer validator.Analyzer, opts Options, logger *slog.Logger) *GraphvizRenderer {
	if opts.DotBinary == "" {
		opts.DotBinary = "dot"
	}
	return &GraphvizRenderer{
		parser:   parser.New(c),
		analyzer: analyzer,
		catalog:  c,
		opts:     opts,
		logger:   logger,
	}
}

// Render parses generated source, checks it and returns the PNG base64 encoded.
func (r *GraphvizRenderer) Render(ctx context.Context, source string, requestID int64) (string, error) {
	d, err := r.Parse(source)
	if err != nil {
		return "", err
	}
	png, err := r.RenderDiagram(ctx, d, requestID)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// Parse turns source into a diagram and runs the analyzer over it.
func (r *GraphvizRenderer) Parse(source string) (*entity.Diagram, error) {
	d, err := r.parser.Parse(source)
	if err != nil {
		metrics.IncRenderRun("parse_error")
		return nil, &RenderError{Stage: "parse", Err: err}
	}

	res := r.analyzer.Analyze(d)
	for _, w := range res.Warnings() {
		r.logger.Warn("diagram analysis warning", "node_id", w.NodeID, "msg", w.Message)
	}
	if !res.Passed {
		metrics.IncRenderRun("analyze_error")
		return nil, &RenderError{Stage: "analyze", Err: errors.New(res.Summary())}
	}
	return d, nil
}

// RenderDiagram writes the DOT source into a fresh temporary directory, runs
// graphviz on it and returns the produced PNG bytes.
func (r *GraphvizRenderer) RenderDiagram(parent context.Context, d *entity.Diagram, requestID int64) ([]byte, error) {
	start := time.Now()
	defer func() { metrics.ObserveRenderDuration(time.Since(start)) }()

	src, err := BuildDOT(d, r.catalog)
	if err != nil {
		metrics.IncRenderRun("render_error")
		return nil, &RenderError{Stage: "dot", Err: err}
	}

	dir, err := os.MkdirTemp("", fmt.Sprintf("diagram-%d-", requestID))
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			r.logger.Warn("remove temp dir failed", "dir", dir, "err", err)
		}
	}()

	dotPath := filepath.Join(dir, dotFileName)
	pngPath := filepath.Join(dir, pngFileName)
	if err := os.WriteFile(dotPath, src, 0o644); err != nil {
		return nil, fmt.Errorf("write dot file: %w", err)
	}

	bin, err := r.lookBinary()
	if err != nil {
		metrics.IncRenderRun("render_error")
		return nil, &RenderError{Stage: "dot", Err: err}
	}

	ctx := parent
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, r.opts.Timeout)
		defer cancel()
	}

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-Tpng", "-o", pngPath, dotPath)
	cmd.Dir = dir
	cmd.Env = r.env()
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = time.Second

	r.logger.Debug("running graphviz", "request_id", requestID, "bin", bin, "dir", dir)
	if err := cmd.Run(); err != nil {
		metrics.IncRenderRun("render_error")
		if ctx.Err() != nil {
			return nil, &RenderError{Stage: "dot", Err: fmt.Errorf("canceled or timed out: %w", ctx.Err()), Output: output.String()}
		}
		return nil, &RenderError{Stage: "dot", Err: err, Output: strings.TrimSpace(output.String())}
	}

	png, err := os.ReadFile(pngPath)
	if err != nil || len(png) == 0 {
		metrics.IncRenderRun("render_error")
		return nil, &RenderError{
			Stage:  "dot",
			Err:    errors.New("diagram file was not generated"),
			Output: strings.TrimSpace(output.String()),
		}
	}

	metrics.IncRenderRun("pass")
	return png, nil
}

// lookBinary resolves the graphviz binary, trying the configured search path
// before PATH.
func (r *GraphvizRenderer) lookBinary() (string, error) {
	bin := r.opts.DotBinary
	if strings.ContainsRune(bin, filepath.Separator) {
		return bin, nil
	}
	for _, dir := range r.opts.SearchPath {
		candidate := filepath.Join(dir, bin)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("graphviz binary %q not found: %w", bin, err)
	}
	return path, nil
}

func (r *GraphvizRenderer) env() []string {
	env := os.Environ()
	if len(r.opts.SearchPath) == 0 {
		return env
	}
	path := strings.Join(r.opts.SearchPath, string(os.PathListSeparator))
	if cur := os.Getenv("PATH"); cur != "" {
		path = path + string(os.PathListSeparator) + cur
	}
	return append(env, "PATH="+path)
}
