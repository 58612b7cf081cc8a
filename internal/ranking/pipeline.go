package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bizmatters/warm-ranker/internal/config"
	"github.com/bizmatters/warm-ranker/internal/metrics"
)

// Pipeline runs intake, locate, invoke and decode for one request at a time per call.
// It holds only read-only configuration, so one Pipeline serves concurrent requests.
type Pipeline struct {
	candidates []string
	args       []string
	env        map[string]string
	limits     Limits
	scopeDir   string
	invoker    *Invoker
	tracer     trace.Tracer
	metrics    *metrics.RankMetrics
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithMetrics records request outcomes on m
func WithMetrics(m *metrics.RankMetrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// New builds a pipeline from a resolved configuration and creates the artifact directory
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ranking config: %w", err)
	}

	p := &Pipeline{
		candidates: cfg.EffectiveCandidates(),
		args:       append([]string(nil), cfg.Args...),
		env:        cfg.Environment,
		limits: Limits{
			MaxUpload:       int64(cfg.MaxUpload),
			PlatformCeiling: int64(cfg.PlatformCeiling),
		},
		scopeDir: cfg.ScopeDir(),
		invoker: &Invoker{
			MaxOutput: int64(cfg.MaxOutput),
			Timeout:   cfg.Timeout,
		},
		tracer: otel.Tracer("ranking-pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}

	if err := os.MkdirAll(p.scopeDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory %s: %w", p.scopeDir, err)
	}
	return p, nil
}

// Candidates returns the executable search order
func (p *Pipeline) Candidates() []string {
	return append([]string(nil), p.candidates...)
}

// ScopeDir is where in-flight artifacts live
func (p *Pipeline) ScopeDir() string {
	return p.scopeDir
}

// Rank serves one multipart upload
func (p *Pipeline) Rank(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	return p.run(r.Context(), func(ctx context.Context, scope *Scope) (*Upload, error) {
		return Intake(w, r, scope, p.limits)
	})
}

// RankFile ranks a local file. The file is copied into a scoped artifact first so the
// scorer only ever sees pipeline-owned paths.
func (p *Pipeline) RankFile(ctx context.Context, idea, path string) (json.RawMessage, error) {
	return p.run(ctx, func(ctx context.Context, scope *Scope) (*Upload, error) {
		idea = strings.TrimSpace(idea)
		if idea == "" || path == "" {
			return nil, validationError("missing idea or file")
		}
		if err := checkIdea(idea); err != nil {
			return nil, err
		}

		f, err := os.Open(path)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Message: "cannot open input file", Err: err}
		}
		defer f.Close()

		if info, err := f.Stat(); err == nil && info.Size() > p.limits.MaxUpload {
			return nil, payloadTooLarge("exceeds configured maximum")
		}

		artifact, size, err := Stage(scope, filepath.Base(path), f, p.limits)
		if err != nil {
			return nil, err
		}
		return &Upload{Idea: idea, Filename: filepath.Base(path), Path: artifact, Size: size}, nil
	})
}

type stageFunc func(ctx context.Context, scope *Scope) (*Upload, error)

// run acquires the request's scope, executes every stage and releases the scope on all paths
func (p *Pipeline) run(ctx context.Context, intake stageFunc) (out json.RawMessage, err error) {
	ctx, span := p.tracer.Start(ctx, "rank.request")
	defer span.End()

	start := time.Now()
	if p.metrics != nil {
		p.metrics.RecordStarted(ctx)
	}

	scope := NewScope(p.scopeDir)
	defer scope.Release()

	executable := ""
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf(`{"level":"error","message":"Ranking pipeline panicked","panic":"%v"}`, rec)
			out, err = nil, internalError("unexpected failure", fmt.Errorf("%v", rec))
		}
		p.finish(ctx, span, executable, start, err)
	}()

	upload, err := p.intake(ctx, scope, intake)
	if err != nil {
		return nil, err
	}

	spec := InvocationSpec{
		Candidates:   p.candidates,
		Args:         p.args,
		Idea:         upload.Idea,
		ArtifactPath: upload.Path,
		Env:          p.env,
	}

	located, err := Locate(ctx, spec.Candidates, func(ctx context.Context, exe string) (*InvocationResult, error) {
		return p.invoke(ctx, exe, spec)
	})
	if located != nil {
		executable = located.Executable
		if p.metrics != nil {
			p.metrics.RecordFallbacks(ctx, len(located.Tried)-1)
		}
	}
	if err != nil {
		return nil, err
	}

	if stderr := strings.TrimSpace(string(located.Result.Stderr)); stderr != "" {
		log.Printf(`{"level":"warn","message":"Scorer wrote to stderr","executable":"%s","stderr":%q}`, executable, truncate([]byte(stderr), excerptLen))
	}

	_, decodeSpan := p.tracer.Start(ctx, "rank.decode")
	out, err = Decode(located.Result.Stdout)
	endSpan(decodeSpan, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) intake(ctx context.Context, scope *Scope, intake stageFunc) (*Upload, error) {
	ctx, span := p.tracer.Start(ctx, "rank.intake")
	upload, err := intake(ctx, scope)
	if err == nil {
		span.SetAttributes(
			attribute.Int64("rank.upload_bytes", upload.Size),
			attribute.String("rank.filename", upload.Filename),
		)
		if p.metrics != nil {
			p.metrics.RecordUpload(ctx, upload.Size)
		}
	}
	endSpan(span, err)
	return upload, err
}

func (p *Pipeline) invoke(ctx context.Context, executable string, spec InvocationSpec) (*InvocationResult, error) {
	ctx, span := p.tracer.Start(ctx, "rank.invoke")
	span.SetAttributes(attribute.String("rank.candidate", executable))

	result, err := p.invoker.Invoke(ctx, executable, spec)
	if result != nil {
		span.SetAttributes(
			attribute.Int("rank.exit_code", result.ExitCode),
			attribute.Int("rank.stdout_bytes", len(result.Stdout)),
			attribute.Int("rank.stderr_bytes", len(result.Stderr)),
		)
	}
	endSpan(span, err)
	return result, err
}

func (p *Pipeline) finish(ctx context.Context, span trace.Span, executable string, start time.Time, err error) {
	duration := time.Since(start)
	if err != nil {
		kind := KindOf(err)
		span.SetAttributes(attribute.String("error.kind", string(kind)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Printf(`{"level":"warn","message":"Rank request failed","kind":"%s","executable":"%s","duration_ms":%d,"error":%q}`,
			kind, executable, duration.Milliseconds(), err.Error())
		if p.metrics != nil {
			p.metrics.RecordFailed(ctx, string(kind), duration)
		}
		return
	}

	log.Printf(`{"level":"info","message":"Rank request completed","executable":"%s","duration_ms":%d}`,
		executable, duration.Milliseconds())
	if p.metrics != nil {
		p.metrics.RecordCompleted(ctx, executable, duration)
	}
}

// Ready reports whether the artifact directory is writable and some candidate resolves
func (p *Pipeline) Ready() error {
	f, err := os.CreateTemp(p.scopeDir, ".ready-*")
	if err != nil {
		return fmt.Errorf("artifact directory not writable: %w", err)
	}
	name := f.Name()
	cerr := f.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("failed to remove readiness file %s: %w", name, err)
	}
	if cerr != nil {
		return fmt.Errorf("artifact directory not writable: %w", cerr)
	}

	for _, candidate := range p.candidates {
		if _, err := exec.LookPath(candidate); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no scorer executable found (tried: %s)", strings.Join(p.candidates, ", "))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
