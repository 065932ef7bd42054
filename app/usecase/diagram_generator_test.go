package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagrammer/internal/domain/entity"
	"diagrammer/internal/domain/repository"
	"diagrammer/internal/infrastructure/catalog"
	"diagrammer/internal/infrastructure/events"
	"diagrammer/internal/infrastructure/renderer"
	"diagrammer/internal/infrastructure/store/gormstore"
	"diagrammer/internal/infrastructure/validator"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*entity.DiagramRequest
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[int64]*entity.DiagramRequest)}
}

func (m *memRepo) Create(_ context.Context, req *entity.DiagramRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	req.ID = m.nextID
	cp := *req
	m.rows[req.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id int64) (*entity.DiagramRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRepo) List(context.Context) ([]*entity.DiagramRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.DiagramRequest, 0, len(m.rows))
	for id := m.nextID; id > 0; id-- {
		if r, ok := m.rows[id]; ok {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) finish(id int64, fn func(r *entity.DiagramRequest)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if r.IsTerminal() {
		return repository.ErrInvalidTransition
	}
	fn(r)
	return nil
}

func (m *memRepo) Complete(_ context.Context, id int64, code string) error {
	return m.finish(id, func(r *entity.DiagramRequest) {
		r.Status = entity.RequestStatusCompleted
		r.DiagramCode = &code
	})
}

func (m *memRepo) Fail(_ context.Context, id int64, msg string) error {
	return m.finish(id, func(r *entity.DiagramRequest) {
		r.Status = entity.RequestStatusFailed
		r.ErrorMessage = &msg
	})
}

func (m *memRepo) CountByStatus(_ context.Context, status entity.RequestStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.Status == status {
			n++
		}
	}
	return n, nil
}

// fakeLLM records the row status seen at call time.
type fakeLLM struct {
	repo       *memRepo
	code       string
	err        error
	seenStatus entity.RequestStatus
	calls      int
}

func (f *fakeLLM) GenerateDiagramCode(ctx context.Context, description string, _ entity.Prompt) (string, error) {
	f.calls++
	if r, err := f.repo.GetByID(ctx, f.repo.nextID); err == nil {
		f.seenStatus = r.Status
	}
	return f.code, f.err
}

type fakeRenderer struct {
	image string
	err   error
	calls int
}

func (f *fakeRenderer) Render(context.Context, string, int64) (string, error) {
	f.calls++
	return f.image, f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []entity.StatusEvent
}

func (p *recordingPublisher) Publish(ev entity.StatusEvent) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *recordingPublisher) statuses() []entity.RequestStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []entity.RequestStatus
	for _, e := range p.events {
		out = append(out, e.Status)
	}
	return out
}

func TestGenerateSuccess(t *testing.T) {
	repo := newMemRepo()
	llm := &fakeLLM{repo: repo, code: entity.FallbackDiagramCode}
	rend := &fakeRenderer{image: "aW1n"}
	pub := &recordingPublisher{}

	svc := NewDiagramGeneratorService(repo, llm, rend, pub, nil, discard())
	resp, err := svc.Generate(context.Background(), entity.GenerateRequest{Prompt: "  web app  "})
	require.NoError(t, err)

	assert.Equal(t, int64(1), resp.ID)
	assert.Equal(t, entity.FallbackDiagramCode, resp.DiagramCode)
	assert.Equal(t, "aW1n", resp.DiagramImage)
	assert.Equal(t, entity.RequestStatusPending, llm.seenStatus, "row must be pending before the model call")

	row, err := repo.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusCompleted, row.Status)
	assert.Equal(t, "web app", row.Prompt)
	require.NotNil(t, row.DiagramCode)
	assert.Nil(t, row.ErrorMessage)

	assert.Equal(t, []entity.RequestStatus{entity.RequestStatusPending, entity.RequestStatusCompleted}, pub.statuses())
}

func TestGenerateEmptyPromptCreatesNoRow(t *testing.T) {
	repo := newMemRepo()
	llm := &fakeLLM{repo: repo}
	svc := NewDiagramGeneratorService(repo, llm, &fakeRenderer{}, nil, nil, discard())

	for _, p := range []string{"", "   ", "\n\t"} {
		_, err := svc.Generate(context.Background(), entity.GenerateRequest{Prompt: p})
		assert.ErrorIs(t, err, ErrEmptyPrompt)
	}
	n, _ := repo.CountByStatus(context.Background(), entity.RequestStatusPending)
	assert.Zero(t, n)
	assert.Empty(t, repo.rows)
	assert.Zero(t, llm.calls)
}

func TestGenerateLLMFailure(t *testing.T) {
	repo := newMemRepo()
	llm := &fakeLLM{repo: repo, err: errors.New("quota exceeded")}
	rend := &fakeRenderer{}
	pub := &recordingPublisher{}
	svc := NewDiagramGeneratorService(repo, llm, rend, pub, nil, discard())

	_, err := svc.Generate(context.Background(), entity.GenerateRequest{Prompt: "web app"})
	require.Error(t, err)

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, StageGeneration, genErr.Stage)
	assert.Equal(t, "Code generation failed: quota exceeded", err.Error())
	assert.Zero(t, rend.calls)

	row, err := repo.GetByID(context.Background(), genErr.RequestID)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusFailed, row.Status)
	require.NotNil(t, row.ErrorMessage)
	assert.Equal(t, "Code generation failed: quota exceeded", *row.ErrorMessage)
	assert.Nil(t, row.DiagramCode)

	assert.Equal(t, []entity.RequestStatus{entity.RequestStatusPending, entity.RequestStatusFailed}, pub.statuses())
}

func TestGenerateRenderFailure(t *testing.T) {
	repo := newMemRepo()
	llm := &fakeLLM{repo: repo, code: entity.FallbackDiagramCode}
	rend := &fakeRenderer{err: errors.New("dot failed: exit status 1\nsyntax error")}
	svc := NewDiagramGeneratorService(repo, llm, rend, nil, nil, discard())

	_, err := svc.Generate(context.Background(), entity.GenerateRequest{Prompt: "web app"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Diagram rendering failed: dot failed")

	row, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusFailed, row.Status)
	assert.Contains(t, *row.ErrorMessage, "syntax error")
}

func TestGenerateFailsRowWhenCallerCancels(t *testing.T) {
	repo := newMemRepo()
	ctx, cancel := context.WithCancel(context.Background())
	llm := &fakeLLM{repo: repo, err: context.Canceled}
	svc := NewDiagramGeneratorService(repo, llm, &fakeRenderer{}, nil, nil, discard())

	cancel()
	_, err := svc.Generate(ctx, entity.GenerateRequest{Prompt: "web app"})
	require.Error(t, err)

	row, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusFailed, row.Status)
}

type memArchive struct {
	saved map[int64][]byte
}

func (a *memArchive) Save(_ context.Context, id int64, _ string, png []byte) error {
	a.saved[id] = png
	return nil
}

func (a *memArchive) Image(_ context.Context, id int64) ([]byte, error) {
	png, ok := a.saved[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return png, nil
}

func TestGenerateArchivesImage(t *testing.T) {
	repo := newMemRepo()
	archive := &memArchive{saved: map[int64][]byte{}}
	svc := NewDiagramGeneratorService(repo, &fakeLLM{repo: repo, code: "code"}, &fakeRenderer{image: "aW1n"}, nil, archive, discard())

	_, err := svc.Generate(context.Background(), entity.GenerateRequest{Prompt: "web app"})
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), archive.saved[1])

	img, err := NewRequestService(repo, archive).GetImage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), img)
}

const fakeDot = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
printf '\211PNG\r\n\032\n' > "$out"
`

type staticLLM string

func (s staticLLM) GenerateDiagramCode(context.Context, string, entity.Prompt) (string, error) {
	return string(s), nil
}

// The load balancer example runs through the real parser, renderer and store.
func TestGenerateLoadBalancerExample(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake dot requires a unix shell")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dot"), []byte(fakeDot), 0o755))

	db, err := gormstore.Open("sqlite://")
	require.NoError(t, err)
	repo := gormstore.NewDiagramRequestRepo(db)

	rend := renderer.NewGraphvizRenderer(catalog.Default(), validator.NewDiagramAnalyzer(), renderer.Options{
		SearchPath: []string{dir},
		Timeout:    5 * time.Second,
	}, discard())

	hub := events.NewHub()
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	svc := NewDiagramGeneratorService(repo, staticLLM(entity.FallbackDiagramCode), rend, hub, nil, discard())
	resp, err := svc.Generate(context.Background(), entity.GenerateRequest{Prompt: "two EC2 instances behind a load balancer"})
	require.NoError(t, err)

	assert.Contains(t, resp.DiagramCode, "ELB")
	assert.Contains(t, resp.DiagramCode, "EC2")
	png, err := base64.StdEncoding.DecodeString(resp.DiagramImage)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")))

	history, err := NewRequestService(repo, nil).History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entity.RequestStatusCompleted, history[0].Status)

	assert.Equal(t, entity.RequestStatusPending, (<-sub).Status)
	assert.Equal(t, entity.RequestStatusCompleted, (<-sub).Status)
}
