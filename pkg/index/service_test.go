package index_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/vectorstores"

	"github.com/xhad/docbot/internal/models"
	"github.com/xhad/docbot/internal/types"
	"github.com/xhad/docbot/pkg/config"
	"github.com/xhad/docbot/pkg/index"
	"github.com/xhad/docbot/pkg/llm"
	"github.com/xhad/docbot/pkg/store"
)

type fakeModel struct {
	answer  string
	err     error
	prompt  string
	options llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.options = llms.CallOptions{Temperature: -1}
	for _, o := range options {
		o(&f.options)
	}
	if f.err != nil {
		return nil, f.err
	}
	var sb strings.Builder
	for _, m := range messages {
		for _, part := range m.Parts {
			if text, ok := part.(llms.TextContent); ok {
				sb.WriteString(text.Text)
			}
		}
	}
	f.prompt = sb.String()
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.answer}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

type fakeEmbedder struct {
	err error
}

func (e *fakeEmbedder) vector(text string) []float32 {
	text = strings.ToLower(text)
	switch {
	case strings.Contains(text, "budget"):
		return []float32{1, 0, 0}
	case strings.Contains(text, "meeting"):
		return []float32{0, 1, 0}
	default:
		return []float32{0, 0, 1}
	}
}

func (e *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vector(text), nil
}

func memoryFactory(emb *fakeEmbedder) index.StoreFactory {
	return func(context.Context) (vectorstores.VectorStore, error) {
		return store.NewMemoryStore(emb)
	}
}

// droppingStore counts how often its rows were dropped.
type droppingStore struct {
	*store.MemoryStore
	drops int
}

func (d *droppingStore) Drop(context.Context) error {
	d.drops++
	return nil
}

func droppingFactory(emb *fakeEmbedder, opened *[]*droppingStore) index.StoreFactory {
	return func(context.Context) (vectorstores.VectorStore, error) {
		ms, err := store.NewMemoryStore(emb)
		if err != nil {
			return nil, err
		}
		ds := &droppingStore{MemoryStore: ms}
		*opened = append(*opened, ds)
		return ds, nil
	}
}

func newService(t *testing.T, model *fakeModel, emb *fakeEmbedder, numDocs int) *index.Service {
	t.Helper()
	engine, err := llm.NewWithModel(model, llm.ChatConfig{})
	require.NoError(t, err)
	svc, err := index.NewWithConfig(index.ServiceConfig{NumDocuments: numDocs}, memoryFactory(emb), engine)
	require.NoError(t, err)
	return svc
}

func documents() []models.Document {
	return []models.Document{
		{ID: "1", Source: "/docs/budget.xlsx", Content: "Budget 2024: 42", Metadata: map[string]interface{}{"source": "/docs/budget.xlsx"}},
		{ID: "2", Source: "/docs/notes.docx", Content: "Meeting notes from Monday"},
	}
}

func TestAnswerBeforeBuild(t *testing.T) {
	model := &fakeModel{answer: "unused"}
	svc := newService(t, model, &fakeEmbedder{}, 0)

	_, err := svc.Answer(context.Background(), "anything?")
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.QueryFault))
	assert.ErrorIs(t, err, index.ErrNotBuilt)
	assert.False(t, svc.Built())
	assert.Empty(t, model.prompt)
}

func TestBuildEmpty(t *testing.T) {
	svc := newService(t, &fakeModel{}, &fakeEmbedder{}, 0)

	err := svc.Build(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.IndexFault))
	assert.ErrorIs(t, err, index.ErrEmpty)
	assert.False(t, svc.Built())
}

func TestBuildAndAnswer(t *testing.T) {
	model := &fakeModel{answer: "The budget is 42."}
	svc := newService(t, model, &fakeEmbedder{}, 1)

	require.NoError(t, svc.Build(context.Background(), documents()))
	assert.True(t, svc.Built())
	assert.Equal(t, 2, svc.Documents())

	answer, err := svc.Answer(context.Background(), "What is the budget?")
	require.NoError(t, err)
	assert.Equal(t, "The budget is 42.", answer)
	assert.Contains(t, model.prompt, "Budget 2024: 42")
	assert.NotContains(t, model.prompt, "Meeting notes")
	assert.Equal(t, 0.0, model.options.Temperature)
	assert.Equal(t, 256, model.options.MaxTokens)
}

func TestAnswerUsesConfiguredMaxTokens(t *testing.T) {
	model := &fakeModel{answer: "ok"}
	engine, err := llm.NewWithModel(model, llm.ChatConfig{MaxTokens: 300})
	require.NoError(t, err)
	svc, err := index.NewWithConfig(index.ServiceConfig{}, memoryFactory(&fakeEmbedder{}), engine)
	require.NoError(t, err)
	require.NoError(t, svc.Build(context.Background(), documents()))

	_, err = svc.Answer(context.Background(), "budget?")
	require.NoError(t, err)
	assert.Equal(t, 0.0, model.options.Temperature)
	assert.Equal(t, 300, model.options.MaxTokens)
}

func TestRebuildDropsSupersededStore(t *testing.T) {
	var opened []*droppingStore
	engine, err := llm.NewWithModel(&fakeModel{answer: "ok"}, llm.ChatConfig{})
	require.NoError(t, err)
	emb := &fakeEmbedder{}
	svc, err := index.NewWithConfig(index.ServiceConfig{}, droppingFactory(emb, &opened), engine)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.Build(ctx, documents()))
	require.NoError(t, svc.Build(ctx, documents()[:1]))
	require.Len(t, opened, 2)
	assert.Equal(t, 1, opened[0].drops)
	assert.Equal(t, 0, opened[1].drops)
	assert.Equal(t, 1, opened[1].Len())

	// A failed build drops only its own store.
	emb.err = errors.New("provider down")
	require.Error(t, svc.Build(ctx, documents()))
	require.Len(t, opened, 3)
	assert.Equal(t, 1, opened[2].drops)
	assert.Equal(t, 0, opened[1].drops)
	assert.True(t, svc.Built())

	require.NoError(t, svc.Close(ctx))
	assert.Equal(t, 1, opened[1].drops)
	assert.False(t, svc.Built())
	_, err = svc.Answer(ctx, "budget?")
	assert.ErrorIs(t, err, index.ErrNotBuilt)
}

func TestAnswerIsRawCompletion(t *testing.T) {
	model := &fakeModel{answer: "  I don't know.\n"}
	svc := newService(t, model, &fakeEmbedder{}, 0)
	require.NoError(t, svc.Build(context.Background(), documents()))

	answer, err := svc.Answer(context.Background(), "Who won the world cup?")
	require.NoError(t, err)
	assert.Equal(t, "  I don't know.\n", answer)
}

func TestFailedBuildKeepsPreviousIndex(t *testing.T) {
	model := &fakeModel{answer: "ok"}
	emb := &fakeEmbedder{}
	svc := newService(t, model, emb, 0)

	require.NoError(t, svc.Build(context.Background(), documents()))

	emb.err = errors.New("provider down")
	err := svc.Build(context.Background(), documents()[:1])
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.IndexFault))
	assert.True(t, svc.Built())
	assert.Equal(t, 2, svc.Documents())
}

func TestFailedFirstBuildStaysUnbuilt(t *testing.T) {
	svc := newService(t, &fakeModel{}, &fakeEmbedder{err: errors.New("bad key")}, 0)

	err := svc.Build(context.Background(), documents())
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.IndexFault))
	assert.False(t, svc.Built())
}

func TestAnswerCompletionFailure(t *testing.T) {
	model := &fakeModel{}
	svc := newService(t, model, &fakeEmbedder{}, 0)
	require.NoError(t, svc.Build(context.Background(), documents()))

	model.err = errors.New("timeout")
	_, err := svc.Answer(context.Background(), "budget?")
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.QueryFault))
	assert.Contains(t, err.Error(), "timeout")
}

func TestNewWithConfigRequiresCollaborators(t *testing.T) {
	engine, err := llm.NewWithModel(&fakeModel{}, llm.ChatConfig{})
	require.NoError(t, err)

	_, err = index.NewWithConfig(index.ServiceConfig{}, nil, engine)
	assert.Error(t, err)

	_, err = index.NewWithConfig(index.ServiceConfig{}, memoryFactory(&fakeEmbedder{}), nil)
	assert.Error(t, err)
}

func TestNewStoreFactory(t *testing.T) {
	cfg := &config.Config{}

	factory, cleanup, err := index.NewStoreFactory(cfg, &fakeEmbedder{})
	require.NoError(t, err)
	defer cleanup()

	a, err := factory(context.Background())
	require.NoError(t, err)
	b, err := factory(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, a)
	assert.NotSame(t, a, b)

	cfg.Index.Backend = "faiss"
	_, _, err = index.NewStoreFactory(cfg, &fakeEmbedder{})
	assert.Error(t, err)
}
