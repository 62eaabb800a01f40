package vectorstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/willowhealth/medchatd/internal/vectorstore"
)

// testEmbedder maps known texts to fixed unit vectors so similarity ranking
// is deterministic. Unknown texts get a hash-derived vector.
type testEmbedder struct {
	vectors map[string][]float32
}

func newTestEmbedder() *testEmbedder {
	return &testEmbedder{vectors: make(map[string][]float32)}
}

func (e *testEmbedder) assign(text string, axis int) {
	v := make([]float32, 4)
	v[axis] = 1
	e.vectors[text] = v
}

func (e *testEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *testEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e *testEmbedder) embed(text string) []float32 {
	if v, ok := e.vectors[text]; ok {
		return v
	}
	hash := 0
	for _, c := range text {
		hash = (hash*31 + int(c)) % 997
	}
	v := make([]float32, 4)
	v[hash%4] = 1
	return v
}

func newTestStore(t *testing.T) (*vectorstore.ChromemStore, *testEmbedder) {
	t.Helper()

	embedder := newTestEmbedder()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       t.TempDir(),
		Collection: "test_medicines",
	}, embedder, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, embedder
}

func TestChromemConfigApplyDefaults(t *testing.T) {
	config := vectorstore.ChromemConfig{}
	config.ApplyDefaults()

	assert.Equal(t, "~/.local/share/medchatd/vectorstore", config.Path)
	assert.Equal(t, "nhs_medicines", config.Collection)
}

func TestChromemAddAndSearch(t *testing.T) {
	store, embedder := newTestStore(t)
	ctx := context.Background()

	embedder.assign("ibuprofen relieves pain", 0)
	embedder.assign("amoxicillin treats infections", 1)
	embedder.assign("what helps with pain", 0)

	ids, err := store.AddDocuments(ctx, []vectorstore.Document{
		{ID: "doc-1", Content: "ibuprofen relieves pain", Metadata: map[string]interface{}{"med_name": "ibuprofen"}},
		{ID: "doc-2", Content: "amoxicillin treats infections", Metadata: map[string]interface{}{"med_name": "amoxicillin"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1", "doc-2"}, ids)

	results, err := store.Search(ctx, "what helps with pain", 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "ibuprofen relieves pain", results[0].Content)
	assert.Equal(t, "ibuprofen", results[0].Metadata["med_name"])
}

func TestChromemSearchWithFilters(t *testing.T) {
	store, embedder := newTestStore(t)
	ctx := context.Background()

	embedder.assign("side effects include nausea", 0)
	embedder.assign("common side effects are headaches", 0)
	embedder.assign("side effects", 0)

	_, err := store.AddDocuments(ctx, []vectorstore.Document{
		{ID: "doc-1", Content: "side effects include nausea", Metadata: map[string]interface{}{"med_name": "ibuprofen"}},
		{ID: "doc-2", Content: "common side effects are headaches", Metadata: map[string]interface{}{"med_name": "amoxicillin"}},
	})
	require.NoError(t, err)

	results, err := store.SearchWithFilters(ctx, "side effects", 1, map[string]interface{}{"med_name": "amoxicillin"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "common side effects are headaches", results[0].Content)
}

func TestChromemEmptyIndexReturnsEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	results, err := store.Search(context.Background(), "anything", 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemCapsKAtCollectionSize(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []vectorstore.Document{
		{ID: "doc-1", Content: "only document"},
	})
	require.NoError(t, err)

	// k larger than the collection must not error.
	results, err := store.Search(ctx, "only document", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChromemCount(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = store.AddDocuments(ctx, []vectorstore.Document{
		{ID: "doc-1", Content: "first"},
		{ID: "doc-2", Content: "second"},
	})
	require.NoError(t, err)

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestChromemRejectsInvalidInput(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, nil)
	require.ErrorIs(t, err, vectorstore.ErrEmptyDocuments)

	_, err = store.AddDocuments(ctx, []vectorstore.Document{{Content: "no id"}})
	require.Error(t, err)

	_, err = store.Search(ctx, "", 4)
	require.Error(t, err)

	_, err = store.Search(ctx, "query", 0)
	require.Error(t, err)
}

func TestChromemPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	embedder := newTestEmbedder()
	ctx := context.Background()

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       dir,
		Collection: "test_medicines",
	}, embedder, zap.NewNop())
	require.NoError(t, err)

	_, err = store.AddDocuments(ctx, []vectorstore.Document{
		{ID: "doc-1", Content: "persisted chunk"},
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       dir,
		Collection: "test_medicines",
	}, embedder, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewStoreFactory(t *testing.T) {
	embedder := newTestEmbedder()

	store, err := vectorstore.NewStore("chromem",
		vectorstore.ChromemConfig{Path: t.TempDir()},
		vectorstore.QdrantConfig{}, embedder, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &vectorstore.ChromemStore{}, store)
	store.Close()

	// Empty provider defaults to chromem.
	store, err = vectorstore.NewStore("",
		vectorstore.ChromemConfig{Path: t.TempDir()},
		vectorstore.QdrantConfig{}, embedder, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &vectorstore.ChromemStore{}, store)
	store.Close()

	_, err = vectorstore.NewStore("pinecone",
		vectorstore.ChromemConfig{}, vectorstore.QdrantConfig{}, embedder, zap.NewNop())
	require.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
}
