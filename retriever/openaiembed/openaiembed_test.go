package openaiembed

import (
	"context"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/require"
)

type fakeEmbeddings struct {
	lastBody openai.EmbeddingNewParams
	vector   []float64
}

func (f *fakeEmbeddings) New(_ context.Context, body openai.EmbeddingNewParams, _ ...option.RequestOption) (*openai.CreateEmbeddingResponse, error) {
	f.lastBody = body
	return &openai.CreateEmbeddingResponse{
		Data: []openai.Embedding{{Embedding: f.vector}},
	}, nil
}

func TestEmbedQueryConvertsFloat64ToFloat32(t *testing.T) {
	client := &fakeEmbeddings{vector: []float64{0.1, 0.2, 0.3}}
	model, err := New(client, "text-embedding-3-small")
	require.NoError(t, err)

	vec, err := model.EmbedQuery(context.Background(), "otters")
	require.NoError(t, err)
	require.Len(t, vec, 3)
	require.InDelta(t, 0.2, vec[1], 1e-6)
	require.Equal(t, "text-embedding-3-small", client.lastBody.Model)
}

func TestNewRejectsNilClient(t *testing.T) {
	_, err := New(nil, "m")
	require.Error(t, err)
}

func TestNewRejectsEmptyModel(t *testing.T) {
	_, err := New(&fakeEmbeddings{}, "")
	require.Error(t, err)
}
