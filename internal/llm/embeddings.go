package llm

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
)

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	// Embed returns one vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float64, error)

	// Dim returns the embedding dimensionality.
	Dim() int
}

// OpenAIEmbedder produces embeddings through the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dim    int
}

// NewOpenAIEmbedder creates an embedder for the given model. An empty
// model defaults to text-embedding-3-small.
func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	m := openai.EmbeddingModel(model)
	dim := 1536
	if m == "" {
		m = openai.SmallEmbedding3
	}
	if m == openai.LargeEmbedding3 {
		dim = 3072
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  m,
		dim:    dim,
	}, nil
}

// Embed returns one vector per input text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.New("embedding response count does not match input count")
	}
	out := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		v := make([]float64, len(d.Embedding))
		for j, x := range d.Embedding {
			v[j] = float64(x)
		}
		out[i] = v
	}
	return out, nil
}

// Dim returns the embedding dimensionality.
func (e *OpenAIEmbedder) Dim() int { return e.dim }
