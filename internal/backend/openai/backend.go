package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/davidbz/embercache/internal/backend"
	"github.com/davidbz/embercache/internal/domain"
)

// Factory loads OpenAI embedding backends. One shared API client serves
// every model; Load only binds the model name from the reference.
type Factory struct {
	client openai.Client
}

// NewFactory creates a new OpenAI backend factory.
func NewFactory(config Config) (*Factory, error) {
	if config.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &Factory{
		client: openai.NewClient(opts...),
	}, nil
}

// Name returns the factory identifier.
func (f *Factory) Name() string {
	return "openai"
}

// Load binds a backend to the model named by reference, e.g.
// "openai:text-embedding-3-small".
func (f *Factory) Load(_ context.Context, reference string) (domain.Backend, error) {
	model := backend.RefModel(reference)
	if model == "" {
		return nil, fmt.Errorf("%w: reference %q names no model", domain.ErrBackendUnavailable, reference)
	}

	return &Backend{
		client: f.client,
		model:  model,
	}, nil
}

// Backend computes embeddings through the OpenAI Embeddings API.
type Backend struct {
	client openai.Client
	model  string
}

// Compute returns the embedding vector for text.
func (b *Backend) Compute(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}

	//nolint:exhaustruct // OpenAI SDK struct has many optional fields
	resp, err := b.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
		Model: openai.EmbeddingModel(b.model),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", domain.ErrBackendUnavailable)
	}

	return resp.Data[0].Embedding, nil
}
