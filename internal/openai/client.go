package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/docqa/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions is the vector size requested from the model
	DefaultEmbeddingDimensions = 1536
	// DefaultChatModel answers questions
	DefaultChatModel = openai.GPT3Dot5Turbo
	// DefaultTemperature keeps answers close to the context
	DefaultTemperature = 0.3
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoChoices is returned when a chat completion has no choices
	ErrNoChoices = errors.New("chat completion returned no choices")
)

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatAPI defines the interface for chat completion
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// Client wraps the OpenAI API client
type Client struct {
	api        EmbeddingAPI
	chat       ChatAPI
	dimensions int
}

type OpenAIAdapter struct {
	client         *openai.Client
	embeddingModel openai.EmbeddingModel
	dimensions     int
	chatModel      string
	temperature    float32
}

type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      string
	EmbeddingDimensions int
	ChatModel           string
	Temperature         float32
}

func NewOpenAIAdapter(cfg Config) *OpenAIAdapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := openai.EmbeddingModel(cfg.EmbeddingModel)
	if model == "" {
		model = DefaultEmbeddingModel
	}
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}

	return &OpenAIAdapter{
		client:         openai.NewClientWithConfig(clientCfg),
		embeddingModel: model,
		dimensions:     cfg.EmbeddingDimensions,
		chatModel:      chatModel,
		temperature:    cfg.Temperature,
	}
}

// CreateEmbeddings calls the OpenAI API to create one embedding per text
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: a.embeddingModel,
	}
	// only the text-embedding-3 family accepts a dimensions override
	if a.dimensions > 0 && strings.HasPrefix(string(a.embeddingModel), "text-embedding-3") {
		req.Dimensions = a.dimensions
	}

	resp, err := a.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// CreateChatCompletion sends the messages and returns the first choice
func (a *OpenAIAdapter) CreateChatCompletion(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.chatModel,
		Messages:    msgs,
		Temperature: a.temperature,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	if cfg.EmbeddingDimensions <= 0 {
		cfg.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	adapter := NewOpenAIAdapter(cfg)
	return &Client{
		api:        adapter,
		chat:       adapter,
		dimensions: cfg.EmbeddingDimensions,
	}
}

// Dimensions returns the expected embedding size
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Embed generates an embedding for the given text
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch generates embeddings for texts in one request
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyText
		}
	}

	embeddings, err := c.api.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	for _, e := range embeddings {
		if len(e) != c.dimensions {
			return nil, fmt.Errorf("%w: got %d, expected %d", ErrWrongDimensions, len(e), c.dimensions)
		}
	}

	return embeddings, nil
}

// Generate runs one chat completion over the prompt messages
func (c *Client) Generate(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	out, err := c.chat.CreateChatCompletion(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	return out, nil
}
