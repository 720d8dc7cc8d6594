package ai

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"google.golang.org/genai"

	"gopherai-chat/internal/observability"
)

const DefaultGeminiModel = "gemini-2.0-flash"

type GeminiGateway struct {
	apiKey  string
	model   string
	baseURL string

	mu     sync.Mutex
	client *genai.Client
}

func NewGeminiGateway(apiKey, model, baseURL string) *GeminiGateway {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiGateway{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
	}
}

func (g *GeminiGateway) Model() string {
	return g.model
}

func (g *GeminiGateway) CheckCredential() error {
	return checkKey(g.apiKey)
}

func (g *GeminiGateway) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := g.CheckCredential(); err != nil {
		return "", err
	}
	client, err := g.getClient(ctx)
	if err != nil {
		return "", err
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, a := range req.Attachments {
		data, mimeType, err := readAttachment(a)
		if err != nil {
			return "", err
		}
		parts = append(parts, genai.NewPartFromBytes(data, mimeType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemInstruction, genai.RoleUser),
		HTTPOptions: &genai.HTTPOptions{
			Headers: http.Header{SessionHeader: []string{req.SessionID}},
		},
	}

	logger := observability.FromContext(ctx).With("session_id", req.SessionID, "model", g.model)
	logger.Debug("gemini generate content", "attachments", len(req.Attachments))

	res, err := client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		logger.Warn("gemini generate content failed", "error", err)
		return "", fmt.Errorf("gemini generate content failed: %w", err)
	}
	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	return text, nil
}

func (g *GeminiGateway) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}

	cc := &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client failed: %w", err)
	}
	g.client = client
	return client, nil
}
