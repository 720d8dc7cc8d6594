package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"gopherai-chat/internal/pkg/pdfextract"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// OpenAIGateway talks to any /chat/completions compatible endpoint.
type OpenAIGateway struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

const DefaultOpenAIModel = "gpt-4o-mini"

func NewOpenAIGateway(baseURL, apiKey, model string) *OpenAIGateway {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		// no client timeout: the call runs until the upstream answers
		httpClient: &http.Client{},
	}
}

func (c *OpenAIGateway) Model() string {
	return c.model
}

func (c *OpenAIGateway) CheckCredential() error {
	return checkKey(c.apiKey)
}

func (c *OpenAIGateway) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := c.CheckCredential(); err != nil {
		return "", err
	}

	userContent, err := buildUserContent(req)
	if err != nil {
		return "", err
	}
	reqBody := map[string]interface{}{
		"model": c.model,
		"messages": []chatMessage{
			{Role: "system", Content: SystemInstruction},
			{Role: "user", Content: userContent},
		},
		"stream": false,
		"user":   req.SessionID,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal llm request failed: %w", err)
	}

	url := strings.TrimRight(c.baseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build llm request failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set(SessionHeader, req.SessionID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read llm response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm response status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse llm json failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty llm choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// buildUserContent returns a plain string when there is nothing attached,
// otherwise a list of content parts.
func buildUserContent(req CompletionRequest) (any, error) {
	if len(req.Attachments) == 0 {
		return req.Prompt, nil
	}

	parts := []contentPart{{Type: "text", Text: req.Prompt}}
	for _, a := range req.Attachments {
		data, mimeType, err := readAttachment(a)
		if err != nil {
			return nil, err
		}
		name := filepath.Base(a.Path)

		switch {
		case strings.HasPrefix(mimeType, "image/"):
			parts = append(parts, contentPart{
				Type:     "image_url",
				ImageURL: &imageURL{URL: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)},
			})
		case mimeType == "application/pdf":
			text, err := pdfextract.ExtractText(bytes.NewReader(data))
			if err != nil {
				return nil, fmt.Errorf("extract pdf attachment failed: %w", err)
			}
			parts = append(parts, contentPart{Type: "text", Text: fmt.Sprintf("Attached file %s:\n%s", name, text)})
		case strings.HasPrefix(mimeType, "text/"), mimeType == "application/json":
			parts = append(parts, contentPart{Type: "text", Text: fmt.Sprintf("Attached file %s:\n%s", name, string(data))})
		default:
			parts = append(parts, contentPart{Type: "text", Text: fmt.Sprintf("[Attached file %s (%s) cannot be shown to this model]", name, mimeType)})
		}
	}
	return parts, nil
}
