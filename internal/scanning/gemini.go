package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements Scanner and Generator using Google Gemini
type Gemini struct {
	client *genai.Client
	vision *genai.GenerativeModel
	text   *genai.GenerativeModel
}

// NewGemini creates a new Gemini instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	// question parsing and answers should be close to deterministic
	text := client.GenerativeModel(modelName)
	text.SetTemperature(0.1)

	return &Gemini{
		client: client,
		vision: client.GenerativeModel(modelName),
		text:   text,
	}, nil
}

// ScanBill analyzes a bill and extracts its fields
func (g *Gemini) ScanBill(imageData []byte, contentType string) (*BillData, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	finalImageData, _, _, err := prepareImageData(imageData, contentType)
	if err != nil {
		return nil, err
	}

	// genai.ImageData takes the format suffix, and everything is PNG by now
	resp, err := g.vision.GenerateContent(ctx,
		genai.ImageData("png", finalImageData),
		genai.Text(billScanPrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	data, err := parseBillJSON(text)
	if err != nil {
		return nil, fmt.Errorf("parsing bill data: %w", err)
	}

	return data, nil
}

// Generate answers a text-only prompt
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := g.text.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}

	return strings.TrimSpace(b.String()), nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
