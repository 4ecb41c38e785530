package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/pulsewatch/backend/internal/config"
	"google.golang.org/genai"
)

// GenerationClient - 리스크 평가/내러티브 생성용 텍스트 생성 클라이언트
// 스트리밍은 사용하지 않는다 (단일 completion)
type GenerationClient struct {
	client *genai.Client
	model  string
}

func NewGenerationClient(cfg config.AIConfig) (*GenerationClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing AI_API_KEY")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, err
	}
	return &GenerationClient{client: client, model: cfg.GenerateModel}, nil
}

func (c *GenerationClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	res, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", fmt.Errorf("empty generation result")
	}
	text := strings.TrimSpace(res.Text())
	if text == "" {
		return "", fmt.Errorf("empty generation result")
	}
	return text, nil
}
