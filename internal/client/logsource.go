// 외부 로그 저장소와 HTTP 통신하는 클라이언트 정의
//
// 환경변수:
//   - LOG_SOURCE_URL: 로그 저장소 URL (예: http://log-store.pulsewatch.svc:9428)
//   - LOG_SOURCE_TOKEN: Bearer 토큰 (옵션)
//
// API:
//   - GET /v1/streams?prefix=...            스트림(로그 그룹) 이름 조회
//   - GET /v1/groups/{group}/events?...     윈도우 내 이벤트 페이지 단위 조회

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pulsewatch/backend/internal/config"
	"github.com/pulsewatch/backend/internal/model"
)

// LogSourceClient 구조체 정의
type LogSourceClient struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

type listStreamsResponse struct {
	Streams []string `json:"streams"`
}

// LogSourceClient 객체 생성
func NewLogSourceClient(cfg config.LogSourceConfig) *LogSourceClient {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LogSourceClient{
		baseURL:  cfg.BaseURL,
		apiToken: cfg.APIToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListStreams - 이름 prefix로 로그 그룹 자동 탐색
func (c *LogSourceClient) ListStreams(ctx context.Context, prefix string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/v1/streams?prefix=%s", c.baseURL, url.QueryEscape(prefix))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var res listStreamsResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to parse stream list: %w", err)
	}
	return res.Streams, nil
}

// FetchEvents - [startMs, endMs] 윈도우의 이벤트 한 페이지 조회
// pageToken이 비어 있으면 첫 페이지
func (c *LogSourceClient) FetchEvents(ctx context.Context, group string, startMs, endMs int64, pageToken string) (*model.LogPage, error) {
	q := url.Values{}
	q.Set("start", strconv.FormatInt(startMs, 10))
	q.Set("end", strconv.FormatInt(endMs, 10))
	if pageToken != "" {
		q.Set("page_token", pageToken)
	}
	endpoint := fmt.Sprintf("%s/v1/groups/%s/events?%s", c.baseURL, url.PathEscape(group), q.Encode())

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var page model.LogPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse log page: %w", err)
	}
	return &page, nil
}

func (c *LogSourceClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to log source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("log source returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
