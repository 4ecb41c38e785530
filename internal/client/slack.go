// 외부 Slack API와 통신하는 클라이언트 정의
// 헬스체크에서 HIGH/CRITICAL 예측이 나오면 채널에 경고를 보낸다
//
// 환경변수:
//   - SLACK_BOT_TOKEN: Slack Bot Token (xoxb-...)
//   - SLACK_CHANNEL_ID: Slack 채널 ID (C...)
//
// Webhook 대신 Bot Token을 사용하는 이유:
//   - thread_ts 반환: 같은 프로젝트의 후속 경고를 같은 스레드로 묶을 수 있음

package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pulsewatch/backend/internal/config"
	"github.com/pulsewatch/backend/internal/model"
)

// SlackClient 구조체 정의
type SlackClient struct {
	botToken   string
	channelID  string
	httpClient *http.Client

	// threadMap: project_id -> thread_ts 매핑
	// 같은 프로젝트의 연속 경고를 한 스레드로 묶기 위함
	threadMap sync.Map
}

type SlackMessage struct {
	Channel     string            `json:"channel"`
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
	ThreadTS    string            `json:"thread_ts,omitempty"`
}

type SlackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Footer string       `json:"footer,omitempty"`
	Ts     int64        `json:"ts,omitempty"`
	Fields []SlackField `json:"fields,omitempty"`
}

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type SlackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	TS    string `json:"ts,omitempty"`
}

// SlackClient 객체 생성
func NewSlackClient(cfg config.SlackConfig) *SlackClient {
	return &SlackClient{
		botToken:  cfg.BotToken,
		channelID: cfg.ChannelID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *SlackClient) IsConfigured() bool {
	return c.botToken != "" && c.channelID != ""
}

// SendHealthAlert - HIGH/CRITICAL 예측 결과를 채널에 전송
// 같은 프로젝트의 이전 스레드가 있으면 스레드 답글로 전송
func (c *SlackClient) SendHealthAlert(projectID string, pred model.PredictionResult) error {
	if !c.IsConfigured() {
		return fmt.Errorf("slack bot token or channel ID not configured")
	}

	color := "#ffc107"
	if pred.RiskLevel == model.RiskCritical {
		color = "#dc3545"
	}

	threadTS := ""
	if val, ok := c.threadMap.Load(projectID); ok {
		threadTS = val.(string)
	}

	msg := SlackMessage{
		Channel:  c.channelID,
		ThreadTS: threadTS,
		Attachments: []SlackAttachment{
			{
				Color: color,
				Title: fmt.Sprintf("🚨 Predicted failure risk: %s (project=%s)", pred.RiskLevel, projectID),
				Text:  pred.Summary,
				Ts:    pred.TimestampMs / 1000,
				Fields: []SlackField{
					{Title: "Likelihood", Value: fmt.Sprintf("%.0f%%", pred.FailureLikelihood*100), Short: true},
					{Title: "Timeframe", Value: pred.Timeframe, Short: true},
					{Title: "Root cause", Value: pred.RootCause, Short: false},
				},
			},
		},
	}

	resp, err := c.send(msg)
	if err != nil {
		return err
	}
	if threadTS == "" && resp.TS != "" {
		c.threadMap.Store(projectID, resp.TS)
	}
	return nil
}

// Slack API 호출
func (c *SlackClient) send(msg SlackMessage) (*SlackResponse, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequest("POST", "https://slack.com/api/chat.postMessage", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.botToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var slackResp SlackResponse
	if err := json.Unmarshal(body, &slackResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if !slackResp.OK {
		return nil, fmt.Errorf("slack API error: %s", slackResp.Error)
	}

	return &slackResp, nil
}
