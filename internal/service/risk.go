// AI 리스크 평가 로직 정의
//
// 처리 흐름:
//  1. Summary/임베딩 패턴/메트릭 통계로 구조화된 프롬프트 생성
//  2. 텍스트 생성 서비스 호출 (타임아웃 고정, 스트리밍 없음)
//  3. 응답을 4개 필수 필드 JSON 계약으로 파싱 + 검증
//  4. 호출/파싱/검증 중 하나라도 실패하면 결정적 fallback 평가 반환
//
// 호출자는 절대 무한 대기하지 않는다. 헬스체크 지연의 지배 요인이므로
// 항상 타임아웃 안에 성공 또는 fallback으로 끝난다.

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/pulsewatch/backend/internal/model"
)

var ErrInvalidAssessment = errors.New("invalid assessment response")

const (
	promptTopPatterns  = 10
	promptTopSummaries = 15
)

// TextGenerator - 외부 텍스트 생성 서비스 능력
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

type RiskAssessor struct {
	generator TextGenerator
	timeout   time.Duration
}

func NewRiskAssessor(generator TextGenerator, timeout time.Duration) *RiskAssessor {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &RiskAssessor{generator: generator, timeout: timeout}
}

// Assess - 에러를 반환하지 않는다. 실패는 전부 fallback으로 수렴.
func (a *RiskAssessor) Assess(ctx context.Context, summaries []model.Summary, embeddings []model.EmbeddingRecord, metrics []model.MetricSnapshot) model.RiskAssessment {
	prompt := buildRiskPrompt(summaries, embeddings, metrics)

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.generator.GenerateText(callCtx, prompt)
	if err != nil {
		log.Printf("Risk assessment call failed, using fallback: %v", err)
		return FallbackAssessment()
	}

	assessment, err := parseAssessment(raw)
	if err != nil {
		log.Printf("Risk assessment parse failed, using fallback: %v", err)
		return FallbackAssessment()
	}
	return *assessment
}

// FallbackAssessment - 결정적 fallback (riskLevel=MEDIUM, 권고 3개 고정)
func FallbackAssessment() model.RiskAssessment {
	return model.RiskAssessment{
		RootCause: "Unable to perform AI analysis",
		RiskLevel: model.RiskMedium,
		Summary:   "Check system logs manually",
		Recommendations: []string{
			"Check application logs for errors",
			"Verify service health endpoints",
			"Review recent deployments",
		},
	}
}

// assessmentPayload - 필드 접근 전에 필수 필드 존재를 검증하기 위한 중간 구조체
type assessmentPayload struct {
	RootCause       *string  `json:"rootCause"`
	RiskLevel       *string  `json:"riskLevel"`
	Summary         *string  `json:"summary"`
	Recommendations []string `json:"recommendations"`
}

func parseAssessment(raw string) (*model.RiskAssessment, error) {
	cleaned := stripCodeFence(raw)

	var payload assessmentPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("%w: not valid JSON: %v", ErrInvalidAssessment, err)
	}

	if payload.RootCause == nil || payload.RiskLevel == nil || payload.Summary == nil || len(payload.Recommendations) == 0 {
		return nil, fmt.Errorf("%w: missing required field", ErrInvalidAssessment)
	}

	level := strings.ToUpper(strings.TrimSpace(*payload.RiskLevel))
	if !model.ValidRiskLevel(level) {
		return nil, fmt.Errorf("%w: unknown riskLevel %q", ErrInvalidAssessment, *payload.RiskLevel)
	}

	// 권고는 정확히 3개로 정규화
	recommendations := payload.Recommendations
	if len(recommendations) > 3 {
		recommendations = recommendations[:3]
	}
	for len(recommendations) < 3 {
		recommendations = append(recommendations, "Review system logs for additional context")
	}

	return &model.RiskAssessment{
		RootCause:       strings.TrimSpace(*payload.RootCause),
		RiskLevel:       level,
		Summary:         strings.TrimSpace(*payload.Summary),
		Recommendations: recommendations,
	}, nil
}

// stripCodeFence - 생성 모델이 ```json ... ``` 으로 감싸는 경우 제거
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func buildRiskPrompt(summaries []model.Summary, embeddings []model.EmbeddingRecord, metrics []model.MetricSnapshot) string {
	var b strings.Builder

	b.WriteString("You are a reliability engineer analyzing production health signals.\n\n")

	// (a) 임베딩 기반 에러 패턴 통계 (발생 횟수 상위 10개)
	// 임베딩이 아직 없으면 Summary에서 같은 통계를 유도한다
	b.WriteString("## Top error patterns\n")
	patterns := rankedPatterns(summaries, embeddings)
	if len(patterns) == 0 {
		b.WriteString("(no error patterns observed)\n")
	}
	for _, p := range patterns {
		b.WriteString("- " + p + "\n")
	}

	// (b) trend score 상위 15개 Summary
	b.WriteString("\n## Accelerating incidents (by trend)\n")
	top := topSummariesByTrend(summaries, promptTopSummaries)
	if len(top) == 0 {
		b.WriteString("(no incident summaries)\n")
	}
	for _, s := range top {
		fmt.Fprintf(&b, "- component=%s signature=%q severity=%s occurrences=%d trend=%.3f\n",
			s.Component, s.ErrorSignature, s.Severity, s.Occurrences, s.TrendScore)
	}

	// (c) 컴포넌트별 메트릭 avg/min/max
	b.WriteString("\n## Metric statistics (per component)\n")
	stats := metricStats(metrics)
	if len(stats) == 0 {
		b.WriteString("(no metric snapshots)\n")
	}
	for _, line := range stats {
		b.WriteString("- " + line + "\n")
	}

	// (d) 판정 매트릭스 + 출력 계약
	b.WriteString(`
## Decision matrix
- CRITICAL: accelerating ERROR signatures on a core component combined with resource exhaustion signals
- HIGH: sustained ERROR growth or severe resource pressure, service degradation likely within hours
- MEDIUM: elevated warnings or a single unstable component, no immediate outage expected
- LOW: stable or decelerating signals, routine monitoring is sufficient

Respond with a single JSON object and nothing else. The object must contain exactly these four fields:
{"rootCause": string, "riskLevel": "LOW"|"MEDIUM"|"HIGH"|"CRITICAL", "summary": string, "recommendations": [string, string, string]}
`)

	return b.String()
}

func rankedPatterns(summaries []model.Summary, embeddings []model.EmbeddingRecord) []string {
	type pattern struct {
		text        string
		occurrences int
	}

	var patterns []pattern
	if len(embeddings) > 0 {
		for _, e := range embeddings {
			patterns = append(patterns, pattern{text: e.CondensedText, occurrences: e.Occurrences})
		}
	} else {
		for _, s := range summaries {
			patterns = append(patterns, pattern{text: CondenseSummary(s), occurrences: s.Occurrences})
		}
	}

	sort.SliceStable(patterns, func(i, j int) bool { return patterns[i].occurrences > patterns[j].occurrences })
	if len(patterns) > promptTopPatterns {
		patterns = patterns[:promptTopPatterns]
	}

	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, p.text)
	}
	return out
}

func topSummariesByTrend(summaries []model.Summary, limit int) []model.Summary {
	sorted := make([]model.Summary, len(summaries))
	copy(sorted, summaries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TrendScore > sorted[j].TrendScore })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func metricStats(metrics []model.MetricSnapshot) []string {
	type agg struct {
		key   string
		unit  string
		sum   float64
		min   float64
		max   float64
		count int
	}

	var order []string
	aggs := make(map[string]*agg)

	for _, m := range metrics {
		key := m.Component + "/" + m.MetricName
		a, ok := aggs[key]
		if !ok {
			a = &agg{key: key, unit: m.Unit, min: m.Value, max: m.Value}
			aggs[key] = a
			order = append(order, key)
		}
		a.sum += m.Value
		a.count++
		if m.Value < a.min {
			a.min = m.Value
		}
		if m.Value > a.max {
			a.max = m.Value
		}
	}

	out := make([]string, 0, len(order))
	for _, key := range order {
		a := aggs[key]
		out = append(out, fmt.Sprintf("%s: avg=%.2f min=%.2f max=%.2f %s",
			a.key, a.sum/float64(a.count), a.min, a.max, a.unit))
	}
	return out
}
