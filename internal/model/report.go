package model

import "time"

// ============================================================================
// HealthReport 모델 (조립 결과, DB 저장 안 함)
// ============================================================================

// FailingComponent - 컴포넌트별 실패 집계 (failure_count 내림차순 상위 5개)
type FailingComponent struct {
	Component      string  `json:"component"`
	FailureCount   int     `json:"failure_count"`
	CriticalErrors int     `json:"critical_errors"`
	Trend          string  `json:"trend"`  // up, down, stable
	Status         string  `json:"status"` // critical, warning, stable
	AvgTrendScore  float64 `json:"avg_trend_score"`
}

// ErrorTrend - 시간 윈도우별 에러+경고 증감 비교
type ErrorTrend struct {
	Window        string  `json:"window"` // 1h, 6h
	CurrentCount  int     `json:"current_count"`
	PreviousCount int     `json:"previous_count"`
	ChangePercent float64 `json:"change_percent"`
	Severity      string  `json:"severity"`  // high, medium
	PeakTime      string  `json:"peak_time"` // ERROR가 가장 많았던 시간대 (예: "14:00-15:00")
}

// SlowEndpoint - timeout/latency 시그니처에서 추출한 느린 엔드포인트
type SlowEndpoint struct {
	Endpoint     string  `json:"endpoint"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	P95LatencyMs float64 `json:"p95_latency_ms"`
	P99LatencyMs float64 `json:"p99_latency_ms"`
	ErrorCount   int     `json:"error_count"`
	Status       string  `json:"status"` // critical, warning, healthy
}

// PredictedFailure - 실패 컴포넌트와 느린 엔드포인트의 교차 상관 예측
type PredictedFailure struct {
	Component        string `json:"component"`
	Description      string `json:"description"`
	Probability      int    `json:"probability"` // 0~100
	PreventiveAction string `json:"preventive_action"`
}

// Recommendation - 우선순위 정렬된 개선 권고 (critical > high > medium, 최대 5개)
type Recommendation struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Priority      string `json:"priority"` // critical, high, medium
	Effort        string `json:"effort"`
	EstimatedTime string `json:"estimated_time"`
	ROI           string `json:"roi"`
}

// HealthReport - 헬스체크 최종 응답
type HealthReport struct {
	ProjectID         string             `json:"project_id"`
	GeneratedAt       time.Time          `json:"generated_at"`
	FailingComponents []FailingComponent `json:"failing_components"`
	ErrorTrends       []ErrorTrend       `json:"error_trends"`
	SlowEndpoints     []SlowEndpoint     `json:"slow_endpoints"`
	PredictedFailures []PredictedFailure `json:"predicted_failures"`
	Recommendations   []Recommendation   `json:"recommendations"`
	Prediction        *PredictionResult  `json:"prediction,omitempty"`
}
