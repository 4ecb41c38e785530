// 헬스 리포트 조립 로직 정의
//
// 병합된 Summary와 MetricSnapshot에서 다섯 가지 projection을 독립적으로 유도:
//  1. FailingComponent: 컴포넌트별 실패 집계 상위 5개
//  2. ErrorTrend: 1시간/6시간 윈도우 증감 비교 + 피크 시간대
//  3. SlowEndpoint: timeout/latency 시그니처에서 엔드포인트별 지연 추정
//  4. PredictedFailure: critical 컴포넌트 × 느린 엔드포인트 교차 상관 예측
//  5. Recommendation: 메트릭 임계값 + 키워드 규칙 + AI 권고, 우선순위 정렬
//
// Summary도 메트릭도 없으면 빈 리포트 대신 고정된 "healthy/monitor" 리포트 반환

package service

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pulsewatch/backend/internal/model"
)

const (
	maxFailingComponents = 5
	maxPredictedFailures = 3
	maxRecommendations   = 5

	trendUpThreshold     = 0.2
	trendCriticalScore   = 0.5
	criticalErrorsHigh   = 50
	criticalErrorsWarn   = 10
	errorTrendVolumeHigh = 20

	p95CriticalMs = 1000.0
	p95WarningMs  = 500.0
)

var (
	endpointPathPattern = regexp.MustCompile(`/api/[a-zA-Z0-9_\-/]+`)
	latencyTokenPattern = regexp.MustCompile(`(\d+)\s*ms\b`)
	latencyTermPattern  = regexp.MustCompile(`(?i)timeout|timed out|latency|slow|took too long`)
)

// 시그니처 키워드 → 엔드포인트 경로 추정 테이블
var endpointKeywordLookup = []struct {
	keyword string
	path    string
}{
	{"payment", "/api/payments"},
	{"auth", "/api/auth"},
	{"login", "/api/auth"},
	{"user", "/api/users"},
	{"order", "/api/orders"},
	{"database", "/api/data"},
	{"query", "/api/data"},
}

type ReportAssembler struct {
	now func() time.Time
}

func NewReportAssembler() *ReportAssembler {
	return &ReportAssembler{now: time.Now}
}

// Assemble - 다섯 projection을 조립한 최종 리포트
func (r *ReportAssembler) Assemble(projectID string, summaries []model.Summary, metrics []model.MetricSnapshot, assessment model.RiskAssessment, prediction *model.PredictionResult) *model.HealthReport {
	if len(summaries) == 0 && len(metrics) == 0 {
		return r.healthyReport(projectID, prediction)
	}

	failing := r.failingComponents(summaries)
	slow := r.slowEndpoints(summaries)

	return &model.HealthReport{
		ProjectID:         projectID,
		GeneratedAt:       r.now(),
		FailingComponents: failing,
		ErrorTrends:       r.errorTrends(summaries),
		SlowEndpoints:     slow,
		PredictedFailures: r.predictedFailures(failing, slow),
		Recommendations:   r.recommendations(summaries, metrics, assessment),
		Prediction:        prediction,
	}
}

// healthyReport - 신호가 전혀 없을 때의 안전 기본값
func (r *ReportAssembler) healthyReport(projectID string, prediction *model.PredictionResult) *model.HealthReport {
	return &model.HealthReport{
		ProjectID:   projectID,
		GeneratedAt: r.now(),
		FailingComponents: []model.FailingComponent{
			{Component: "all-services", Trend: "stable", Status: "stable"},
		},
		ErrorTrends: []model.ErrorTrend{
			{Window: "1h", Severity: "medium", PeakTime: "n/a"},
			{Window: "6h", Severity: "medium", PeakTime: "n/a"},
		},
		SlowEndpoints:     []model.SlowEndpoint{},
		PredictedFailures: []model.PredictedFailure{},
		Recommendations: []model.Recommendation{
			{
				Title:         "Continue Monitoring",
				Description:   "No failure signals in the current window. Keep collecting logs and metrics.",
				Priority:      "medium",
				Effort:        "low",
				EstimatedTime: "ongoing",
				ROI:           "Early detection of regressions",
			},
		},
		Prediction: prediction,
	}
}

// ============================================================================
// 1. FailingComponent
// ============================================================================

func (r *ReportAssembler) failingComponents(summaries []model.Summary) []model.FailingComponent {
	type componentAgg struct {
		failureCount   int
		criticalErrors int
		trendSum       float64
		summaryCount   int
	}

	var order []string
	aggs := make(map[string]*componentAgg)

	for _, s := range summaries {
		a, ok := aggs[s.Component]
		if !ok {
			a = &componentAgg{}
			aggs[s.Component] = a
			order = append(order, s.Component)
		}
		a.failureCount += s.Occurrences
		if s.Severity == model.SeverityError {
			a.criticalErrors += s.Occurrences
		}
		a.trendSum += s.TrendScore
		a.summaryCount++
	}

	components := make([]model.FailingComponent, 0, len(order))
	for _, name := range order {
		a := aggs[name]
		avgTrend := a.trendSum / float64(a.summaryCount)

		trend := "stable"
		if avgTrend > trendUpThreshold {
			trend = "up"
		} else if avgTrend < -trendUpThreshold {
			trend = "down"
		}

		status := "stable"
		switch {
		case a.criticalErrors > criticalErrorsHigh || avgTrend > trendCriticalScore:
			status = "critical"
		case a.criticalErrors > criticalErrorsWarn || avgTrend > trendUpThreshold:
			status = "warning"
		}

		components = append(components, model.FailingComponent{
			Component:      name,
			FailureCount:   a.failureCount,
			CriticalErrors: a.criticalErrors,
			Trend:          trend,
			Status:         status,
			AvgTrendScore:  avgTrend,
		})
	}

	sort.SliceStable(components, func(i, j int) bool {
		return components[i].FailureCount > components[j].FailureCount
	})
	if len(components) > maxFailingComponents {
		components = components[:maxFailingComponents]
	}
	return components
}

// ============================================================================
// 2. ErrorTrend
// ============================================================================

func (r *ReportAssembler) errorTrends(summaries []model.Summary) []model.ErrorTrend {
	nowMs := r.now().UnixMilli()
	hourMs := time.Hour.Milliseconds()

	return []model.ErrorTrend{
		r.windowTrend(summaries, "1h", nowMs, hourMs),
		r.windowTrend(summaries, "6h", nowMs, 6*hourMs),
	}
}

// windowTrend - 직전 윈도우 대비 현재 윈도우의 에러+경고 발생량 비교
// 발생량은 Summary의 lastSeen 시각 기준으로 귀속시킨다
func (r *ReportAssembler) windowTrend(summaries []model.Summary, label string, nowMs, windowMs int64) model.ErrorTrend {
	var current, previous int
	for _, s := range summaries {
		switch {
		case s.LastSeenMs >= nowMs-windowMs:
			current += s.Occurrences
		case s.LastSeenMs >= nowMs-2*windowMs:
			previous += s.Occurrences
		}
	}

	denom := previous
	if denom == 0 {
		denom = 1
	}
	change := float64(current-previous) / float64(denom) * 100

	severity := "medium"
	if change > 0 && current > errorTrendVolumeHigh {
		severity = "high"
	}

	return model.ErrorTrend{
		Window:        label,
		CurrentCount:  current,
		PreviousCount: previous,
		ChangePercent: change,
		Severity:      severity,
		PeakTime:      r.peakErrorHour(summaries),
	}
}

// peakErrorHour - ERROR 이벤트가 가장 많았던 시간대 버킷
func (r *ReportAssembler) peakErrorHour(summaries []model.Summary) string {
	counts := make(map[int]int)
	for _, s := range summaries {
		if s.Severity != model.SeverityError {
			continue
		}
		hour := time.UnixMilli(s.LastSeenMs).UTC().Hour()
		counts[hour] += s.Occurrences
	}
	if len(counts) == 0 {
		return "n/a"
	}

	peakHour, peakCount := 0, -1
	for hour, count := range counts {
		if count > peakCount || (count == peakCount && hour < peakHour) {
			peakHour, peakCount = hour, count
		}
	}
	return fmt.Sprintf("%02d:00-%02d:00", peakHour, (peakHour+1)%24)
}

// ============================================================================
// 3. SlowEndpoint
// ============================================================================

func (r *ReportAssembler) slowEndpoints(summaries []model.Summary) []model.SlowEndpoint {
	type endpointAgg struct {
		latencies  []float64
		errorCount int
	}

	var order []string
	aggs := make(map[string]*endpointAgg)

	for _, s := range summaries {
		if !latencyTermPattern.MatchString(s.ErrorSignature) && !latencyTermPattern.MatchString(s.SampleMessage) {
			continue
		}

		endpoint := extractEndpoint(s)
		a, ok := aggs[endpoint]
		if !ok {
			a = &endpointAgg{}
			aggs[endpoint] = a
			order = append(order, endpoint)
		}
		a.errorCount += s.Occurrences
		a.latencies = append(a.latencies, parseLatencies(s.SampleMessage)...)
	}

	endpoints := make([]model.SlowEndpoint, 0, len(order))
	for _, path := range order {
		a := aggs[path]
		avg, p95, p99 := latencyStats(a.latencies, a.errorCount)

		status := "healthy"
		switch {
		case p95 > p95CriticalMs || a.errorCount > criticalErrorsHigh:
			status = "critical"
		case p95 > p95WarningMs || a.errorCount > criticalErrorsWarn:
			status = "warning"
		}

		endpoints = append(endpoints, model.SlowEndpoint{
			Endpoint:     path,
			AvgLatencyMs: avg,
			P95LatencyMs: p95,
			P99LatencyMs: p99,
			ErrorCount:   a.errorCount,
			Status:       status,
		})
	}

	sort.SliceStable(endpoints, func(i, j int) bool {
		return endpoints[i].P95LatencyMs > endpoints[j].P95LatencyMs
	})
	return endpoints
}

func extractEndpoint(s model.Summary) string {
	if match := endpointPathPattern.FindString(s.SampleMessage); match != "" {
		return match
	}
	text := strings.ToLower(s.ErrorSignature + " " + s.SampleMessage)
	for _, entry := range endpointKeywordLookup {
		if strings.Contains(text, entry.keyword) {
			return entry.path
		}
	}
	return "/api/unknown"
}

func parseLatencies(message string) []float64 {
	var out []float64
	for _, match := range latencyTokenPattern.FindAllStringSubmatch(message, -1) {
		if v, err := strconv.ParseFloat(match[1], 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// latencyStats - 파싱된 ms 토큰이 있으면 실측 percentile, 없으면
// 에러 횟수에 비례하는 결정적 추정치
func latencyStats(latencies []float64, errorCount int) (avg, p95, p99 float64) {
	if len(latencies) == 0 {
		estimate := 200 + 50*float64(errorCount)
		return estimate, estimate * 1.5, estimate * 2
	}

	sorted := make([]float64, len(latencies))
	copy(sorted, latencies)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	avg = sum / float64(len(sorted))
	p95 = percentile(sorted, 0.95)
	p99 = percentile(sorted, 0.99)
	return avg, p95, p99
}

func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// ============================================================================
// 4. PredictedFailure
// ============================================================================

func (r *ReportAssembler) predictedFailures(failing []model.FailingComponent, slow []model.SlowEndpoint) []model.PredictedFailure {
	var predictions []model.PredictedFailure

	for _, fc := range failing {
		if fc.Status != "critical" {
			continue
		}

		trendMag := fc.AvgTrendScore
		if trendMag < 0 {
			trendMag = -trendMag
		}
		probability := int(float64(fc.CriticalErrors)/2 + trendMag*30 + 40)
		if probability > 100 {
			probability = 100
		}

		predictions = append(predictions, model.PredictedFailure{
			Component:        fc.Component,
			Description:      fmt.Sprintf("%s shows %d critical errors with %s trend; failure likely if untreated", fc.Component, fc.CriticalErrors, fc.Trend),
			Probability:      probability,
			PreventiveAction: preventiveAction(fc.Component, fc.Trend),
		})
	}

	for _, ep := range slow {
		if ep.Status != "critical" && ep.Status != "warning" {
			continue
		}

		probability := int(float64(ep.ErrorCount)/2 + ep.P95LatencyMs/50)
		if probability > 100 {
			probability = 100
		}

		predictions = append(predictions, model.PredictedFailure{
			Component:        ep.Endpoint,
			Description:      fmt.Sprintf("%s degrading: p95 latency %.0fms with %d errors", ep.Endpoint, ep.P95LatencyMs, ep.ErrorCount),
			Probability:      probability,
			PreventiveAction: preventiveAction(ep.Endpoint, "up"),
		})
	}

	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].Probability > predictions[j].Probability
	})
	if len(predictions) > maxPredictedFailures {
		predictions = predictions[:maxPredictedFailures]
	}
	if predictions == nil {
		predictions = []model.PredictedFailure{}
	}
	return predictions
}

// preventiveAction - 시그니처 키워드 기반 고정 대응책
func preventiveAction(subject, trend string) string {
	lower := strings.ToLower(subject)
	switch {
	case strings.Contains(lower, "pool") || strings.Contains(lower, "connection"):
		return "Scale up connection pool"
	case strings.Contains(lower, "memory") || strings.Contains(lower, "oom"):
		return "Increase memory limits and inspect for leaks"
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "latency"):
		return "Raise downstream timeouts and add a circuit breaker"
	case strings.Contains(lower, "db") || strings.Contains(lower, "database") || strings.Contains(lower, "data"):
		return "Optimize slow queries and review indexes"
	case trend == "up":
		return "Add capacity before the error rate accelerates further"
	default:
		return "Review recent deployments and roll back if needed"
	}
}

// ============================================================================
// 5. Recommendation
// ============================================================================

var priorityRank = map[string]int{"critical": 0, "high": 1, "medium": 2}

func (r *ReportAssembler) recommendations(summaries []model.Summary, metrics []model.MetricSnapshot, assessment model.RiskAssessment) []model.Recommendation {
	var recs []model.Recommendation

	// 메트릭 임계값 규칙 (CPU/메모리 평균 70 초과)
	cpuAvg := metricAvgByName(metrics, "cpu")
	if cpuAvg > 70 {
		priority := "high"
		if cpuAvg > 85 {
			priority = "critical"
		}
		recs = append(recs, model.Recommendation{
			Title:         "Scale out CPU-bound services",
			Description:   fmt.Sprintf("Average CPU utilization is %.0f%%. Add replicas or raise CPU limits.", cpuAvg),
			Priority:      priority,
			Effort:        "medium",
			EstimatedTime: "1-2 days",
			ROI:           "Prevents cascading slowdowns under load",
		})
	}

	memAvg := metricAvgByName(metrics, "memory")
	if memAvg > 70 {
		priority := "high"
		if memAvg > 85 {
			priority = "critical"
		}
		recs = append(recs, model.Recommendation{
			Title:         "Raise memory limits",
			Description:   fmt.Sprintf("Average memory utilization is %.0f%%. Raise limits or fix retention.", memAvg),
			Priority:      priority,
			Effort:        "medium",
			EstimatedTime: "1-2 days",
			ROI:           "Avoids OOM kills and restarts",
		})
	}

	// Summary 키워드 규칙 (database/connection-pool)
	if anySummaryMentions(summaries, "database", "sql", "query") {
		recs = append(recs, model.Recommendation{
			Title:         "Investigate database errors",
			Description:   "Error signatures reference database failures. Check slow queries and connection health.",
			Priority:      "high",
			Effort:        "medium",
			EstimatedTime: "2-3 days",
			ROI:           "Database issues multiply across all dependent services",
		})
	}
	if anySummaryMentions(summaries, "connection pool", "pool exhausted", "too many connections") {
		recs = append(recs, model.Recommendation{
			Title:         "Scale up connection pool",
			Description:   "Connection-pool exhaustion signatures detected. Raise pool size and add backpressure.",
			Priority:      "high",
			Effort:        "low",
			EstimatedTime: "hours",
			ROI:           "Immediate relief for request queuing",
		})
	}

	// AI 권고는 medium 고정
	for _, text := range assessment.Recommendations {
		recs = append(recs, model.Recommendation{
			Title:         text,
			Description:   "Suggested by AI risk analysis",
			Priority:      "medium",
			Effort:        "varies",
			EstimatedTime: "varies",
			ROI:           "Targets the assessed root cause",
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return priorityRank[recs[i].Priority] < priorityRank[recs[j].Priority]
	})
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

func metricAvgByName(metrics []model.MetricSnapshot, nameFragment string) float64 {
	var sum float64
	var count int
	for _, m := range metrics {
		if strings.Contains(strings.ToLower(m.MetricName), nameFragment) {
			sum += m.Value
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func anySummaryMentions(summaries []model.Summary, terms ...string) bool {
	for _, s := range summaries {
		text := strings.ToLower(s.ErrorSignature + " " + s.SampleMessage)
		for _, term := range terms {
			if strings.Contains(text, term) {
				return true
			}
		}
	}
	return false
}
