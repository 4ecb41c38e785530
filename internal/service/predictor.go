// 장애 가능성/시간대 예측 로직 정의
//
// 고정 판정 테이블이다. 학습된 함수가 아니므로 값이 바뀌면 안 된다.
//   - 기본값: CRITICAL 0.9 / HIGH 0.7 / MEDIUM 0.4 / LOW 0.1
//   - 가중 평균 trend가 양수면 +0.1
//   - CPU 사용률 평균이 80 초과면 +0.15
//   - [0,1]로 클램프

package service

import (
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pulsewatch/backend/internal/model"
)

const (
	cpuPressureThreshold = 80.0

	timeframeImminent = "within 1-2 hours"
	timeframeHours    = "within 4-6 hours"
	timeframeDay      = "within 12-24 hours"
	timeframeLow      = "low risk, no immediate failure expected"
)

type Predictor struct{}

func NewPredictor() *Predictor {
	return &Predictor{}
}

// FailureLikelihood - riskLevel 기본값 + trend/메트릭 압력 가산
func (p *Predictor) FailureLikelihood(riskLevel string, summaries []model.Summary, metrics []model.MetricSnapshot) float64 {
	var base float64
	switch riskLevel {
	case model.RiskCritical:
		base = 0.9
	case model.RiskHigh:
		base = 0.7
	case model.RiskMedium:
		base = 0.4
	case model.RiskLow:
		base = 0.1
	default:
		log.Printf("Unrecognized risk level %q, defaulting to MEDIUM base", riskLevel)
		base = 0.4
	}

	if weightedAvgTrend(summaries) > 0 {
		base += 0.1
	}
	if avgCPUUtilization(metrics) > cpuPressureThreshold {
		base += 0.15
	}

	return math.Min(1.0, math.Max(0.0, base))
}

// Timeframe - 고정 판정 테이블
func (p *Predictor) Timeframe(riskLevel string, likelihood float64, summaries []model.Summary) string {
	if riskLevel == model.RiskCritical && likelihood > 0.8 {
		return timeframeImminent
	}
	if riskLevel == model.RiskHigh || (riskLevel == model.RiskCritical && anyTrendAbove(summaries, 0.5)) {
		return timeframeHours
	}
	if riskLevel == model.RiskMedium {
		return timeframeDay
	}
	return timeframeLow
}

// BuildPrediction - 저장용 PredictionResult 조립
func (p *Predictor) BuildPrediction(projectID string, assessment model.RiskAssessment, summaries []model.Summary, metrics []model.MetricSnapshot, logCount, errorCount, warningCount int) model.PredictionResult {
	likelihood := p.FailureLikelihood(assessment.RiskLevel, summaries, metrics)

	return model.PredictionResult{
		PredictionID:      uuid.NewString(),
		ProjectID:         projectID,
		TimestampMs:       time.Now().UnixMilli(),
		RiskLevel:         assessment.RiskLevel,
		Summary:           assessment.Summary,
		Recommendations:   assessment.Recommendations,
		Timeframe:         p.Timeframe(assessment.RiskLevel, likelihood, summaries),
		FailureLikelihood: likelihood,
		RootCause:         assessment.RootCause,
		LogCount:          logCount,
		ErrorCount:        errorCount,
		WarningCount:      warningCount,
	}
}

// weightedAvgTrend - 발생 횟수 가중 평균 trend
func weightedAvgTrend(summaries []model.Summary) float64 {
	var weightedSum float64
	var totalOcc int
	for _, s := range summaries {
		weightedSum += s.TrendScore * float64(s.Occurrences)
		totalOcc += s.Occurrences
	}
	if totalOcc == 0 {
		return 0
	}
	return weightedSum / float64(totalOcc)
}

func anyTrendAbove(summaries []model.Summary, threshold float64) bool {
	for _, s := range summaries {
		if s.TrendScore > threshold {
			return true
		}
	}
	return false
}

// avgCPUUtilization - CPU 사용률 스냅샷 평균 (메트릭 이름은 소스마다 다름)
func avgCPUUtilization(metrics []model.MetricSnapshot) float64 {
	var sum float64
	var count int
	for _, m := range metrics {
		name := strings.ToLower(m.MetricName)
		if strings.Contains(name, "cpu") {
			sum += m.Value
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
