package model

// 리스크 레벨 4단계 (생성 모델 출력 계약에 포함)
const (
	RiskLow      = "LOW"
	RiskMedium   = "MEDIUM"
	RiskHigh     = "HIGH"
	RiskCritical = "CRITICAL"
)

// ValidRiskLevel - 4단계 enum 검증
func ValidRiskLevel(level string) bool {
	switch level {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// RiskAssessment - 생성 모델의 구조화된 평가 결과 (헬스체크 1회당 1개, 비영속)
// Recommendations는 항상 정확히 3개
type RiskAssessment struct {
	RootCause       string   `json:"rootCause"`
	RiskLevel       string   `json:"riskLevel"`
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
}

// PredictionResult - 헬스체크 1회당 1건 저장되는 예측 결과 (append-only)
type PredictionResult struct {
	PredictionID      string   `json:"prediction_id"`
	ProjectID         string   `json:"project_id"`
	TimestampMs       int64    `json:"timestamp_ms"`
	RiskLevel         string   `json:"risk_level"`
	Summary           string   `json:"summary"`
	Recommendations   []string `json:"recommendations"`
	Timeframe         string   `json:"timeframe"`
	FailureLikelihood float64  `json:"failure_likelihood"`
	RootCause         string   `json:"root_cause"`
	LogCount          int      `json:"log_count"`
	ErrorCount        int      `json:"error_count"`
	WarningCount      int      `json:"warning_count"`
}
