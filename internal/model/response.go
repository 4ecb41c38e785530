package model

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthReportEnvelope - 헬스체크 API 응답 구조체
type HealthReportEnvelope struct {
	Status string        `json:"status"`
	Data   *HealthReport `json:"data"`
}

// ProcessLogsResult - 로그 처리 결과 (총계 + 생성 건수 + AI 내러티브)
type ProcessLogsResult struct {
	ProjectID         string    `json:"project_id"`
	TotalCount        int       `json:"total_count"`
	ErrorCount        int       `json:"error_count"`
	WarningCount      int       `json:"warning_count"`
	SummariesCreated  int       `json:"summaries_created"`
	EmbeddingsCreated int       `json:"embeddings_created"`
	Narrative         string    `json:"narrative"`
	TopSummaries      []Summary `json:"top_summaries"`
}

// ProcessLogsEnvelope - 로그 처리 API 응답 구조체
type ProcessLogsEnvelope struct {
	Status string             `json:"status"`
	Data   *ProcessLogsResult `json:"data"`
}

// PredictionListEnvelope - 예측 이력 API 응답 구조체
type PredictionListEnvelope struct {
	Status string             `json:"status"`
	Data   []PredictionResult `json:"data"`
}
