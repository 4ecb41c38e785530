package model

// MetricSnapshot - 메트릭 소스에서 받은 평균 집계 데이터포인트
// 이 파이프라인은 읽기만 하고 절대 수정하지 않는다 (append-only)
type MetricSnapshot struct {
	ProjectID   string  `json:"project_id"`
	TimestampMs int64   `json:"timestamp_ms"`
	Component   string  `json:"component"`
	MetricName  string  `json:"metric_name"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
}
