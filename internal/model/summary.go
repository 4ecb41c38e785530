package model

// Severity 값은 이 두 가지만 사용 (필터를 통과한 이벤트는 항상 actionable)
const (
	SeverityError = "ERROR"
	SeverityWarn  = "WARN"
)

// Summary - 장애 신호 집계 단위
// (component, error_signature, severity) 조합당 프로젝트 내에서 하나만 존재.
// Aggregator가 생성하고 Merger만 갱신한다. 병합은 항상 새 값을 만들며
// 기존 레코드를 부분 수정하지 않는다. revision은 병합 저장 시마다 1씩 증가.
type Summary struct {
	ProjectID      string  `json:"project_id"`
	SummaryID      string  `json:"summary_id"`
	Revision       int64   `json:"revision"`
	Component      string  `json:"component"`
	ErrorSignature string  `json:"error_signature"`
	Severity       string  `json:"severity"`
	Occurrences    int     `json:"occurrences"`
	FirstSeenMs    int64   `json:"first_seen_ms"`
	LastSeenMs     int64   `json:"last_seen_ms"`
	SampleMessage  string  `json:"sample_message"`
	TrendScore     float64 `json:"trend_score"`
}

// Key - 병합/중복 제거에 사용하는 복합 키
func (s Summary) Key() string {
	return s.Component + "#" + s.ErrorSignature + "#" + s.Severity
}
