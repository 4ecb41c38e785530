package model

// Project - 모니터링 대상 프로젝트 설정
// enabled=false면 헬스체크/로그 처리 요청 자체를 거부한다
type Project struct {
	ProjectID       string   `json:"project_id"`
	Name            string   `json:"name"`
	Enabled         bool     `json:"enabled"`
	LogGroups       []string `json:"log_groups"`
	Components      []string `json:"components"`
	LastProcessedMs int64    `json:"last_processed_ms"`
}
