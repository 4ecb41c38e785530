package model

// ============================================================================
// 로그 이벤트 모델 (수집 단계에서만 사용, DB 저장 안 함)
// ============================================================================

// RawLogEvent - 로그 소스에서 가져온 원본 로그 한 줄
type RawLogEvent struct {
	StreamID    string `json:"stream_id"`
	TimestampMs int64  `json:"timestamp_ms"`
	Message     string `json:"message"`
}

// FilteredLogEvent - 에러/경고 휴리스틱을 통과한 로그 이벤트
type FilteredLogEvent struct {
	StreamID    string `json:"stream_id"`
	TimestampMs int64  `json:"timestamp_ms"`
	Message     string `json:"message"`
}

// LogPage - 로그 소스의 페이지네이션 응답 단위
type LogPage struct {
	Events        []RawLogEvent `json:"events"`
	NextPageToken string        `json:"next_page_token"`
}
