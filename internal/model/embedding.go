package model

// EmbeddingRecord - Summary 하나를 임베딩 서비스로 벡터화한 결과
// embedding_id = summary_id + "#emb". Summary가 새 revision으로 대체되면 stale.
type EmbeddingRecord struct {
	ProjectID       string    `json:"project_id"`
	EmbeddingID     string    `json:"embedding_id"`
	SummaryID       string    `json:"summary_id"`
	Vector          []float32 `json:"-"`
	SourceSignature string    `json:"source_signature"`
	Severity        string    `json:"severity"`
	Occurrences     int       `json:"occurrences"`
	CondensedText   string    `json:"condensed_text"`
	Model           string    `json:"model"`
}
