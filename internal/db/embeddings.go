package db

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"github.com/pulsewatch/backend/internal/model"
)

// InsertEmbedding - Summary 임베딩 저장
// 같은 Summary가 다시 강화되면 통째로 덮어쓴다 (이전 벡터는 stale)
func (db *Postgres) InsertEmbedding(ctx context.Context, rec model.EmbeddingRecord) error {
	query := `
		INSERT INTO log_embeddings (
			project_id, embedding_id, summary_id, embedding,
			source_signature, severity, occurrences, condensed_text, model, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (project_id, embedding_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			source_signature = EXCLUDED.source_signature,
			severity = EXCLUDED.severity,
			occurrences = EXCLUDED.occurrences,
			condensed_text = EXCLUDED.condensed_text,
			model = EXCLUDED.model,
			created_at = NOW()
	`

	_, err := db.Pool.Exec(ctx, query,
		rec.ProjectID,
		rec.EmbeddingID,
		rec.SummaryID,
		pgvector.NewVector(rec.Vector),
		rec.SourceSignature,
		rec.Severity,
		rec.Occurrences,
		rec.CondensedText,
		rec.Model,
	)
	return err
}
