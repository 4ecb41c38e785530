package db

import (
	"context"

	"github.com/pulsewatch/backend/internal/model"
)

// UpsertSummaries - 병합 결과를 통째로 저장 (부분 필드 업데이트 없음)
// 충돌 시 revision을 1 올린다. last-writer-wins.
func (db *Postgres) UpsertSummaries(ctx context.Context, summaries []model.Summary) error {
	query := `
		INSERT INTO log_summaries (
			project_id, summary_id, revision, component, error_signature, severity,
			occurrences, first_seen_ms, last_seen_ms, sample_message, trend_score, updated_at
		)
		VALUES ($1, $2, 0, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (project_id, summary_id) DO UPDATE SET
			revision = log_summaries.revision + 1,
			occurrences = EXCLUDED.occurrences,
			first_seen_ms = EXCLUDED.first_seen_ms,
			last_seen_ms = EXCLUDED.last_seen_ms,
			sample_message = EXCLUDED.sample_message,
			trend_score = EXCLUDED.trend_score,
			updated_at = NOW()
	`

	for _, s := range summaries {
		_, err := db.Pool.Exec(ctx, query,
			s.ProjectID,
			s.SummaryID,
			s.Component,
			s.ErrorSignature,
			s.Severity,
			s.Occurrences,
			s.FirstSeenMs,
			s.LastSeenMs,
			s.SampleMessage,
			s.TrendScore,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetRecentSummaries - last_seen_ms가 sinceMs 이후인 Summary 조회
func (db *Postgres) GetRecentSummaries(ctx context.Context, projectID string, sinceMs int64) ([]model.Summary, error) {
	query := `
		SELECT project_id, summary_id, revision, component, error_signature, severity,
		       occurrences, first_seen_ms, last_seen_ms, sample_message, trend_score
		FROM log_summaries
		WHERE project_id = $1 AND last_seen_ms >= $2
		ORDER BY last_seen_ms DESC
	`

	rows, err := db.Pool.Query(ctx, query, projectID, sinceMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.Summary
	for rows.Next() {
		var s model.Summary
		if err := rows.Scan(
			&s.ProjectID, &s.SummaryID, &s.Revision, &s.Component, &s.ErrorSignature,
			&s.Severity, &s.Occurrences, &s.FirstSeenMs, &s.LastSeenMs, &s.SampleMessage, &s.TrendScore,
		); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// GetMaxLastSeen - 프로젝트 전체 Summary의 최대 last_seen_ms (수집 재개 워터마크)
// 한 건도 없으면 0
func (db *Postgres) GetMaxLastSeen(ctx context.Context, projectID string) (int64, error) {
	var maxLastSeen int64
	query := `SELECT COALESCE(MAX(last_seen_ms), 0) FROM log_summaries WHERE project_id = $1`
	err := db.Pool.QueryRow(ctx, query, projectID).Scan(&maxLastSeen)
	return maxLastSeen, err
}
