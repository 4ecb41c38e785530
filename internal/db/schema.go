package db

import "context"

// EnsureSchema - 파이프라인 테이블 생성 (이미 있으면 무시)
// 기존 테이블에는 컬럼만 추가한다
func (db *Postgres) EnsureSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS projects (
			project_id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			log_groups TEXT[] NOT NULL DEFAULT '{}',
			components TEXT[] NOT NULL DEFAULT '{}',
			last_processed_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS log_summaries (
			project_id TEXT NOT NULL,
			summary_id TEXT NOT NULL,
			revision BIGINT NOT NULL DEFAULT 0,
			component TEXT NOT NULL,
			error_signature TEXT NOT NULL,
			severity TEXT NOT NULL,
			occurrences INT NOT NULL,
			first_seen_ms BIGINT NOT NULL,
			last_seen_ms BIGINT NOT NULL,
			sample_message TEXT NOT NULL DEFAULT '',
			trend_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (project_id, summary_id)
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS log_embeddings (
			project_id TEXT NOT NULL,
			embedding_id TEXT NOT NULL,
			summary_id TEXT NOT NULL,
			embedding vector(768),
			source_signature TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL DEFAULT '',
			occurrences INT NOT NULL DEFAULT 0,
			condensed_text TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (project_id, embedding_id)
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS metric_snapshots (
			project_id TEXT NOT NULL,
			ts_ms BIGINT NOT NULL,
			component TEXT NOT NULL,
			metric_name TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			unit TEXT NOT NULL DEFAULT ''
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS predictions (
			prediction_id UUID PRIMARY KEY,
			project_id TEXT NOT NULL,
			ts_ms BIGINT NOT NULL,
			risk_level TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			recommendations JSONB NOT NULL DEFAULT '[]',
			timeframe TEXT NOT NULL DEFAULT '',
			failure_likelihood DOUBLE PRECISION NOT NULL DEFAULT 0,
			root_cause TEXT NOT NULL DEFAULT '',
			log_count INT NOT NULL DEFAULT 0,
			error_count INT NOT NULL DEFAULT 0,
			warning_count INT NOT NULL DEFAULT 0
		)
		`,
		`CREATE INDEX IF NOT EXISTS log_summaries_last_seen_idx ON log_summaries(project_id, last_seen_ms DESC)`,
		`CREATE INDEX IF NOT EXISTS metric_snapshots_ts_idx ON metric_snapshots(project_id, ts_ms DESC)`,
		`CREATE INDEX IF NOT EXISTS predictions_project_idx ON predictions(project_id, ts_ms DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}
