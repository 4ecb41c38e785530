package db

import (
	"context"

	"github.com/pulsewatch/backend/internal/model"
)

// InsertMetricSnapshots - 백그라운드 수집 태스크가 다음 헬스체크를 위해 저장
func (db *Postgres) InsertMetricSnapshots(ctx context.Context, snapshots []model.MetricSnapshot) error {
	query := `
		INSERT INTO metric_snapshots (project_id, ts_ms, component, metric_name, value, unit)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, m := range snapshots {
		_, err := db.Pool.Exec(ctx, query,
			m.ProjectID, m.TimestampMs, m.Component, m.MetricName, m.Value, m.Unit,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetMetricSnapshots - ts_ms가 sinceMs 이후인 스냅샷 조회
func (db *Postgres) GetMetricSnapshots(ctx context.Context, projectID string, sinceMs int64) ([]model.MetricSnapshot, error) {
	query := `
		SELECT project_id, ts_ms, component, metric_name, value, unit
		FROM metric_snapshots
		WHERE project_id = $1 AND ts_ms >= $2
		ORDER BY ts_ms DESC
	`

	rows, err := db.Pool.Query(ctx, query, projectID, sinceMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.MetricSnapshot
	for rows.Next() {
		var m model.MetricSnapshot
		if err := rows.Scan(&m.ProjectID, &m.TimestampMs, &m.Component, &m.MetricName, &m.Value, &m.Unit); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
