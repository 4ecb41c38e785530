package db

import (
	"context"

	"github.com/pulsewatch/backend/internal/model"
)

// GetProject - 프로젝트 설정 조회
// 없으면 pgx.ErrNoRows를 그대로 반환 (service 레이어에서 ErrProjectNotFound로 변환)
func (db *Postgres) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	query := `
		SELECT project_id, name, enabled, log_groups, components, last_processed_ms
		FROM projects
		WHERE project_id = $1
	`

	var p model.Project
	err := db.Pool.QueryRow(ctx, query, projectID).Scan(
		&p.ProjectID, &p.Name, &p.Enabled, &p.LogGroups, &p.Components, &p.LastProcessedMs,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateWatermark - 수집 완료 후 last_processed_ms 갱신
func (db *Postgres) UpdateWatermark(ctx context.Context, projectID string, processedMs int64) error {
	query := `
		UPDATE projects
		SET last_processed_ms = $1, updated_at = NOW()
		WHERE project_id = $2
	`
	_, err := db.Pool.Exec(ctx, query, processedMs, projectID)
	return err
}
