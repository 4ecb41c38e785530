package db

import (
	"context"
	"encoding/json"

	"github.com/pulsewatch/backend/internal/model"
)

// InsertPrediction - 헬스체크 1회당 1건 저장 (append-only 이력)
func (db *Postgres) InsertPrediction(ctx context.Context, pred model.PredictionResult) error {
	recommendations, err := json.Marshal(pred.Recommendations)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO predictions (
			prediction_id, project_id, ts_ms, risk_level, summary, recommendations,
			timeframe, failure_likelihood, root_cause, log_count, error_count, warning_count
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = db.Pool.Exec(ctx, query,
		pred.PredictionID,
		pred.ProjectID,
		pred.TimestampMs,
		pred.RiskLevel,
		pred.Summary,
		recommendations,
		pred.Timeframe,
		pred.FailureLikelihood,
		pred.RootCause,
		pred.LogCount,
		pred.ErrorCount,
		pred.WarningCount,
	)
	return err
}

// ListPredictions - 최신순 예측 이력 조회
func (db *Postgres) ListPredictions(ctx context.Context, projectID string, limit int) ([]model.PredictionResult, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT prediction_id, project_id, ts_ms, risk_level, summary, recommendations,
		       timeframe, failure_likelihood, root_cause, log_count, error_count, warning_count
		FROM predictions
		WHERE project_id = $1
		ORDER BY ts_ms DESC
		LIMIT $2
	`

	rows, err := db.Pool.Query(ctx, query, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.PredictionResult
	for rows.Next() {
		var p model.PredictionResult
		var recommendations []byte
		if err := rows.Scan(
			&p.PredictionID, &p.ProjectID, &p.TimestampMs, &p.RiskLevel, &p.Summary, &recommendations,
			&p.Timeframe, &p.FailureLikelihood, &p.RootCause, &p.LogCount, &p.ErrorCount, &p.WarningCount,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(recommendations, &p.Recommendations); err != nil {
			p.Recommendations = nil
		}
		list = append(list, p)
	}

	if list == nil {
		list = []model.PredictionResult{}
	}
	return list, rows.Err()
}
