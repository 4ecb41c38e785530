// 인프라 메트릭 소스(InfluxDB)와 통신하는 클라이언트 정의
//
// 환경변수:
//   - INFLUX_URL, INFLUX_TOKEN, INFLUX_ORG, INFLUX_BUCKET
//
// 항상 mean 집계를 고정 주기로 요청한다. 원본 데이터포인트의 해상도는
// 이 파이프라인의 관심사가 아니다.

package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/pulsewatch/backend/internal/config"
	"github.com/pulsewatch/backend/internal/model"
)

const metricAggregatePeriod = "5m"

// MetricsClient 구조체 정의
type MetricsClient struct {
	queryAPI api.QueryAPI
	bucket   string
}

// MetricsClient 객체 생성
func NewMetricsClient(cfg config.InfluxConfig) *MetricsClient {
	c := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &MetricsClient{
		queryAPI: c.QueryAPI(cfg.Org),
		bucket:   cfg.Bucket,
	}
}

// FetchAverages - 컴포넌트×메트릭 조합의 mean 집계 데이터포인트 조회
func (c *MetricsClient) FetchAverages(ctx context.Context, projectID string, components, metricNames []string, startMs, endMs int64) ([]model.MetricSnapshot, error) {
	if len(components) == 0 || len(metricNames) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => contains(value: r.component, set: %s))
  |> filter(fn: (r) => contains(value: r._field, set: %s))
  |> aggregateWindow(every: %s, fn: mean, createEmpty: false)
`,
		c.bucket,
		time.UnixMilli(startMs).UTC().Format(time.RFC3339),
		time.UnixMilli(endMs).UTC().Format(time.RFC3339),
		fluxStringSet(components),
		fluxStringSet(metricNames),
		metricAggregatePeriod,
	)

	result, err := c.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric source: %w", err)
	}

	var snapshots []model.MetricSnapshot
	for result.Next() {
		record := result.Record()

		value, ok := record.Value().(float64)
		if !ok {
			continue
		}

		component, _ := record.ValueByKey("component").(string)
		unit, _ := record.ValueByKey("unit").(string)

		snapshots = append(snapshots, model.MetricSnapshot{
			ProjectID:   projectID,
			TimestampMs: record.Time().UnixMilli(),
			Component:   component,
			MetricName:  record.Field(),
			Value:       value,
			Unit:        unit,
		})
	}
	if result.Err() != nil {
		return snapshots, fmt.Errorf("metric query iteration failed: %w", result.Err())
	}
	return snapshots, nil
}

func fluxStringSet(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, fmt.Sprintf("%q", v))
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
