// 필터링된 로그 이벤트를 Summary로 집계하는 로직 정의
//
// 처리 흐름:
//  1. component#signature#severity 복합 키로 그룹핑 (최초 등장 순서 유지)
//  2. 그룹별 발생 횟수, min/max 타임스탬프, 최신 타임스탬프의 샘플 추적
//     (샘플은 첫 메시지가 아니라 가장 최근 메시지 - 현재 동작을 반영하기 위함)
//  3. 그룹별 trend score 계산

package service

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"unicode/utf8"

	"github.com/pulsewatch/backend/internal/model"
)

const (
	// 이 시간보다 짧은 스팬은 추세 판단 불가 → trend 0
	minTrendSpanMs = 60_000

	maxSampleLen = 500
)

type Aggregator struct {
	norm *Normalizer
}

func NewAggregator(norm *Normalizer) *Aggregator {
	return &Aggregator{norm: norm}
}

// summaryGroup - 집계 중간 상태
type summaryGroup struct {
	component  string
	signature  string
	severity   string
	count      int
	firstMs    int64
	lastMs     int64
	sample     string
	timestamps []int64
}

// Aggregate - 이벤트 배치를 그룹당 하나의 Summary로 변환
func (a *Aggregator) Aggregate(projectID string, events []model.FilteredLogEvent) []model.Summary {
	if len(events) == 0 {
		return nil
	}

	var order []string
	groups := make(map[string]*summaryGroup)

	for _, e := range events {
		component := a.norm.Component(e.StreamID)
		severity := a.norm.Severity(e.Message)
		signature := a.norm.Signature(e.Message)
		key := component + "#" + signature + "#" + severity

		g, exists := groups[key]
		if !exists {
			g = &summaryGroup{
				component: component,
				signature: signature,
				severity:  severity,
				firstMs:   e.TimestampMs,
				lastMs:    e.TimestampMs,
				sample:    e.Message,
			}
			groups[key] = g
			order = append(order, key)
		}

		g.count++
		g.timestamps = append(g.timestamps, e.TimestampMs)
		if e.TimestampMs < g.firstMs {
			g.firstMs = e.TimestampMs
		}
		// 샘플은 가장 최근 타임스탬프의 메시지
		if e.TimestampMs >= g.lastMs {
			g.lastMs = e.TimestampMs
			g.sample = e.Message
		}
	}

	summaries := make([]model.Summary, 0, len(order))
	for _, key := range order {
		g := groups[key]
		summaries = append(summaries, model.Summary{
			ProjectID:      projectID,
			SummaryID:      deriveSummaryID(key),
			Component:      g.component,
			ErrorSignature: g.signature,
			Severity:       g.severity,
			Occurrences:    g.count,
			FirstSeenMs:    g.firstMs,
			LastSeenMs:     g.lastMs,
			SampleMessage:  truncate(g.sample, maxSampleLen),
			TrendScore:     trendScore(g.timestamps),
		})
	}
	return summaries
}

// trendScore - 윈도우 전후반 이벤트 빈도(건/분) 차이
// 양수면 가속, 음수면 감속. 신호가 부족하면 0.
func trendScore(timestamps []int64) float64 {
	if len(timestamps) < 2 {
		return 0
	}

	sorted := make([]int64, len(timestamps))
	copy(sorted, timestamps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	spanMs := sorted[len(sorted)-1] - sorted[0]
	if spanMs <= minTrendSpanMs {
		return 0
	}

	midMs := sorted[0] + spanMs/2
	firstCount := 0
	for _, ts := range sorted {
		if ts < midMs {
			firstCount++
		}
	}
	secondCount := len(sorted) - firstCount

	halfSpanMin := float64(spanMs) / 2 / 60_000
	firstRate := float64(firstCount) / halfSpanMin
	secondRate := float64(secondCount) / halfSpanMin
	return secondRate - firstRate
}

// deriveSummaryID - 복합 키에서 안정적인 ID 파생
// 타임스탬프를 섞지 않으므로 같은 키는 항상 같은 ID (revision으로 버전 관리)
func deriveSummaryID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "SUM-" + hex.EncodeToString(sum[:])[:12]
}

// truncate - 멀티바이트 룬 중간에서 자르지 않는다
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
