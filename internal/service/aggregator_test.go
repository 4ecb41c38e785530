package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pulsewatch/backend/internal/model"
)

func TestAggregateGroupsByCompositeKey(t *testing.T) {
	agg := NewAggregator(NewNormalizer())

	events := []model.FilteredLogEvent{
		{StreamID: "/prod/payment-service/i-1", TimestampMs: 1000, Message: "NullPointerException in charge"},
		{StreamID: "/prod/payment-service/i-2", TimestampMs: 2000, Message: "NullPointerException in refund"},
		{StreamID: "/prod/billing-api/i-1", TimestampMs: 1500, Message: "request Timeout after 30s"},
	}

	summaries := agg.Aggregate("proj-1", events)
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}

	first := summaries[0]
	if first.Component != "payment-service" || first.ErrorSignature != "NullPointerException" {
		t.Fatalf("unexpected first group: %+v", first)
	}
	if first.Occurrences != 2 {
		t.Fatalf("occurrences = %d, want 2", first.Occurrences)
	}
	if first.FirstSeenMs != 1000 || first.LastSeenMs != 2000 {
		t.Fatalf("seen range = [%d, %d], want [1000, 2000]", first.FirstSeenMs, first.LastSeenMs)
	}
	// 샘플은 가장 최근 이벤트의 메시지여야 한다
	if first.SampleMessage != "NullPointerException in refund" {
		t.Fatalf("sample = %q", first.SampleMessage)
	}

	// 최초 등장 순서 유지
	if summaries[1].Component != "billing-api" {
		t.Fatalf("expected billing-api second, got %s", summaries[1].Component)
	}
}

func TestAggregateStableSummaryID(t *testing.T) {
	agg := NewAggregator(NewNormalizer())

	events := []model.FilteredLogEvent{
		{StreamID: "/prod/api/i-1", TimestampMs: 1000, Message: "TypeError: boom"},
	}

	a := agg.Aggregate("proj-1", events)
	b := agg.Aggregate("proj-1", events)
	if a[0].SummaryID != b[0].SummaryID {
		t.Fatalf("summary id not stable: %s vs %s", a[0].SummaryID, b[0].SummaryID)
	}
	if a[0].SummaryID[:4] != "SUM-" {
		t.Fatalf("unexpected id prefix: %s", a[0].SummaryID)
	}
}

func TestTrendScore(t *testing.T) {
	base := int64(1_700_000_000_000)

	tests := []struct {
		name       string
		timestamps []int64
		want       float64
	}{
		{"single-event", []int64{base}, 0},
		{"span-exactly-one-minute", []int64{base, base + 60_000}, 0},
		{"span-below-one-minute", []int64{base, base + 30_000, base + 59_000}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trendScore(tt.timestamps); got != tt.want {
				t.Fatalf("trendScore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrendScoreAccelerating(t *testing.T) {
	base := int64(1_700_000_000_000)

	// 10분 스팬: 전반 1건, 후반 3건 → 가속 (양수)
	timestamps := []int64{
		base,
		base + 8*60_000,
		base + 9*60_000,
		base + 10*60_000,
	}
	got := trendScore(timestamps)
	if got <= 0 {
		t.Fatalf("expected positive trend for accelerating group, got %v", got)
	}

	// 전반에 3건 몰림 → 감속 (음수)
	decelerating := []int64{base, base + 60_001, base + 2*60_000, base + 5*60_000}
	if got := trendScore(decelerating); got >= 0 {
		t.Fatalf("expected negative trend for decelerating group, got %v", got)
	}
}

func TestAggregateTruncatesSample(t *testing.T) {
	agg := NewAggregator(NewNormalizer())

	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	events := []model.FilteredLogEvent{
		{StreamID: "/prod/api/i-1", TimestampMs: 1000, Message: "error " + string(long)},
	}

	summaries := agg.Aggregate("proj-1", events)
	if len(summaries[0].SampleMessage) != maxSampleLen {
		t.Fatalf("sample length = %d, want %d", len(summaries[0].SampleMessage), maxSampleLen)
	}
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	// 3바이트 룬이 500바이트 경계에 걸리도록 구성
	s := "error " + strings.Repeat("한", 200)

	got := truncate(s, maxSampleLen)
	if len(got) > maxSampleLen {
		t.Fatalf("truncated length = %d, want <= %d", len(got), maxSampleLen)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid UTF-8: %q", got)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	agg := NewAggregator(NewNormalizer())
	if got := agg.Aggregate("proj-1", nil); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}
