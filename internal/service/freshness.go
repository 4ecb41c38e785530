// 캐시 신선도 게이트 정의
//
// 저장된 Summary의 lastSeen이 신선도 윈도우(기본 2시간) 안에 있으면 FRESH:
// 재수집을 건너뛰고 캐시된 Summary로 바로 진행한다 (리스크 평가는 그대로 수행).
// 하나도 없으면 STALE: 수집 재개 지점을 계산한다.

package service

import (
	"context"
	"time"

	"github.com/pulsewatch/backend/internal/model"
)

// SummaryReader - 게이트가 필요로 하는 저장소 조회 능력
type SummaryReader interface {
	GetRecentSummaries(ctx context.Context, projectID string, sinceMs int64) ([]model.Summary, error)
	GetMaxLastSeen(ctx context.Context, projectID string) (int64, error)
}

// FreshnessDecision - 게이트 판정 결과
// Fresh=true면 Cached만 사용, false면 ResumeFromMs부터 수집
type FreshnessDecision struct {
	Fresh        bool
	Cached       []model.Summary
	ResumeFromMs int64
}

type FreshnessGate struct {
	repo     SummaryReader
	window   time.Duration
	lookback time.Duration
	now      func() time.Time
}

func NewFreshnessGate(repo SummaryReader, window, lookback time.Duration) *FreshnessGate {
	return &FreshnessGate{
		repo:     repo,
		window:   window,
		lookback: lookback,
		now:      time.Now,
	}
}

func (g *FreshnessGate) Decide(ctx context.Context, projectID string) (*FreshnessDecision, error) {
	nowMs := g.now().UnixMilli()
	sinceMs := nowMs - g.window.Milliseconds()

	cached, err := g.repo.GetRecentSummaries(ctx, projectID, sinceMs)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		return &FreshnessDecision{Fresh: true, Cached: cached}, nil
	}

	maxLastSeen, err := g.repo.GetMaxLastSeen(ctx, projectID)
	if err != nil {
		return nil, err
	}

	resumeFrom := maxLastSeen
	if resumeFrom == 0 {
		// 한 번도 저장된 적 없음 → lookback 윈도우(기본 24시간)만큼 과거부터
		resumeFrom = nowMs - g.lookback.Milliseconds()
	}

	return &FreshnessDecision{Fresh: false, ResumeFromMs: resumeFrom}, nil
}
