// 저장된 Summary와 새로 집계된 Summary를 병합하는 로직 정의
//
// 병합 규칙 (키가 겹치는 경우):
//   - occurrences: 합
//   - firstSeenMs: min / lastSeenMs: max
//   - sampleMessage: 새쪽 샘플 우선 (없으면 기존 유지)
//   - trendScore: 발생 횟수 가중 평균
//   - revision: 기존 + 1
//
// 한쪽에만 있는 키는 그대로 통과. 입력은 절대 수정하지 않는다.

package service

import "github.com/pulsewatch/backend/internal/model"

// MergeSummaries - 순수 함수. 항상 새 슬라이스를 반환한다.
func MergeSummaries(existing, fresh []model.Summary) []model.Summary {
	if len(existing) == 0 {
		return append([]model.Summary(nil), fresh...)
	}
	if len(fresh) == 0 {
		return append([]model.Summary(nil), existing...)
	}

	merged := make([]model.Summary, 0, len(existing)+len(fresh))
	index := make(map[string]int, len(existing))

	for _, s := range existing {
		index[s.Key()] = len(merged)
		merged = append(merged, s)
	}

	for _, n := range fresh {
		i, ok := index[n.Key()]
		if !ok {
			merged = append(merged, n)
			continue
		}

		e := merged[i]
		total := e.Occurrences + n.Occurrences

		out := e
		out.Revision = e.Revision + 1
		out.Occurrences = total
		if n.FirstSeenMs < out.FirstSeenMs {
			out.FirstSeenMs = n.FirstSeenMs
		}
		if n.LastSeenMs > out.LastSeenMs {
			out.LastSeenMs = n.LastSeenMs
		}
		if n.SampleMessage != "" {
			out.SampleMessage = n.SampleMessage
		}
		if total > 0 {
			out.TrendScore = (e.TrendScore*float64(e.Occurrences) + n.TrendScore*float64(n.Occurrences)) / float64(total)
		}
		merged[i] = out
	}

	return merged
}
