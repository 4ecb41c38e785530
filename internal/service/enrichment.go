// Summary를 임베딩 벡터로 강화하는 풀 정의
//
// 고정 개수의 워커(기본 5)로 임베딩 호출을 팬아웃하고 전부 join한 뒤 반환한다.
// 개별 호출 실패/타임아웃은 로그만 남기고 해당 Summary를 결과에서 제외한다.
// 강화 실패는 절대 파이프라인을 중단시키지 않는다.
//
// 전체 소요 시간 상한: timeout × ceil(N/워커수)

package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pulsewatch/backend/internal/model"
	"golang.org/x/sync/errgroup"
)

const maxCondensedLen = 200

// TextEmbedder - 외부 임베딩 서비스 능력
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, string, error)
}

type EnrichmentPool struct {
	embedder TextEmbedder
	workers  int
	timeout  time.Duration
}

func NewEnrichmentPool(embedder TextEmbedder, workers int, timeout time.Duration) *EnrichmentPool {
	if workers <= 0 {
		workers = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EnrichmentPool{embedder: embedder, workers: workers, timeout: timeout}
}

// Enrich - Summary 배치를 EmbeddingRecord 집합으로 변환
// 결과 순서는 입력 순서를 따르며, 실패한 Summary 자리는 건너뛴다
func (p *EnrichmentPool) Enrich(ctx context.Context, summaries []model.Summary) []model.EmbeddingRecord {
	if len(summaries) == 0 {
		return nil
	}

	results := make([]*model.EmbeddingRecord, len(summaries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, s := range summaries {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, p.timeout)
			defer cancel()

			condensed := CondenseSummary(s)
			vector, modelName, err := p.embedder.EmbedText(callCtx, condensed)
			if err != nil {
				log.Printf("Failed to embed summary, skipping (summary_id=%s): %v", s.SummaryID, err)
				return nil
			}

			results[i] = &model.EmbeddingRecord{
				ProjectID:       s.ProjectID,
				EmbeddingID:     s.SummaryID + "#emb",
				SummaryID:       s.SummaryID,
				Vector:          vector,
				SourceSignature: s.ErrorSignature,
				Severity:        s.Severity,
				Occurrences:     s.Occurrences,
				CondensedText:   condensed,
				Model:           modelName,
			}
			return nil
		})
	}

	// 워커는 에러를 삼키므로 Wait는 항상 nil
	_ = g.Wait()

	records := make([]model.EmbeddingRecord, 0, len(summaries))
	for _, r := range results {
		if r != nil {
			records = append(records, *r)
		}
	}
	return records
}

// CondenseSummary - 임베딩 입력용 압축 설명 (200자 제한)
func CondenseSummary(s model.Summary) string {
	text := fmt.Sprintf("[%s] %s: %s occurred %d times. sample: %s",
		s.Severity, s.Component, s.ErrorSignature, s.Occurrences, s.SampleMessage)
	return truncate(text, maxCondensedLen)
}
