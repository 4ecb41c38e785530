// 헬스체크 파이프라인 오케스트레이션 정의
//
// 처리 흐름 (RunHealthCheck):
//  1. 프로젝트 설정 확인 (없거나 비활성이면 즉시 거부 - 유일한 fatal 에러)
//  2. 신선도 게이트 판정 → FRESH / STALE 두 브랜치
//     - FRESH: 캐시된 Summary로 바로 진행
//     - STALE: 로그 그룹별 수집 → 정규화 → 집계 → 병합
//  3. [임베딩 강화 ∥ 리스크 평가] 동시 실행 후 join
//  4. 예측 계산 → 저장 (best-effort) → 리포트 조립
//  5. 리포트 반환 후 백그라운드 메트릭 수집 태스크 기동 (fire-and-forget)
//
// 로그 그룹 하나의 실패, 임베딩 하나의 실패, AI 호출 실패, 저장 실패는
// 전부 로그만 남기고 진행한다. 호출자에게 에러로 전파되는 것은
// ErrProjectNotFound / ErrProjectDisabled 뿐이다.

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pulsewatch/backend/internal/config"
	"github.com/pulsewatch/backend/internal/model"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrProjectDisabled = errors.New("project disabled")
)

// 자동 탐색까지 실패했을 때 쓰는 최종 기본 로그 그룹
const defaultLogGroup = "/app/default"

// 백그라운드 수집 태스크가 요청하는 기본 메트릭 세트
var defaultMetricNames = []string{"cpu_utilization", "memory_utilization", "request_latency"}

// ProjectStore - 프로젝트 설정 + 워터마크
type ProjectStore interface {
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	UpdateWatermark(ctx context.Context, projectID string, processedMs int64) error
}

// SummaryStore - Summary 저장/조회
type SummaryStore interface {
	SummaryReader
	UpsertSummaries(ctx context.Context, summaries []model.Summary) error
}

type EmbeddingStore interface {
	InsertEmbedding(ctx context.Context, rec model.EmbeddingRecord) error
}

type MetricStore interface {
	InsertMetricSnapshots(ctx context.Context, snapshots []model.MetricSnapshot) error
	GetMetricSnapshots(ctx context.Context, projectID string, sinceMs int64) ([]model.MetricSnapshot, error)
}

type PredictionStore interface {
	InsertPrediction(ctx context.Context, pred model.PredictionResult) error
	ListPredictions(ctx context.Context, projectID string, limit int) ([]model.PredictionResult, error)
}

// LogFetcher - 외부 로그 소스 능력
type LogFetcher interface {
	ListStreams(ctx context.Context, prefix string) ([]string, error)
	FetchEvents(ctx context.Context, group string, startMs, endMs int64, pageToken string) (*model.LogPage, error)
}

// MetricFetcher - 외부 메트릭 소스 능력
type MetricFetcher interface {
	FetchAverages(ctx context.Context, projectID string, components, metricNames []string, startMs, endMs int64) ([]model.MetricSnapshot, error)
}

// HealthNotifier - HIGH/CRITICAL 예측 알림 채널 (옵션)
type HealthNotifier interface {
	IsConfigured() bool
	SendHealthAlert(projectID string, pred model.PredictionResult) error
}

type PipelineService struct {
	projects    ProjectStore
	summaries   SummaryStore
	embeddings  EmbeddingStore
	metrics     MetricStore
	predictions PredictionStore

	logClient    LogFetcher
	metricClient MetricFetcher
	notifier     HealthNotifier
	generator    TextGenerator

	norm      *Normalizer
	agg       *Aggregator
	gate      *FreshnessGate
	pool      *EnrichmentPool
	assessor  *RiskAssessor
	predictor *Predictor
	assembler *ReportAssembler

	cfg      config.PipelineConfig
	maxPages int
	now      func() time.Time
}

// PipelineDeps - 생성자 인자 묶음
type PipelineDeps struct {
	Projects    ProjectStore
	Summaries   SummaryStore
	Embeddings  EmbeddingStore
	Metrics     MetricStore
	Predictions PredictionStore

	LogClient    LogFetcher
	MetricClient MetricFetcher
	Notifier     HealthNotifier
	Embedder     TextEmbedder
	Generator    TextGenerator
}

func NewPipelineService(deps PipelineDeps, cfg config.PipelineConfig, maxPages int) *PipelineService {
	norm := NewNormalizer()
	if maxPages <= 0 {
		maxPages = 10
	}
	return &PipelineService{
		projects:     deps.Projects,
		summaries:    deps.Summaries,
		embeddings:   deps.Embeddings,
		metrics:      deps.Metrics,
		predictions:  deps.Predictions,
		logClient:    deps.LogClient,
		metricClient: deps.MetricClient,
		notifier:     deps.Notifier,
		generator:    deps.Generator,
		norm:         norm,
		agg:          NewAggregator(norm),
		gate:         NewFreshnessGate(deps.Summaries, cfg.FreshnessWindow, cfg.LookbackWindow),
		pool:         NewEnrichmentPool(deps.Embedder, cfg.EnrichmentWorkers, cfg.EmbedTimeout),
		assessor:     NewRiskAssessor(deps.Generator, cfg.GenerateTimeout),
		predictor:    NewPredictor(),
		assembler:    NewReportAssembler(),
		cfg:          cfg,
		maxPages:     maxPages,
		now:          time.Now,
	}
}

// RunHealthCheck - 헬스체크 1회 실행
func (s *PipelineService) RunHealthCheck(ctx context.Context, projectID string) (*model.HealthReport, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	decision, err := s.gate.Decide(ctx, projectID)
	if err != nil {
		// 저장소 조회 실패는 fatal이 아님 - lookback 전체를 다시 수집
		log.Printf("Freshness gate failed, falling back to full lookback (project_id=%s): %v", projectID, err)
		decision = &FreshnessDecision{ResumeFromMs: s.now().UnixMilli() - s.cfg.LookbackWindow.Milliseconds()}
	}

	var merged []model.Summary
	var windowEndMs int64
	if decision.Fresh {
		merged = s.runFresh(decision)
	} else {
		merged, windowEndMs = s.runStale(ctx, project, decision)
	}

	metricSince := s.now().Add(-s.cfg.MetricWindow).UnixMilli()
	metricSnapshots, err := s.metrics.GetMetricSnapshots(ctx, projectID, metricSince)
	if err != nil {
		log.Printf("Failed to load metric snapshots, continuing without (project_id=%s): %v", projectID, err)
		metricSnapshots = nil
	}

	// 임베딩 강화와 리스크 평가는 서로 의존하지 않으므로 동시 실행
	// (평가 품질을 위한 패턴 통계는 Summary에서 직접 유도한다)
	var wg sync.WaitGroup
	var embeddingRecords []model.EmbeddingRecord
	var assessment model.RiskAssessment
	wg.Add(2)
	go func() {
		defer wg.Done()
		embeddingRecords = s.pool.Enrich(ctx, merged)
	}()
	go func() {
		defer wg.Done()
		assessment = s.assessor.Assess(ctx, merged, nil, metricSnapshots)
	}()
	wg.Wait()

	logCount, errorCount, warningCount := summaryCounts(merged)
	prediction := s.predictor.BuildPrediction(projectID, assessment, merged, metricSnapshots, logCount, errorCount, warningCount)

	s.persistRun(ctx, projectID, merged, embeddingRecords, prediction, decision.Fresh, windowEndMs)

	if s.notifier != nil && s.notifier.IsConfigured() &&
		(prediction.RiskLevel == model.RiskHigh || prediction.RiskLevel == model.RiskCritical) {
		go func() {
			if err := s.notifier.SendHealthAlert(projectID, prediction); err != nil {
				log.Printf("Failed to send health alert (project_id=%s): %v", projectID, err)
			}
		}()
	}

	// 다음 헬스체크를 위한 메트릭 수집 (fire-and-forget)
	go s.collectMetrics(project)

	return s.assembler.Assemble(projectID, merged, metricSnapshots, assessment, &prediction), nil
}

// runFresh - 캐시된 Summary만 사용하는 브랜치 (재수집 생략)
func (s *PipelineService) runFresh(decision *FreshnessDecision) []model.Summary {
	log.Printf("Summaries are fresh, skipping ingestion (cached=%d)", len(decision.Cached))
	return decision.Cached
}

// runStale - 워터마크부터 재수집하는 브랜치
func (s *PipelineService) runStale(ctx context.Context, project *model.Project, decision *FreshnessDecision) ([]model.Summary, int64) {
	windowEndMs := s.now().UnixMilli()
	events := s.fetchFilteredEvents(ctx, project, decision.ResumeFromMs, windowEndMs)
	fresh := s.agg.Aggregate(project.ProjectID, events)

	log.Printf("Ingested logs (project_id=%s, events=%d, new_summaries=%d, window=[%d,%d])",
		project.ProjectID, len(events), len(fresh), decision.ResumeFromMs, windowEndMs)

	return MergeSummaries(decision.Cached, fresh), windowEndMs
}

// persistRun - 실행 결과 write-back (전부 best-effort)
// 저장 실패는 다음 실행의 신선도 판정에만 영향을 주고 이번 리포트는 그대로 반환된다
func (s *PipelineService) persistRun(ctx context.Context, projectID string, merged []model.Summary, records []model.EmbeddingRecord, prediction model.PredictionResult, fresh bool, windowEndMs int64) {
	if !fresh {
		if err := s.summaries.UpsertSummaries(ctx, merged); err != nil {
			log.Printf("Failed to persist summaries (project_id=%s): %v", projectID, err)
		}
		if windowEndMs > 0 {
			if err := s.projects.UpdateWatermark(ctx, projectID, windowEndMs); err != nil {
				log.Printf("Failed to update watermark (project_id=%s): %v", projectID, err)
			}
		}
	}

	for _, rec := range records {
		if err := s.embeddings.InsertEmbedding(ctx, rec); err != nil {
			log.Printf("Failed to persist embedding (embedding_id=%s): %v", rec.EmbeddingID, err)
		}
	}

	if err := s.predictions.InsertPrediction(ctx, prediction); err != nil {
		log.Printf("Failed to persist prediction (project_id=%s): %v", projectID, err)
	}
}

// ProcessLogs - 로그 수집/집계만 수행하고 결과 통계 + AI 내러티브 반환
func (s *PipelineService) ProcessLogs(ctx context.Context, projectID string) (*model.ProcessLogsResult, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	nowMs := s.now().UnixMilli()
	resumeFrom, err := s.summaries.GetMaxLastSeen(ctx, projectID)
	if err != nil {
		log.Printf("Failed to load ingestion watermark, falling back to full lookback (project_id=%s): %v", projectID, err)
		resumeFrom = 0
	}
	if resumeFrom == 0 {
		resumeFrom = nowMs - s.cfg.LookbackWindow.Milliseconds()
	}

	events := s.fetchFilteredEvents(ctx, project, resumeFrom, nowMs)
	fresh := s.agg.Aggregate(projectID, events)

	freshnessSince := nowMs - s.cfg.FreshnessWindow.Milliseconds()
	existing, err := s.summaries.GetRecentSummaries(ctx, projectID, freshnessSince)
	if err != nil {
		log.Printf("Failed to load existing summaries, merging against empty set (project_id=%s): %v", projectID, err)
		existing = nil
	}
	merged := MergeSummaries(existing, fresh)

	if err := s.summaries.UpsertSummaries(ctx, merged); err != nil {
		log.Printf("Failed to persist summaries (project_id=%s): %v", projectID, err)
	}
	if err := s.projects.UpdateWatermark(ctx, projectID, nowMs); err != nil {
		log.Printf("Failed to update watermark (project_id=%s): %v", projectID, err)
	}

	records := s.pool.Enrich(ctx, merged)
	for _, rec := range records {
		if err := s.embeddings.InsertEmbedding(ctx, rec); err != nil {
			log.Printf("Failed to persist embedding (embedding_id=%s): %v", rec.EmbeddingID, err)
		}
	}

	var errorEvents, warningEvents int
	for _, e := range events {
		if s.norm.Severity(e.Message) == model.SeverityError {
			errorEvents++
		} else {
			warningEvents++
		}
	}

	return &model.ProcessLogsResult{
		ProjectID:         projectID,
		TotalCount:        len(events),
		ErrorCount:        errorEvents,
		WarningCount:      warningEvents,
		SummariesCreated:  len(fresh),
		EmbeddingsCreated: len(records),
		Narrative:         s.buildNarrative(ctx, projectID, len(events), errorEvents, warningEvents, merged),
		TopSummaries:      topSummariesByOccurrence(merged, 10),
	}, nil
}

// ListPredictions - 저장된 예측 이력 조회 (핸들러용 passthrough)
func (s *PipelineService) ListPredictions(ctx context.Context, projectID string, limit int) ([]model.PredictionResult, error) {
	if _, err := s.loadProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.predictions.ListPredictions(ctx, projectID, limit)
}

// loadProject - 설정 확인. 여기서 나는 에러만 호출자에게 전파된다.
func (s *PipelineService) loadProject(ctx context.Context, projectID string) (*model.Project, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
		}
		return nil, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}
	if !project.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrProjectDisabled, projectID)
	}
	return project, nil
}

// fetchFilteredEvents - 로그 그룹별 순차 수집 + 필터링
// 그룹 하나의 실패는 격리된다 (해당 그룹만 0건 기여)
func (s *PipelineService) fetchFilteredEvents(ctx context.Context, project *model.Project, startMs, endMs int64) []model.FilteredLogEvent {
	var filtered []model.FilteredLogEvent

	for _, group := range s.resolveLogGroups(ctx, project) {
		pageToken := ""
		for page := 0; page < s.maxPages; page++ {
			logPage, err := s.logClient.FetchEvents(ctx, group, startMs, endMs, pageToken)
			if err != nil {
				log.Printf("Failed to fetch log group, skipping (group=%s): %v", group, err)
				break
			}

			for _, e := range logPage.Events {
				if s.norm.IsSignal(e.Message) {
					filtered = append(filtered, model.FilteredLogEvent(e))
				}
			}

			pageToken = logPage.NextPageToken
			if pageToken == "" {
				break
			}
		}
	}

	return filtered
}

// resolveLogGroups - 설정 → prefix 자동 탐색 → 하드코딩 기본값 순서
func (s *PipelineService) resolveLogGroups(ctx context.Context, project *model.Project) []string {
	if len(project.LogGroups) > 0 {
		return project.LogGroups
	}

	discovered, err := s.logClient.ListStreams(ctx, "/app/"+project.Name)
	if err != nil {
		log.Printf("Stream discovery failed (project_id=%s): %v", project.ProjectID, err)
	}
	if len(discovered) > 0 {
		return discovered
	}

	return []string{defaultLogGroup}
}

// collectMetrics - 다음 헬스체크를 위한 메트릭 스냅샷 적재
// 동기 경로와 순서 의존성이 없고 실패해도 호출자에게 드러나지 않는다
func (s *PipelineService) collectMetrics(project *model.Project) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	components := project.Components
	if len(components) == 0 {
		components = []string{"all"}
	}

	endMs := s.now().UnixMilli()
	startMs := endMs - time.Hour.Milliseconds()

	snapshots, err := s.metricClient.FetchAverages(ctx, project.ProjectID, components, defaultMetricNames, startMs, endMs)
	if err != nil {
		log.Printf("Background metric collection failed (project_id=%s): %v", project.ProjectID, err)
		return
	}
	if len(snapshots) == 0 {
		return
	}

	if err := s.metrics.InsertMetricSnapshots(ctx, snapshots); err != nil {
		log.Printf("Failed to store metric snapshots (project_id=%s): %v", project.ProjectID, err)
		return
	}
	log.Printf("Collected metric snapshots (project_id=%s, count=%d)", project.ProjectID, len(snapshots))
}

// buildNarrative - 처리 결과 요약 내러티브 (AI 실패 시 결정적 문장)
func (s *PipelineService) buildNarrative(ctx context.Context, projectID string, total, errorEvents, warningEvents int, merged []model.Summary) string {
	fallback := fmt.Sprintf("Processed %d log events (%d errors, %d warnings) into %d incident summaries.",
		total, errorEvents, warningEvents, len(merged))

	if s.generator == nil || len(merged) == 0 {
		return fallback
	}

	var b []string
	for _, sum := range topSummariesByOccurrence(merged, 5) {
		b = append(b, fmt.Sprintf("%s/%s (%s, %d occurrences)", sum.Component, sum.ErrorSignature, sum.Severity, sum.Occurrences))
	}
	prompt := fmt.Sprintf(
		"Summarize the current log health of project %s in 2-3 sentences for an operations dashboard. "+
			"%d events processed (%d errors, %d warnings). Top incidents: %v",
		projectID, total, errorEvents, warningEvents, b)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerateTimeout)
	defer cancel()

	narrative, err := s.generator.GenerateText(callCtx, prompt)
	if err != nil {
		log.Printf("Narrative generation failed, using fallback (project_id=%s): %v", projectID, err)
		return fallback
	}
	return narrative
}

func summaryCounts(summaries []model.Summary) (logCount, errorCount, warningCount int) {
	for _, s := range summaries {
		logCount += s.Occurrences
		if s.Severity == model.SeverityError {
			errorCount += s.Occurrences
		} else {
			warningCount += s.Occurrences
		}
	}
	return logCount, errorCount, warningCount
}

func topSummariesByOccurrence(summaries []model.Summary, limit int) []model.Summary {
	sorted := make([]model.Summary, len(summaries))
	copy(sorted, summaries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Occurrences > sorted[j].Occurrences })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
