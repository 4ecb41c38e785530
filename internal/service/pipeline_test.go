package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pulsewatch/backend/internal/config"
	"github.com/pulsewatch/backend/internal/model"
)

// ============================================================================
// 파이프라인 테스트용 페이크
// ============================================================================

// fakeStore - Project/Summary/Embedding/Metric/Prediction 저장소를 전부 구현
type fakeStore struct {
	mu sync.Mutex

	project    *model.Project
	projectErr error

	recent         []model.Summary
	recentErr      error
	maxLastSeen    int64
	maxLastSeenErr error

	upserted  [][]model.Summary
	upsertErr error

	watermarks []int64

	embeddings []model.EmbeddingRecord

	snapshots         []model.MetricSnapshot
	snapshotsErr      error
	insertedSnapshots []model.MetricSnapshot

	predictions   []model.PredictionResult
	predictionErr error
	listed        []model.PredictionResult
}

func (f *fakeStore) GetProject(_ context.Context, _ string) (*model.Project, error) {
	if f.projectErr != nil {
		return nil, f.projectErr
	}
	return f.project, nil
}

func (f *fakeStore) UpdateWatermark(_ context.Context, _ string, processedMs int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watermarks = append(f.watermarks, processedMs)
	return nil
}

func (f *fakeStore) GetRecentSummaries(_ context.Context, _ string, _ int64) ([]model.Summary, error) {
	return f.recent, f.recentErr
}

func (f *fakeStore) GetMaxLastSeen(_ context.Context, _ string) (int64, error) {
	return f.maxLastSeen, f.maxLastSeenErr
}

func (f *fakeStore) UpsertSummaries(_ context.Context, summaries []model.Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, summaries)
	return nil
}

func (f *fakeStore) InsertEmbedding(_ context.Context, rec model.EmbeddingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeddings = append(f.embeddings, rec)
	return nil
}

func (f *fakeStore) InsertMetricSnapshots(_ context.Context, snapshots []model.MetricSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertedSnapshots = append(f.insertedSnapshots, snapshots...)
	return nil
}

func (f *fakeStore) GetMetricSnapshots(_ context.Context, _ string, _ int64) ([]model.MetricSnapshot, error) {
	return f.snapshots, f.snapshotsErr
}

func (f *fakeStore) InsertPrediction(_ context.Context, pred model.PredictionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.predictionErr != nil {
		return f.predictionErr
	}
	f.predictions = append(f.predictions, pred)
	return nil
}

func (f *fakeStore) ListPredictions(_ context.Context, _ string, _ int) ([]model.PredictionResult, error) {
	return f.listed, nil
}

// fakeLogClient - 한 페이지짜리 고정 응답 로그 소스
type fakeLogClient struct {
	mu sync.Mutex

	streams []string
	events  []model.RawLogEvent

	fetchCalls int
	gotGroups  []string
	gotStartMs int64
	gotEndMs   int64
}

func (f *fakeLogClient) ListStreams(_ context.Context, _ string) ([]string, error) {
	return f.streams, nil
}

func (f *fakeLogClient) FetchEvents(_ context.Context, group string, startMs, endMs int64, _ string) (*model.LogPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	f.gotGroups = append(f.gotGroups, group)
	f.gotStartMs = startMs
	f.gotEndMs = endMs
	return &model.LogPage{Events: f.events}, nil
}

type fakeMetricFetcher struct{}

func (f *fakeMetricFetcher) FetchAverages(_ context.Context, _ string, _, _ []string, _, _ int64) ([]model.MetricSnapshot, error) {
	return nil, nil
}

// fakeNotifier - 알림을 채널로 흘려 동기화 가능하게 만든 페이크
type fakeNotifier struct {
	configured bool
	alerts     chan model.PredictionResult
}

func (f *fakeNotifier) IsConfigured() bool { return f.configured }

func (f *fakeNotifier) SendHealthAlert(_ string, pred model.PredictionResult) error {
	if f.alerts != nil {
		f.alerts <- pred
	}
	return nil
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		FreshnessWindow:   2 * time.Hour,
		LookbackWindow:    24 * time.Hour,
		MetricWindow:      12 * time.Hour,
		EnrichmentWorkers: 5,
		EmbedTimeout:      time.Second,
		GenerateTimeout:   time.Second,
	}
}

func newTestPipeline(store *fakeStore, logClient *fakeLogClient, notifier *fakeNotifier, gen *fakeGenerator) *PipelineService {
	// typed-nil *fakeNotifier가 non-nil 인터페이스가 되지 않도록 분기
	var healthNotifier HealthNotifier
	if notifier != nil {
		healthNotifier = notifier
	}
	svc := NewPipelineService(PipelineDeps{
		Projects:     store,
		Summaries:    store,
		Embeddings:   store,
		Metrics:      store,
		Predictions:  store,
		LogClient:    logClient,
		MetricClient: &fakeMetricFetcher{},
		Notifier:     healthNotifier,
		Embedder:     &fakeEmbedder{},
		Generator:    gen,
	}, testPipelineConfig(), 10)

	now := time.UnixMilli(1_700_000_000_000)
	svc.now = func() time.Time { return now }
	svc.gate.now = svc.now
	svc.assembler.now = svc.now
	return svc
}

func enabledProject() *model.Project {
	return &model.Project{
		ProjectID: "proj-1",
		Name:      "checkout",
		Enabled:   true,
		LogGroups: []string{"/app/checkout"},
	}
}

// ============================================================================
// RunHealthCheck
// ============================================================================

func TestRunHealthCheckRejectsUnknownProject(t *testing.T) {
	store := &fakeStore{projectErr: pgx.ErrNoRows}
	logClient := &fakeLogClient{}
	svc := newTestPipeline(store, logClient, nil, &fakeGenerator{response: validAssessmentJSON})

	_, err := svc.RunHealthCheck(context.Background(), "missing")
	if !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
	if logClient.fetchCalls != 0 {
		t.Fatalf("log source contacted for unknown project")
	}
}

func TestRunHealthCheckRejectsDisabledProject(t *testing.T) {
	project := enabledProject()
	project.Enabled = false
	store := &fakeStore{project: project}
	logClient := &fakeLogClient{}
	svc := newTestPipeline(store, logClient, nil, &fakeGenerator{response: validAssessmentJSON})

	_, err := svc.RunHealthCheck(context.Background(), "proj-1")
	if !errors.Is(err, ErrProjectDisabled) {
		t.Fatalf("expected ErrProjectDisabled, got %v", err)
	}
	if logClient.fetchCalls != 0 {
		t.Fatalf("log source contacted for disabled project")
	}
}

func TestRunHealthCheckFreshSkipsIngestion(t *testing.T) {
	cached := summaryFixture("api", "Timeout", 5, 0.1)
	store := &fakeStore{project: enabledProject(), recent: []model.Summary{cached}}
	logClient := &fakeLogClient{}
	svc := newTestPipeline(store, logClient, nil, &fakeGenerator{response: validAssessmentJSON})

	report, err := svc.RunHealthCheck(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("RunHealthCheck error: %v", err)
	}
	if logClient.fetchCalls != 0 {
		t.Fatalf("fresh branch must not refetch logs, got %d calls", logClient.fetchCalls)
	}
	if len(store.upserted) != 0 {
		t.Fatalf("fresh branch must not rewrite summaries")
	}
	if len(store.watermarks) != 0 {
		t.Fatalf("fresh branch must not advance watermark")
	}
	if len(store.predictions) != 1 {
		t.Fatalf("expected prediction persisted, got %d", len(store.predictions))
	}
	if len(report.FailingComponents) == 0 {
		t.Fatalf("expected report built from cached summaries")
	}
}

func TestRunHealthCheckStaleIngestsAndPersists(t *testing.T) {
	store := &fakeStore{project: enabledProject(), maxLastSeen: 1_699_990_000_000}
	logClient := &fakeLogClient{events: []model.RawLogEvent{
		{StreamID: "/prod/checkout-service/i-1", TimestampMs: 1_699_995_000_000, Message: "NullPointerException in cart"},
		{StreamID: "/prod/checkout-service/i-1", TimestampMs: 1_699_996_000_000, Message: "NullPointerException in cart"},
		{StreamID: "/prod/checkout-service/i-1", TimestampMs: 1_699_997_000_000, Message: "user browsed catalog"},
	}}
	svc := newTestPipeline(store, logClient, nil, &fakeGenerator{response: validAssessmentJSON})

	report, err := svc.RunHealthCheck(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("RunHealthCheck error: %v", err)
	}

	if logClient.fetchCalls != 1 {
		t.Fatalf("fetch calls = %d, want 1", logClient.fetchCalls)
	}
	if logClient.gotStartMs != 1_699_990_000_000 {
		t.Fatalf("fetch started at %d, want watermark", logClient.gotStartMs)
	}
	if logClient.gotGroups[0] != "/app/checkout" {
		t.Fatalf("fetched group = %q", logClient.gotGroups[0])
	}

	// 신호 2건만 집계 (잡음 1건 제외)
	if len(store.upserted) != 1 || len(store.upserted[0]) != 1 {
		t.Fatalf("upserted = %+v", store.upserted)
	}
	if store.upserted[0][0].Occurrences != 2 {
		t.Fatalf("occurrences = %d, want 2", store.upserted[0][0].Occurrences)
	}

	if len(store.watermarks) != 1 || store.watermarks[0] != svc.now().UnixMilli() {
		t.Fatalf("watermarks = %v", store.watermarks)
	}
	if len(store.embeddings) != 1 {
		t.Fatalf("embeddings persisted = %d, want 1", len(store.embeddings))
	}
	if len(store.predictions) != 1 {
		t.Fatalf("predictions persisted = %d, want 1", len(store.predictions))
	}
	if report.Prediction == nil || report.Prediction.RiskLevel != model.RiskHigh {
		t.Fatalf("report prediction = %+v", report.Prediction)
	}
}

func TestRunHealthCheckSurvivesPersistenceFailure(t *testing.T) {
	store := &fakeStore{
		project:       enabledProject(),
		upsertErr:     errors.New("db down"),
		predictionErr: errors.New("db down"),
	}
	logClient := &fakeLogClient{events: []model.RawLogEvent{
		{StreamID: "/prod/api/i-1", TimestampMs: 1_699_995_000_000, Message: "error: boom"},
	}}
	svc := newTestPipeline(store, logClient, nil, &fakeGenerator{response: validAssessmentJSON})

	report, err := svc.RunHealthCheck(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("persistence failure must not fail the run: %v", err)
	}
	if report == nil || len(report.FailingComponents) == 0 {
		t.Fatalf("expected full report despite storage errors")
	}
}

func TestRunHealthCheckFallsBackWhenAIUnavailable(t *testing.T) {
	store := &fakeStore{project: enabledProject()}
	logClient := &fakeLogClient{events: []model.RawLogEvent{
		{StreamID: "/prod/api/i-1", TimestampMs: 1_699_995_000_000, Message: "error: boom"},
	}}
	svc := newTestPipeline(store, logClient, nil, &fakeGenerator{err: errors.New("model overloaded")})

	report, err := svc.RunHealthCheck(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("RunHealthCheck error: %v", err)
	}
	if report.Prediction.RiskLevel != model.RiskMedium {
		t.Fatalf("riskLevel = %q, want fallback MEDIUM", report.Prediction.RiskLevel)
	}
	if report.Prediction.RootCause != "Unable to perform AI analysis" {
		t.Fatalf("rootCause = %q", report.Prediction.RootCause)
	}
}

func TestRunHealthCheckNotifiesOnHighRisk(t *testing.T) {
	store := &fakeStore{project: enabledProject(), recent: []model.Summary{summaryFixture("api", "Timeout", 5, 0.1)}}
	notifier := &fakeNotifier{configured: true, alerts: make(chan model.PredictionResult, 1)}
	svc := newTestPipeline(store, &fakeLogClient{}, notifier, &fakeGenerator{response: validAssessmentJSON})

	if _, err := svc.RunHealthCheck(context.Background(), "proj-1"); err != nil {
		t.Fatalf("RunHealthCheck error: %v", err)
	}

	select {
	case pred := <-notifier.alerts:
		if pred.RiskLevel != model.RiskHigh {
			t.Fatalf("alert riskLevel = %q", pred.RiskLevel)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected health alert for HIGH prediction")
	}
}

func TestRunHealthCheckSkipsNotifyOnFallbackRisk(t *testing.T) {
	store := &fakeStore{project: enabledProject(), recent: []model.Summary{summaryFixture("api", "Timeout", 5, 0.1)}}
	notifier := &fakeNotifier{configured: true, alerts: make(chan model.PredictionResult, 1)}
	svc := newTestPipeline(store, &fakeLogClient{}, notifier, &fakeGenerator{err: errors.New("down")})

	if _, err := svc.RunHealthCheck(context.Background(), "proj-1"); err != nil {
		t.Fatalf("RunHealthCheck error: %v", err)
	}

	select {
	case pred := <-notifier.alerts:
		t.Fatalf("unexpected alert for MEDIUM prediction: %+v", pred)
	case <-time.After(100 * time.Millisecond):
	}
}

// ============================================================================
// ProcessLogs
// ============================================================================

func TestProcessLogsCountsAndPersists(t *testing.T) {
	store := &fakeStore{project: enabledProject()}
	logClient := &fakeLogClient{events: []model.RawLogEvent{
		{StreamID: "/prod/api/i-1", TimestampMs: 1_699_995_000_000, Message: "NullPointerException in cart"},
		{StreamID: "/prod/api/i-1", TimestampMs: 1_699_996_000_000, Message: "WARN retry scheduled"},
		{StreamID: "/prod/api/i-1", TimestampMs: 1_699_997_000_000, Message: "user browsed catalog"},
	}}
	svc := newTestPipeline(store, logClient, nil, &fakeGenerator{err: errors.New("down")})

	result, err := svc.ProcessLogs(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("ProcessLogs error: %v", err)
	}

	if result.TotalCount != 2 {
		t.Fatalf("totalCount = %d, want 2 (noise filtered)", result.TotalCount)
	}
	if result.ErrorCount != 1 || result.WarningCount != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", result.ErrorCount, result.WarningCount)
	}
	if result.SummariesCreated != 2 {
		t.Fatalf("summariesCreated = %d, want 2", result.SummariesCreated)
	}
	if result.EmbeddingsCreated != 2 {
		t.Fatalf("embeddingsCreated = %d, want 2", result.EmbeddingsCreated)
	}
	if len(result.TopSummaries) != 2 {
		t.Fatalf("topSummaries = %d, want 2", len(result.TopSummaries))
	}

	// AI 실패 → 결정적 내러티브
	want := "Processed 2 log events (1 errors, 1 warnings) into 2 incident summaries."
	if result.Narrative != want {
		t.Fatalf("narrative = %q, want %q", result.Narrative, want)
	}

	if len(store.upserted) != 1 {
		t.Fatalf("summaries not persisted")
	}
	if len(store.watermarks) != 1 {
		t.Fatalf("watermark not advanced")
	}
	if len(store.embeddings) != 2 {
		t.Fatalf("embeddings persisted = %d, want 2", len(store.embeddings))
	}
}

func TestProcessLogsUsesAINarrativeWhenAvailable(t *testing.T) {
	store := &fakeStore{project: enabledProject()}
	logClient := &fakeLogClient{events: []model.RawLogEvent{
		{StreamID: "/prod/api/i-1", TimestampMs: 1_699_995_000_000, Message: "error: boom"},
	}}
	gen := &fakeGenerator{response: "Checkout is degrading due to repeated errors."}
	svc := newTestPipeline(store, logClient, nil, gen)

	result, err := svc.ProcessLogs(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("ProcessLogs error: %v", err)
	}
	if result.Narrative != "Checkout is degrading due to repeated errors." {
		t.Fatalf("narrative = %q", result.Narrative)
	}
	if !strings.Contains(gen.gotPrompt, "proj-1") {
		t.Fatalf("narrative prompt missing project id:\n%s", gen.gotPrompt)
	}
}

func TestProcessLogsFallsBackToLookbackOnWatermarkError(t *testing.T) {
	store := &fakeStore{project: enabledProject(), maxLastSeenErr: errors.New("db down")}
	logClient := &fakeLogClient{events: []model.RawLogEvent{
		{StreamID: "/prod/api/i-1", TimestampMs: 1_699_995_000_000, Message: "error: boom"},
	}}
	svc := newTestPipeline(store, logClient, nil, &fakeGenerator{err: errors.New("down")})

	if _, err := svc.ProcessLogs(context.Background(), "proj-1"); err != nil {
		t.Fatalf("watermark failure must not fail the run: %v", err)
	}

	want := svc.now().UnixMilli() - (24 * time.Hour).Milliseconds()
	if logClient.gotStartMs != want {
		t.Fatalf("fetch started at %d, want lookback start %d", logClient.gotStartMs, want)
	}
}

func TestProcessLogsRejectsDisabledProject(t *testing.T) {
	project := enabledProject()
	project.Enabled = false
	store := &fakeStore{project: project}
	svc := newTestPipeline(store, &fakeLogClient{}, nil, &fakeGenerator{})

	if _, err := svc.ProcessLogs(context.Background(), "proj-1"); !errors.Is(err, ErrProjectDisabled) {
		t.Fatalf("expected ErrProjectDisabled, got %v", err)
	}
}

// ============================================================================
// ListPredictions / 로그 그룹 해석
// ============================================================================

func TestListPredictionsChecksProject(t *testing.T) {
	store := &fakeStore{projectErr: pgx.ErrNoRows}
	svc := newTestPipeline(store, &fakeLogClient{}, nil, &fakeGenerator{})

	if _, err := svc.ListPredictions(context.Background(), "missing", 20); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}

	store = &fakeStore{project: enabledProject(), listed: []model.PredictionResult{{PredictionID: "p1"}}}
	svc = newTestPipeline(store, &fakeLogClient{}, nil, &fakeGenerator{})

	got, err := svc.ListPredictions(context.Background(), "proj-1", 20)
	if err != nil {
		t.Fatalf("ListPredictions error: %v", err)
	}
	if len(got) != 1 || got[0].PredictionID != "p1" {
		t.Fatalf("predictions = %+v", got)
	}
}

func TestResolveLogGroups(t *testing.T) {
	svc := newTestPipeline(&fakeStore{}, &fakeLogClient{streams: []string{"/app/checkout/web", "/app/checkout/worker"}}, nil, &fakeGenerator{})

	// 설정된 그룹이 우선
	project := enabledProject()
	got := svc.resolveLogGroups(context.Background(), project)
	if len(got) != 1 || got[0] != "/app/checkout" {
		t.Fatalf("configured groups not used: %v", got)
	}

	// 설정이 없으면 prefix 탐색
	project.LogGroups = nil
	got = svc.resolveLogGroups(context.Background(), project)
	if len(got) != 2 {
		t.Fatalf("discovered groups = %v", got)
	}

	// 탐색도 비면 기본 그룹
	svc = newTestPipeline(&fakeStore{}, &fakeLogClient{}, nil, &fakeGenerator{})
	got = svc.resolveLogGroups(context.Background(), project)
	if len(got) != 1 || got[0] != defaultLogGroup {
		t.Fatalf("default group not used: %v", got)
	}
}

func TestSummaryCounts(t *testing.T) {
	warn := summaryFixture("api", "WarnThing", 4, 0)
	warn.Severity = "WARN"

	total, errs, warns := summaryCounts([]model.Summary{
		summaryFixture("api", "Timeout", 6, 0),
		warn,
	})
	if total != 10 || errs != 6 || warns != 4 {
		t.Fatalf("counts = %d/%d/%d, want 10/6/4", total, errs, warns)
	}
}
