package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domain "github.com/danielpmchugh/chess-pattern-analyzer/internal/domain/analysis"
	"github.com/danielpmchugh/chess-pattern-analyzer/internal/engine/analyzer"
	errs "github.com/danielpmchugh/chess-pattern-analyzer/internal/errors"
)

type fakeAnalyzer struct {
	calls []string
	fail  error
	skip  string
}

func (f *fakeAnalyzer) AnalyzeGame(ctx context.Context, pgnText string) (domain.GameReport, error) {
	f.calls = append(f.calls, pgnText)
	if f.fail != nil {
		return domain.GameReport{}, f.fail
	}
	return domain.GameReport{GameID: analyzer.GameID(pgnText)}, nil
}

func (f *fakeAnalyzer) AnalyzeBatch(ctx context.Context, pgnTexts []string, progress func(done, total int)) []domain.GameReport {
	reports := make([]domain.GameReport, 0, len(pgnTexts))
	for i, pgn := range pgnTexts {
		f.calls = append(f.calls, pgn)
		if pgn != f.skip {
			reports = append(reports, domain.GameReport{GameID: analyzer.GameID(pgn)})
		}
		if progress != nil {
			progress(i+1, len(pgnTexts))
		}
	}
	return reports
}

type fakeStore struct {
	reports map[string]*domain.GameReport
	saved   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{reports: make(map[string]*domain.GameReport)}
}

func (f *fakeStore) Save(ctx context.Context, report *domain.GameReport) error {
	f.reports[report.GameID] = report
	f.saved++
	return nil
}

func (f *fakeStore) Get(ctx context.Context, gameID string) (*domain.GameReport, error) {
	if r, ok := f.reports[gameID]; ok {
		return r, nil
	}
	return nil, errs.ErrGameNotFound
}

type fakeSource struct {
	pgns []string
	err  error
}

func (f *fakeSource) FetchGames(ctx context.Context, username string, year, month int) ([]string, error) {
	return f.pgns, f.err
}

func newUseCase(ga GameAnalyzer, store ReportStore, src GameSource) *AnalysisUseCase {
	return NewAnalysisUseCase(zap.NewNop().Sugar(), ga, store, src)
}

func TestAnalyzeGameCachesResult(t *testing.T) {
	ga := &fakeAnalyzer{}
	store := newFakeStore()
	uc := newUseCase(ga, store, &fakeSource{})

	const pgn = "1. e4 e5 *"
	first, err := uc.AnalyzeGame(context.Background(), pgn)
	require.NoError(t, err)

	second, err := uc.AnalyzeGame(context.Background(), pgn)
	require.NoError(t, err)

	assert.Equal(t, first.GameID, second.GameID)
	assert.Len(t, ga.calls, 1, "second call must be served from cache")
	assert.Equal(t, 1, store.saved)
}

func TestAnalyzeGamePropagatesFailure(t *testing.T) {
	ga := &fakeAnalyzer{fail: errs.ErrAnalysisFailed}
	store := newFakeStore()
	uc := newUseCase(ga, store, &fakeSource{})

	_, err := uc.AnalyzeGame(context.Background(), "1. e4 *")

	assert.ErrorIs(t, err, errs.ErrAnalysisFailed)
	assert.Equal(t, 0, store.saved)
}

func TestAnalyzeBatchSkipsCachedGames(t *testing.T) {
	ga := &fakeAnalyzer{}
	store := newFakeStore()
	uc := newUseCase(ga, store, &fakeSource{})

	cached := domain.GameReport{GameID: analyzer.GameID("1. e4 *")}
	require.NoError(t, store.Save(context.Background(), &cached))

	var steps []int
	reports := uc.AnalyzeBatch(context.Background(), []string{"1. e4 *", "1. d4 *"}, func(done, total int) {
		assert.Equal(t, 2, total)
		steps = append(steps, done)
	})

	assert.Len(t, reports, 2)
	assert.Len(t, ga.calls, 1, "only the uncached game is analyzed")
	assert.Equal(t, []int{1, 2}, steps)
}

func TestAnalyzeBatchPreservesInputOrder(t *testing.T) {
	ga := &fakeAnalyzer{}
	store := newFakeStore()
	uc := newUseCase(ga, store, &fakeSource{})

	// The middle game is already cached; its report must not jump ahead.
	cached := domain.GameReport{GameID: analyzer.GameID("1. d4 *")}
	require.NoError(t, store.Save(context.Background(), &cached))

	reports := uc.AnalyzeBatch(context.Background(), []string{"1. e4 *", "1. d4 *", "1. c4 *"}, nil)

	require.Len(t, reports, 3)
	assert.Equal(t, analyzer.GameID("1. e4 *"), reports[0].GameID)
	assert.Equal(t, analyzer.GameID("1. d4 *"), reports[1].GameID)
	assert.Equal(t, analyzer.GameID("1. c4 *"), reports[2].GameID)
}

func TestAnalyzeBatchOmitsFailedGames(t *testing.T) {
	ga := &fakeAnalyzer{skip: "not a game"}
	store := newFakeStore()
	uc := newUseCase(ga, store, &fakeSource{})

	cached := domain.GameReport{GameID: analyzer.GameID("1. d4 *")}
	require.NoError(t, store.Save(context.Background(), &cached))

	reports := uc.AnalyzeBatch(context.Background(), []string{"1. e4 *", "not a game", "1. d4 *"}, nil)

	require.Len(t, reports, 2)
	assert.Equal(t, analyzer.GameID("1. e4 *"), reports[0].GameID)
	assert.Equal(t, analyzer.GameID("1. d4 *"), reports[1].GameID)
}

func TestAnalyzePlayerMonth(t *testing.T) {
	ga := &fakeAnalyzer{}
	store := newFakeStore()
	src := &fakeSource{pgns: []string{"1. e4 *", "1. d4 *", "1. c4 *"}}
	uc := newUseCase(ga, store, src)

	reports, err := uc.AnalyzePlayerMonth(context.Background(), "hikaru", 2024, 3, nil)
	require.NoError(t, err)

	assert.Len(t, reports, 3)
	assert.Equal(t, 3, store.saved)
}

func TestAnalyzePlayerMonthNoGames(t *testing.T) {
	uc := newUseCase(&fakeAnalyzer{}, newFakeStore(), &fakeSource{err: errs.ErrNoGamesFound})

	_, err := uc.AnalyzePlayerMonth(context.Background(), "nosuchplayer", 2024, 3, nil)

	assert.ErrorIs(t, err, errs.ErrNoGamesFound)
}

func TestGetReportMiss(t *testing.T) {
	uc := newUseCase(&fakeAnalyzer{}, newFakeStore(), &fakeSource{})

	_, err := uc.GetReport(context.Background(), "deadbeefdeadbeef")

	assert.ErrorIs(t, err, errs.ErrGameNotFound)
}
