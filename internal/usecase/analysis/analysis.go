package analysis

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/danielpmchugh/chess-pattern-analyzer/internal/domain/analysis"
	"github.com/danielpmchugh/chess-pattern-analyzer/internal/engine/analyzer"
	errs "github.com/danielpmchugh/chess-pattern-analyzer/internal/errors"
)

// GameAnalyzer runs the engine over PGN text.
type GameAnalyzer interface {
	AnalyzeGame(ctx context.Context, pgnText string) (analysis.GameReport, error)
	AnalyzeBatch(ctx context.Context, pgnTexts []string, progress func(done, total int)) []analysis.GameReport
}

// ReportStore caches finished reports between requests.
type ReportStore interface {
	Save(ctx context.Context, report *analysis.GameReport) error
	Get(ctx context.Context, gameID string) (*analysis.GameReport, error)
}

// GameSource fetches player games from an external archive.
type GameSource interface {
	FetchGames(ctx context.Context, username string, year, month int) ([]string, error)
}

type AnalysisUseCase struct {
	log      *zap.SugaredLogger
	analyzer GameAnalyzer
	reports  ReportStore
	games    GameSource
}

func NewAnalysisUseCase(log *zap.SugaredLogger, ga GameAnalyzer, reports ReportStore, games GameSource) *AnalysisUseCase {
	return &AnalysisUseCase{
		log:      log,
		analyzer: ga,
		reports:  reports,
		games:    games,
	}
}

// AnalyzeGame returns a cached report when the same PGN was analyzed before,
// otherwise runs a full engine pass and caches the result.
func (u *AnalysisUseCase) AnalyzeGame(ctx context.Context, pgnText string) (analysis.GameReport, error) {
	id := analyzer.GameID(pgnText)
	if cached, err := u.reports.Get(ctx, id); err == nil {
		u.log.Infow("report served from cache", "gameID", id)
		return *cached, nil
	} else if !errors.Is(err, errs.ErrGameNotFound) {
		u.log.Warnw("report cache lookup failed", "gameID", id, "error", err)
	}

	report, err := u.analyzer.AnalyzeGame(ctx, pgnText)
	if err != nil {
		return analysis.GameReport{}, err
	}

	if err := u.reports.Save(ctx, &report); err != nil {
		u.log.Warnw("failed to cache report", "gameID", report.GameID, "error", err)
	}
	return report, nil
}

// AnalyzeBatch analyzes many games, skipping cached ones and reporting
// progress after every game. Reports come back in input order with failed
// games omitted.
func (u *AnalysisUseCase) AnalyzeBatch(ctx context.Context, pgnTexts []string, progress func(done, total int)) []analysis.GameReport {
	total := len(pgnTexts)
	cached := make(map[string]*analysis.GameReport, total)
	pending := make([]string, 0, total)

	done := 0
	for _, pgn := range pgnTexts {
		id := analyzer.GameID(pgn)
		if report, err := u.reports.Get(ctx, id); err == nil {
			cached[id] = report
			done++
			if progress != nil {
				progress(done, total)
			}
			continue
		}
		pending = append(pending, pgn)
	}

	fresh := u.analyzer.AnalyzeBatch(ctx, pending, func(batchDone, _ int) {
		if progress != nil {
			progress(done+batchDone, total)
		}
	})

	byID := make(map[string]*analysis.GameReport, len(fresh))
	for i := range fresh {
		if err := u.reports.Save(ctx, &fresh[i]); err != nil {
			u.log.Warnw("failed to cache report", "gameID", fresh[i].GameID, "error", err)
		}
		byID[fresh[i].GameID] = &fresh[i]
	}

	// Failed games are in neither map and stay omitted.
	reports := make([]analysis.GameReport, 0, total)
	for _, pgn := range pgnTexts {
		id := analyzer.GameID(pgn)
		if report, ok := cached[id]; ok {
			reports = append(reports, *report)
		} else if report, ok := byID[id]; ok {
			reports = append(reports, *report)
		}
	}
	return reports
}

// AnalyzePlayerMonth pulls a player's games for one month and analyzes them.
func (u *AnalysisUseCase) AnalyzePlayerMonth(ctx context.Context, username string, year, month int, progress func(done, total int)) ([]analysis.GameReport, error) {
	pgns, err := u.games.FetchGames(ctx, username, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch games for %s: %w", username, err)
	}
	return u.AnalyzeBatch(ctx, pgns, progress), nil
}

// GetReport looks up a previously produced report by game ID.
func (u *AnalysisUseCase) GetReport(ctx context.Context, gameID string) (analysis.GameReport, error) {
	report, err := u.reports.Get(ctx, gameID)
	if err != nil {
		return analysis.GameReport{}, err
	}
	return *report, nil
}
