// Package analyzer orchestrates the full analysis of chess games: engine
// evaluation per ply, move classification, tactical scanning, opening
// classification and per-player aggregation.
package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/notnil/chess"
	"go.uber.org/zap"

	"github.com/danielpmchugh/chess-pattern-analyzer/internal/domain/analysis"
	"github.com/danielpmchugh/chess-pattern-analyzer/internal/engine/blunder"
	"github.com/danielpmchugh/chess-pattern-analyzer/internal/engine/opening"
	"github.com/danielpmchugh/chess-pattern-analyzer/internal/engine/stockfish"
	"github.com/danielpmchugh/chess-pattern-analyzer/internal/engine/tactics"
	errs "github.com/danielpmchugh/chess-pattern-analyzer/internal/errors"
)

// EngineSession is the engine surface the orchestrator drives. One session
// serves exactly one game and is always stopped before the game's analysis
// returns.
type EngineSession interface {
	Start(ctx context.Context) error
	Stop()
	Evaluate(ctx context.Context, fen string) (analysis.Evaluation, error)
	TopMoves(ctx context.Context, fen string, n int) ([]analysis.TopMove, error)
}

// criticalLoss is the eval loss above which a move counts as a turning
// point of the game.
const criticalLoss = 200

// swingAdvantage bounds the missed-opportunity flag: the mover stood at
// least this much better before and at least this much worse after.
const swingAdvantage = 150

// Full-move numbers partitioning a game into phases.
const (
	middlegameFrom = 15
	endgameFrom    = 40
)

type Analyzer struct {
	cfg        analysis.EngineConfig
	log        *zap.SugaredLogger
	classifier *blunder.Classifier

	// newSession is swappable so tests can inject a scripted engine.
	newSession func() EngineSession
}

func New(cfg analysis.EngineConfig, log *zap.SugaredLogger) *Analyzer {
	return &Analyzer{
		cfg:        cfg,
		log:        log,
		classifier: blunder.NewClassifier(log),
		newSession: func() EngineSession { return stockfish.NewSession(cfg, log) },
	}
}

// AnalyzeGame runs the complete analysis of one PGN game. The engine
// session is scoped to this call and released on every exit path.
func (a *Analyzer) AnalyzeGame(ctx context.Context, pgnText string) (analysis.GameReport, error) {
	started := time.Now()

	pgnFunc, err := chess.PGN(strings.NewReader(pgnText))
	if err != nil {
		return analysis.GameReport{}, fmt.Errorf("%w: %v", errs.ErrInvalidMove, err)
	}
	game := chess.NewGame(pgnFunc)

	session := a.newSession()
	if err := session.Start(ctx); err != nil {
		return analysis.GameReport{}, fmt.Errorf("failed to start engine session: %w", err)
	}
	defer session.Stop()

	records, movesUCI, allPatterns, err := a.analyzeAllMoves(ctx, session, game)
	if err != nil {
		return analysis.GameReport{}, fmt.Errorf("%w: %v", errs.ErrAnalysisFailed, err)
	}

	openingRec := opening.Analyze(movesUCI, records)
	moments := identifyCriticalMoments(records)

	report := analysis.GameReport{
		GameID:     GameID(pgnText),
		AnalyzedAt: time.Now().UTC(),

		White:       tagOr(game, "White", "Unknown"),
		Black:       tagOr(game, "Black", "Unknown"),
		WhiteRating: parseRating(tagOr(game, "WhiteElo", "")),
		BlackRating: parseRating(tagOr(game, "BlackElo", "")),
		Result:      tagOr(game, "Result", "*"),
		TimeControl: tagOr(game, "TimeControl", ""),

		Opening:    openingRec,
		Moves:      records,
		TotalMoves: len(records),

		WhiteReport: buildPlayerReport(records, "white", tagOr(game, "White", "Unknown"), parseRating(tagOr(game, "WhiteElo", "")), moments),
		BlackReport: buildPlayerReport(records, "black", tagOr(game, "Black", "Unknown"), parseRating(tagOr(game, "BlackElo", "")), moments),

		PatternsDetected: uniquePatternKinds(allPatterns),
		CriticalMoments:  moments,
		AnalysisSeconds:  math.Round(time.Since(started).Seconds()*100) / 100,
	}
	return report, nil
}

// AnalyzeBatch analyzes games one at a time, each with its own engine
// session. A failed game is logged and skipped; order of the survivors is
// preserved. progress, when non-nil, is called after every game.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, pgnTexts []string, progress func(done, total int)) []analysis.GameReport {
	reports := make([]analysis.GameReport, 0, len(pgnTexts))
	for i, pgnText := range pgnTexts {
		if ctx.Err() != nil {
			a.log.Warnw("batch analysis canceled", "done", i, "total", len(pgnTexts))
			break
		}

		report, err := a.AnalyzeGame(ctx, pgnText)
		if err != nil {
			a.log.Warnw("skipping game in batch", "index", i, "error", err)
		} else {
			reports = append(reports, report)
		}

		if progress != nil {
			progress(i+1, len(pgnTexts))
		}
	}
	return reports
}

// analyzeAllMoves walks the game ply by ply, classifying each move and
// scanning the resulting position for tactical patterns.
func (a *Analyzer) analyzeAllMoves(
	ctx context.Context,
	session EngineSession,
	game *chess.Game,
) ([]analysis.MoveRecord, []string, []analysis.TacticalPattern, error) {
	moves := game.Moves()
	positions := game.Positions()
	comments := game.Comments()

	records := make([]analysis.MoveRecord, 0, len(moves))
	movesUCI := make([]string, 0, len(moves))
	var allPatterns []analysis.TacticalPattern

	for i, move := range moves {
		before := positions[i]
		moveNumber := i/2 + 1

		record, err := a.classifier.AnalyzeMove(ctx, session, before, move, i, moveNumber)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("move %d (%s): %w", i+1, move, err)
		}

		if i < len(comments) {
			record.TimeSpent, record.TimeRemaining = parseTimes(comments[i])
		}

		record.Patterns = tactics.Scan(positions[i+1], move)
		allPatterns = append(allPatterns, record.Patterns...)

		records = append(records, record)
		movesUCI = append(movesUCI, move.String())
	}

	return records, movesUCI, allPatterns, nil
}

// identifyCriticalMoments flags the turning points: every move losing more
// than criticalLoss, and every missed checkmate.
func identifyCriticalMoments(records []analysis.MoveRecord) []analysis.CriticalMoment {
	var moments []analysis.CriticalMoment
	for _, r := range records {
		if r.EvalLoss > criticalLoss {
			wasWinning := r.EvalBefore > swingAdvantage
			nowLosing := r.EvalAfter < -swingAdvantage
			moments = append(moments, analysis.CriticalMoment{
				Ply:               r.Ply,
				MoveNumber:        r.MoveNumber,
				Description:       fmt.Sprintf("%s blundered: %s", capitalizeColor(r.Color), r.SAN),
				Swing:             r.EvalLoss,
				MissedOpportunity: wasWinning && nowLosing,
			})
		}

		if r.BlunderKind == analysis.BlunderMissedCheckmate {
			moments = append(moments, analysis.CriticalMoment{
				Ply:               r.Ply,
				MoveNumber:        r.MoveNumber,
				Description:       fmt.Sprintf("%s missed checkmate", capitalizeColor(r.Color)),
				Swing:             1000,
				MissedOpportunity: true,
			})
		}
	}
	return moments
}

// buildPlayerReport aggregates one color's records into counts, accuracy
// and phase statistics.
func buildPlayerReport(
	records []analysis.MoveRecord,
	color string,
	name string,
	rating *int,
	moments []analysis.CriticalMoment,
) analysis.PlayerReport {
	report := analysis.PlayerReport{
		Name:   name,
		Color:  color,
		Rating: rating,
	}

	var colorMoves []analysis.MoveRecord
	for _, r := range records {
		if r.Color == color {
			colorMoves = append(colorMoves, r)
		}
	}
	if len(colorMoves) == 0 {
		return report
	}

	totalLoss := 0
	var patterns []analysis.TacticalPattern
	for _, r := range colorMoves {
		switch r.Label {
		case analysis.LabelBrilliant:
			report.Brilliant++
		case analysis.LabelBest:
			report.Best++
		case analysis.LabelGood:
			report.Good++
		case analysis.LabelInaccuracy:
			report.Inaccuracies++
		case analysis.LabelMistake:
			report.Mistakes++
		case analysis.LabelBlunder, analysis.LabelCriticalBlunder:
			report.Blunders++
		}
		totalLoss += r.EvalLoss
		patterns = append(patterns, r.Patterns...)
	}

	report.Accuracy = blunder.Accuracy(records, color)
	report.AvgCentipawnLoss = math.Round(float64(totalLoss)/float64(len(colorMoves))*10) / 10
	report.Patterns = uniquePatternKinds(patterns)

	report.OpeningPhase = phaseStats(colorMoves, 0, middlegameFrom, "opening")
	report.MiddlegamePhase = phaseStats(colorMoves, middlegameFrom, endgameFrom, "middlegame")
	report.EndgamePhase = phaseStats(colorMoves, endgameFrom, math.MaxInt, "endgame")

	for _, cm := range moments {
		if cm.Ply >= 0 && cm.Ply < len(records) && records[cm.Ply].Color == color {
			report.CriticalMoments = append(report.CriticalMoments, cm)
		}
	}
	return report
}

// phaseStats aggregates the player's moves whose full-move number falls in
// [from, to). Returns nil when the phase never happened.
func phaseStats(moves []analysis.MoveRecord, from, to int, phase string) *analysis.PhaseStats {
	var inPhase []analysis.MoveRecord
	for _, m := range moves {
		if m.MoveNumber >= from && m.MoveNumber < to {
			inPhase = append(inPhase, m)
		}
	}
	if len(inPhase) == 0 {
		return nil
	}

	stats := analysis.PhaseStats{Phase: phase, Moves: len(inPhase)}
	goodMoves := 0
	totalLoss := 0
	for _, m := range inPhase {
		switch m.Label {
		case analysis.LabelBlunder, analysis.LabelCriticalBlunder:
			stats.Blunders++
		case analysis.LabelMistake:
			stats.Mistakes++
		case analysis.LabelInaccuracy:
			stats.Inaccuracies++
		}
		if m.Label.IsGoodOrBetter() {
			goodMoves++
		}
		totalLoss += m.EvalLoss
	}
	stats.Accuracy = math.Round(float64(goodMoves)/float64(len(inPhase))*1000) / 10
	stats.AvgCentipawnLoss = math.Round(float64(totalLoss)/float64(len(inPhase))*10) / 10
	return &stats
}

func uniquePatternKinds(patterns []analysis.TacticalPattern) []analysis.PatternKind {
	seen := make(map[analysis.PatternKind]bool)
	var kinds []analysis.PatternKind
	for _, p := range patterns {
		if !seen[p.Kind] {
			seen[p.Kind] = true
			kinds = append(kinds, p.Kind)
		}
	}
	return kinds
}

var (
	clkPattern = regexp.MustCompile(`\[%clk (\d+):(\d+):(\d+)\]`)
	emtPattern = regexp.MustCompile(`\[%emt (\d+):(\d+):(\d+)\]`)
)

// parseTimes extracts clock annotations from a move's PGN comments:
// [%clk H:MM:SS] is the time remaining, [%emt H:MM:SS] the time spent.
func parseTimes(comments []string) (spent, remaining *float64) {
	for _, comment := range comments {
		if m := clkPattern.FindStringSubmatch(comment); m != nil && remaining == nil {
			remaining = hmsSeconds(m[1], m[2], m[3])
		}
		if m := emtPattern.FindStringSubmatch(comment); m != nil && spent == nil {
			spent = hmsSeconds(m[1], m[2], m[3])
		}
	}
	return spent, remaining
}

func hmsSeconds(h, m, s string) *float64 {
	hours, _ := strconv.Atoi(h)
	minutes, _ := strconv.Atoi(m)
	seconds, _ := strconv.Atoi(s)
	total := float64(hours*3600 + minutes*60 + seconds)
	return &total
}

// GameID is a stable identifier derived from the PGN text.
func GameID(pgnText string) string {
	sum := sha256.Sum256([]byte(pgnText))
	return hex.EncodeToString(sum[:])[:16]
}

func tagOr(game *chess.Game, key, fallback string) string {
	if tp := game.GetTagPair(key); tp != nil && tp.Value != "" {
		return tp.Value
	}
	return fallback
}

func parseRating(raw string) *int {
	if raw == "" || raw == "?" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}

func capitalizeColor(color string) string {
	if color == "white" {
		return "White"
	}
	return "Black"
}
