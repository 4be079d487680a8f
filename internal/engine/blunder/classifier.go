// Package blunder classifies played moves against engine evaluations and
// names the specific failure behind each serious mistake.
package blunder

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/notnil/chess"
	"go.uber.org/zap"

	"github.com/danielpmchugh/chess-pattern-analyzer/internal/domain/analysis"
	"github.com/danielpmchugh/chess-pattern-analyzer/internal/engine/tactics"
)

// Evaluator is the slice of the engine session the classifier needs.
type Evaluator interface {
	Evaluate(ctx context.Context, fen string) (analysis.Evaluation, error)
	TopMoves(ctx context.Context, fen string, n int) ([]analysis.TopMove, error)
}

// Classification thresholds in centipawns. Each bound belongs to the bucket
// above it: a loss of exactly 50 is an inaccuracy, 200 a blunder.
const (
	inaccuracyAt      = 50
	mistakeAt         = 100
	blunderAt         = 200
	criticalBlunderAt = 400
)

// allowsTacticAt is the loss floor for the allows-tactic blunder kind.
const allowsTacticAt = 150

type Classifier struct {
	log *zap.SugaredLogger
}

func NewClassifier(log *zap.SugaredLogger) *Classifier {
	return &Classifier{log: log}
}

// AnalyzeMove produces the full record for one played move: evaluations
// before and after, quality label, blunder kind when warranted, and the
// engine's preferred alternatives. Evaluations on the record are expressed
// from the mover's perspective.
func (c *Classifier) AnalyzeMove(
	ctx context.Context,
	eng Evaluator,
	before *chess.Position,
	move *chess.Move,
	ply int,
	moveNumber int,
) (analysis.MoveRecord, error) {
	color := "white"
	if before.Turn() == chess.Black {
		color = "black"
	}

	beforeFEN := before.String()
	evalBefore, err := eng.Evaluate(ctx, beforeFEN)
	if err != nil {
		return analysis.MoveRecord{}, fmt.Errorf("failed to evaluate position before move %s: %w", move, err)
	}

	topMoves, err := eng.TopMoves(ctx, beforeFEN, 3)
	if err != nil {
		return analysis.MoveRecord{}, fmt.Errorf("failed to fetch top moves: %w", err)
	}

	bestScore := evalBefore.Score()
	bestUCI := ""
	if len(topMoves) > 0 {
		bestUCI = topMoves[0].Move
		bestScore = topMoves[0].Eval.Score()
	}

	san := chess.AlgebraicNotation{}.Encode(before, move)
	after := before.Update(move)

	evalAfterRaw, err := eng.Evaluate(ctx, after.String())
	if err != nil {
		return analysis.MoveRecord{}, fmt.Errorf("failed to evaluate position after move %s: %w", move, err)
	}

	// The side to move flipped, so negate to stay in the mover's perspective.
	evalAfter := -evalAfterRaw.Score()
	evalLoss := bestScore - evalAfter

	label := c.classify(move.String(), bestUCI, evalLoss, evalAfter)

	record := analysis.MoveRecord{
		Ply:          ply,
		MoveNumber:   moveNumber,
		Color:        color,
		UCI:          move.String(),
		SAN:          san,
		Label:        label,
		EvalBefore:   evalBefore.Score(),
		EvalAfter:    evalAfter,
		BestMove:     bestUCI,
		BestEval:     bestScore,
		EvalLoss:     abs(evalLoss),
		Alternatives: c.alternatives(before, topMoves, evalBefore.Depth),
		FEN:          after.String(),
	}

	if bestUCI != "" {
		if m, err := (chess.UCINotation{}).Decode(before, bestUCI); err == nil {
			record.BestMoveSAN = chess.AlgebraicNotation{}.Encode(before, m)
		}
	}

	if label.IsError() {
		record.BlunderKind = identifyBlunderKind(before, move, after, evalLoss)
	}

	return record, nil
}

// classify maps the played move to a quality label. Boundary losses fall
// into the harsher bucket.
func (c *Classifier) classify(playedUCI, bestUCI string, evalLoss, evalAfter int) analysis.MoveLabel {
	if bestUCI != "" && playedUCI == bestUCI {
		if brilliantSacrifice(evalAfter, evalLoss) {
			return analysis.LabelBrilliant
		}
		return analysis.LabelBest
	}
	return LabelForLoss(abs(evalLoss))
}

// LabelForLoss buckets an absolute centipawn loss.
func LabelForLoss(absLoss int) analysis.MoveLabel {
	switch {
	case absLoss < inaccuracyAt:
		return analysis.LabelGood
	case absLoss < mistakeAt:
		return analysis.LabelInaccuracy
	case absLoss < blunderAt:
		return analysis.LabelMistake
	case absLoss < criticalBlunderAt:
		return analysis.LabelBlunder
	default:
		return analysis.LabelCriticalBlunder
	}
}

// brilliantSacrifice recognizes the shape of a deep sacrifice (clearly
// winning final position reached at negligible cost) but deliberately never
// fires: telling brilliance apart from an ordinary best move needs a
// shallow-versus-deep comparison this heuristic does not have yet.
func brilliantSacrifice(evalAfter, evalLoss int) bool {
	if evalAfter > 300 && abs(evalLoss) < 50 {
		return false
	}
	return false
}

// identifyBlunderKind walks the sub-type rules in priority order and
// returns the first that matches.
func identifyBlunderKind(before *chess.Position, move *chess.Move, after *chess.Position, evalLoss int) analysis.BlunderKind {
	if leavesPieceHanging(after, move) {
		return analysis.BlunderHangingPiece
	}
	if missedCheckmate(before) {
		return analysis.BlunderMissedCheckmate
	}
	if allowsImmediateTactic(after, evalLoss) {
		return analysis.BlunderAllowsTactic
	}
	if fullmoveNumber(after.String()) <= 15 {
		return analysis.BlunderOpeningMistake
	}
	if isEndgame(after.Board()) && evalLoss > 200 {
		return analysis.BlunderEndgameTechnique
	}
	if isPositionalBlunder(move, evalLoss) {
		return analysis.BlunderPositional
	}
	return analysis.BlunderUnspecified
}

// leavesPieceHanging reports whether the piece that just moved now stands
// attacked with no defenders.
func leavesPieceHanging(after *chess.Position, move *chess.Move) bool {
	board := after.Board()
	moved := board.Piece(move.S2())
	if moved == chess.NoPiece {
		return false
	}
	attackers := tactics.Attackers(board, moved.Color().Other(), move.S2())
	defenders := tactics.Attackers(board, moved.Color(), move.S2())
	return len(attackers) > 0 && len(defenders) == 0
}

// missedCheckmate reports whether the mover had a mate in one available.
func missedCheckmate(before *chess.Position) bool {
	for _, m := range before.ValidMoves() {
		if before.Update(m).Status() == chess.Checkmate {
			return true
		}
	}
	return false
}

// allowsImmediateTactic reports whether the opponent now has a forcing
// reply (capture or check) behind a substantial loss.
func allowsImmediateTactic(after *chess.Position, evalLoss int) bool {
	if evalLoss < allowsTacticAt {
		return false
	}
	for _, m := range after.ValidMoves() {
		if isForcing(m) {
			return true
		}
	}
	return false
}

func isForcing(m *chess.Move) bool {
	return m.HasTag(chess.Capture) || m.HasTag(chess.EnPassant) || m.HasTag(chess.Check)
}

// isEndgame uses the usual heuristic: queens off the board, or at most six
// non-king, non-pawn pieces left in total.
func isEndgame(board *chess.Board) bool {
	queens := 0
	pieces := 0
	for _, p := range board.SquareMap() {
		switch p.Type() {
		case chess.King, chess.Pawn:
			continue
		case chess.Queen:
			queens++
		}
		pieces++
	}
	if queens == 0 {
		return true
	}
	return pieces <= 6
}

// isPositionalBlunder covers the moderate, quiet mistakes: no capture, no
// check, just a worse position.
func isPositionalBlunder(move *chess.Move, evalLoss int) bool {
	if evalLoss < 100 || evalLoss > 250 {
		return false
	}
	return !isForcing(move)
}

// alternatives turns the engine's top lines into annotated alternatives.
func (c *Classifier) alternatives(before *chess.Position, topMoves []analysis.TopMove, depth int) []analysis.AlternativeMove {
	if len(topMoves) > 3 {
		topMoves = topMoves[:3]
	}
	out := make([]analysis.AlternativeMove, 0, len(topMoves))
	for i, tm := range topMoves {
		m, err := (chess.UCINotation{}).Decode(before, tm.Move)
		if err != nil {
			c.log.Debugw("skipping unparseable engine line", "move", tm.Move, "error", err)
			continue
		}
		eval := tm.Eval
		if eval.Depth == 0 {
			eval.Depth = depth
		}
		description := "Best move"
		if i > 0 {
			description = fmt.Sprintf("Alternative #%d", i+1)
		}
		out = append(out, analysis.AlternativeMove{
			Move:        tm.Move,
			SAN:         chess.AlgebraicNotation{}.Encode(before, m),
			Eval:        eval,
			Description: description,
		})
	}
	return out
}

// Accuracy is the weighted share of clean moves for one color, as a
// percentage rounded to one decimal. An empty move set scores 0.
func Accuracy(records []analysis.MoveRecord, color string) float64 {
	total := 0.0
	count := 0
	for _, r := range records {
		if r.Color != color {
			continue
		}
		total += labelWeight(r.Label)
		count++
	}
	if count == 0 {
		return 0
	}
	return math.Round(total/float64(count)*1000) / 10
}

func labelWeight(l analysis.MoveLabel) float64 {
	switch l {
	case analysis.LabelBrilliant, analysis.LabelBest, analysis.LabelBook:
		return 1.0
	case analysis.LabelGood:
		return 0.95
	case analysis.LabelInaccuracy:
		return 0.80
	case analysis.LabelMistake:
		return 0.60
	case analysis.LabelBlunder:
		return 0.30
	case analysis.LabelCriticalBlunder:
		return 0.0
	default:
		return 0.5
	}
}

// fullmoveNumber reads the trailing counter of a FEN string.
func fullmoveNumber(fen string) int {
	fields := strings.Fields(fen)
	if len(fields) < 6 {
		return 0
	}
	n, err := strconv.Atoi(fields[5])
	if err != nil {
		return 0
	}
	return n
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
