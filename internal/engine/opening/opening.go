// Package opening classifies games by ECO code and grades the opening phase.
package opening

import (
	"strings"

	"github.com/danielpmchugh/chess-pattern-analyzer/internal/domain/analysis"
)

// phaseMoves is how many plies from the start count as the opening phase.
const phaseMoves = 15

// deviationLoss is the centipawn loss that marks the first departure from
// playable theory.
const deviationLoss = 50

type entry struct {
	eco  string
	name string
}

// ecoTable maps a space-joined UCI move prefix to its classification. A
// condensed book; longest prefix wins.
var ecoTable = map[string]entry{
	// King's Pawn
	"e2e4":                     {"B00", "King's Pawn Opening"},
	"e2e4 e7e5":                {"C20", "King's Pawn Game"},
	"e2e4 e7e5 g1f3":           {"C40", "King's Knight Opening"},
	"e2e4 e7e5 g1f3 b8c6":      {"C44", "King's Pawn Game"},
	"e2e4 e7e5 g1f3 b8c6 f1b5": {"C60", "Ruy Lopez"},
	"e2e4 e7e5 g1f3 b8c6 f1c4": {"C50", "Italian Game"},
	"e2e4 e7e5 f1c4":           {"C23", "Bishop's Opening"},
	"e2e4 e7e5 b1c3":           {"C25", "Vienna Game"},

	// Sicilian
	"e2e4 c7c5":           {"B20", "Sicilian Defense"},
	"e2e4 c7c5 g1f3":      {"B20", "Sicilian Defense"},
	"e2e4 c7c5 g1f3 d7d6": {"B50", "Sicilian Defense"},
	"e2e4 c7c5 g1f3 b8c6": {"B30", "Sicilian Defense, Old Sicilian"},
	"e2e4 c7c5 g1f3 e7e6": {"B40", "Sicilian Defense, French Variation"},

	// French
	"e2e4 e7e6":           {"C00", "French Defense"},
	"e2e4 e7e6 d2d4":      {"C00", "French Defense"},
	"e2e4 e7e6 d2d4 d7d5": {"C10", "French Defense"},

	// Caro-Kann
	"e2e4 c7c6":      {"B10", "Caro-Kann Defense"},
	"e2e4 c7c6 d2d4": {"B10", "Caro-Kann Defense"},

	// Pirc / Modern / Scandinavian / Alekhine
	"e2e4 d7d6": {"B07", "Pirc Defense"},
	"e2e4 g7g6": {"B06", "Modern Defense"},
	"e2e4 d7d5": {"B01", "Scandinavian Defense"},
	"e2e4 g8f6": {"B02", "Alekhine Defense"},

	// Queen's Pawn
	"d2d4":                {"A40", "Queen's Pawn Opening"},
	"d2d4 d7d5":           {"D00", "Queen's Pawn Game"},
	"d2d4 d7d5 c2c4":      {"D06", "Queen's Gambit"},
	"d2d4 d7d5 c2c4 e7e6": {"D30", "Queen's Gambit Declined"},
	"d2d4 d7d5 c2c4 c7c6": {"D10", "Slav Defense"},
	"d2d4 d7d5 c2c4 d5c4": {"D20", "Queen's Gambit Accepted"},

	// Indian systems
	"d2d4 g8f6":                     {"A45", "Indian Defense"},
	"d2d4 g8f6 c2c4":                {"E00", "Indian Defense"},
	"d2d4 g8f6 c2c4 e7e6":           {"E00", "Indian Defense"},
	"d2d4 g8f6 c2c4 g7g6":           {"E60", "King's Indian Defense"},
	"d2d4 g8f6 c2c4 e7e6 b1c3 f8b4": {"E40", "Nimzo-Indian Defense"},

	// English / Reti / rest
	"c2c4":      {"A10", "English Opening"},
	"c2c4 e7e5": {"A20", "English Opening"},
	"c2c4 g8f6": {"A10", "English Opening"},
	"g1f3":      {"A04", "Reti Opening"},
	"g1f3 d7d5": {"A06", "Reti Opening"},
	"g1f3 g8f6": {"A09", "Reti Opening"},
	"b2b3":      {"A01", "Nimzowitsch-Larsen Attack"},
	"f2f4":      {"A02", "Bird's Opening"},
}

// Classify names the opening for a UCI move sequence: longest matching
// prefix out of the first eight plies, then first-move heuristics, then the
// uncommon-opening default.
func Classify(movesUCI []string) (eco, name string) {
	if len(movesUCI) == 0 {
		return "A00", "Unknown Opening"
	}

	longest := len(movesUCI)
	if longest > 8 {
		longest = 8
	}
	for length := longest; length > 0; length-- {
		if e, ok := ecoTable[strings.Join(movesUCI[:length], " ")]; ok {
			return e.eco, e.name
		}
	}

	switch movesUCI[0] {
	case "e2e4":
		return "B00", "King's Pawn Opening"
	case "d2d4":
		return "A40", "Queen's Pawn Opening"
	case "c2c4":
		return "A10", "English Opening"
	case "g1f3":
		return "A04", "Reti Opening"
	}
	return "A00", "Uncommon Opening"
}

// Analyze classifies the opening and grades the opening phase from the
// per-move records: collected mistakes, the first deviation ply, and the
// share of clean moves.
func Analyze(movesUCI []string, records []analysis.MoveRecord) analysis.OpeningRecord {
	eco, name := Classify(movesUCI)

	openingMoves := movesUCI
	if len(openingMoves) > phaseMoves {
		openingMoves = openingMoves[:phaseMoves]
	}

	phase := records
	if len(phase) > phaseMoves {
		phase = phase[:phaseMoves]
	}

	rec := analysis.OpeningRecord{
		ECO:      eco,
		Name:     name,
		MovesUCI: openingMoves,
	}

	goodMoves := 0
	for _, r := range phase {
		if r.Label.IsError() {
			rec.Mistakes = append(rec.Mistakes, r)
		}
		if rec.DeviationPly == nil && r.EvalLoss > deviationLoss {
			ply := r.Ply
			rec.DeviationPly = &ply
		}
		if r.Label.IsGoodOrBetter() {
			goodMoves++
		}
	}

	if len(phase) > 0 {
		rec.Accuracy = float64(goodMoves) / float64(len(phase)) * 100
	}
	return rec
}
