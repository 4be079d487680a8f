package analysis

// MoveLabel classifies the quality of a single move.
type MoveLabel string

const (
	LabelBrilliant       MoveLabel = "brilliant"
	LabelBest            MoveLabel = "best"
	LabelGood            MoveLabel = "good"
	LabelBook            MoveLabel = "book"
	LabelInaccuracy      MoveLabel = "inaccuracy"
	LabelMistake         MoveLabel = "mistake"
	LabelBlunder         MoveLabel = "blunder"
	LabelCriticalBlunder MoveLabel = "critical_blunder"
)

// IsError reports whether the label is severe enough to warrant blunder sub-typing.
func (l MoveLabel) IsError() bool {
	return l == LabelMistake || l == LabelBlunder || l == LabelCriticalBlunder
}

// IsGoodOrBetter reports whether the label counts as a clean move for
// phase and opening accuracy.
func (l MoveLabel) IsGoodOrBetter() bool {
	switch l {
	case LabelBrilliant, LabelBest, LabelGood, LabelBook:
		return true
	}
	return false
}

// BlunderKind names the specific reason a poor move was poor.
type BlunderKind string

const (
	BlunderHangingPiece     BlunderKind = "hanging_piece"
	BlunderMissedCheckmate  BlunderKind = "missed_checkmate"
	BlunderAllowsTactic     BlunderKind = "allows_tactic"
	BlunderPositional       BlunderKind = "positional_blunder"
	BlunderTimePressure     BlunderKind = "time_pressure"
	BlunderOpeningMistake   BlunderKind = "opening_mistake"
	BlunderEndgameTechnique BlunderKind = "endgame_technique"
	BlunderUnspecified      BlunderKind = "unspecified"
)

// PatternKind names a tactical motif detected in a position.
type PatternKind string

const (
	PatternHangingPiece     PatternKind = "hanging_piece"
	PatternFork             PatternKind = "fork"
	PatternKnightFork       PatternKind = "knight_fork"
	PatternPin              PatternKind = "pin"
	PatternSkewer           PatternKind = "skewer"
	PatternDiscoveredAttack PatternKind = "discovered_attack"
	PatternBackRankWeakness PatternKind = "back_rank_weakness"
	PatternTrappedPiece     PatternKind = "trapped_piece"
)

// Severity tiers a tactical pattern by the material at stake.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityForValue maps centipawns at stake to a severity tier.
func SeverityForValue(centipawns int) Severity {
	switch {
	case centipawns >= 500:
		return SeverityHigh
	case centipawns >= 300:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
