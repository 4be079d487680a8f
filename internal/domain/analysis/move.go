package analysis

// TacticalPattern is one detected motif. Immutable once emitted.
type TacticalPattern struct {
	Kind        PatternKind `json:"pattern_type"`
	Severity    Severity    `json:"severity"`
	Pieces      []string    `json:"pieces_involved,omitempty"`
	Squares     []string    `json:"squares,omitempty"`
	Centipawns  int         `json:"centipawn_value"`
	Description string      `json:"description,omitempty"`
}

// MoveRecord is the full analysis of a single played move. Evaluations are
// stored from the mover's perspective; EvalLoss is never negative.
type MoveRecord struct {
	Ply        int    `json:"ply"`
	MoveNumber int    `json:"move_number"`
	Color      string `json:"color"`
	UCI        string `json:"move"`
	SAN        string `json:"san"`

	Label       MoveLabel `json:"classification"`
	EvalBefore  int       `json:"eval_before"`
	EvalAfter   int       `json:"eval_after"`
	BestMove    string    `json:"best_move,omitempty"`
	BestMoveSAN string    `json:"best_move_san,omitempty"`
	BestEval    int       `json:"best_eval"`
	EvalLoss    int       `json:"eval_loss"`

	BlunderKind  BlunderKind       `json:"blunder_type,omitempty"`
	Patterns     []TacticalPattern `json:"tactical_patterns,omitempty"`
	Alternatives []AlternativeMove `json:"alternatives,omitempty"`

	TimeSpent     *float64 `json:"time_spent,omitempty"`
	TimeRemaining *float64 `json:"time_remaining,omitempty"`

	FEN string `json:"position_fen"`
}
