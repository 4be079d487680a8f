package analysis

import "time"

// OpeningRecord identifies the opening played and how well it was played.
type OpeningRecord struct {
	ECO          string       `json:"eco"`
	Name         string       `json:"name"`
	MovesUCI     []string     `json:"moves_uci"`
	DeviationPly *int         `json:"deviation_ply,omitempty"`
	Mistakes     []MoveRecord `json:"mistakes_in_opening,omitempty"`
	Accuracy     float64      `json:"opening_accuracy"`
}

// CriticalMoment marks a turning point of the game.
type CriticalMoment struct {
	Ply               int    `json:"ply"`
	MoveNumber        int    `json:"move_number"`
	Description       string `json:"description"`
	Swing             int    `json:"evaluation_swing"`
	MissedOpportunity bool   `json:"missed_opportunity"`
}

// PhaseStats aggregates one player's moves within a game phase.
type PhaseStats struct {
	Phase            string  `json:"phase"`
	Moves            int     `json:"move_count"`
	Accuracy         float64 `json:"accuracy"`
	Blunders         int     `json:"blunders"`
	Mistakes         int     `json:"mistakes"`
	Inaccuracies     int     `json:"inaccuracies"`
	AvgCentipawnLoss float64 `json:"avg_centipawn_loss"`
}

// PlayerReport is the per-color aggregate of a finished analysis.
type PlayerReport struct {
	Name   string `json:"username"`
	Color  string `json:"color"`
	Rating *int   `json:"rating,omitempty"`

	Accuracy         float64 `json:"accuracy"`
	AvgCentipawnLoss float64 `json:"avg_centipawn_loss"`

	Brilliant    int `json:"brilliant_moves"`
	Best         int `json:"best_moves"`
	Good         int `json:"good_moves"`
	Inaccuracies int `json:"inaccuracies"`
	Mistakes     int `json:"mistakes"`
	Blunders     int `json:"blunders"`

	Patterns        []PatternKind    `json:"patterns_detected,omitempty"`
	OpeningPhase    *PhaseStats      `json:"opening_phase,omitempty"`
	MiddlegamePhase *PhaseStats      `json:"middlegame_phase,omitempty"`
	EndgamePhase    *PhaseStats      `json:"endgame_phase,omitempty"`
	CriticalMoments []CriticalMoment `json:"critical_moments,omitempty"`
}

// GameReport is the immutable result of analyzing one game.
type GameReport struct {
	GameID     string    `json:"game_id"`
	AnalyzedAt time.Time `json:"analyzed_at"`

	White       string `json:"white_player"`
	Black       string `json:"black_player"`
	WhiteRating *int   `json:"white_rating,omitempty"`
	BlackRating *int   `json:"black_rating,omitempty"`
	Result      string `json:"result"`
	TimeControl string `json:"time_control,omitempty"`

	Opening    OpeningRecord `json:"opening"`
	Moves      []MoveRecord  `json:"moves"`
	TotalMoves int           `json:"total_moves"`

	WhiteReport PlayerReport `json:"white_analysis"`
	BlackReport PlayerReport `json:"black_analysis"`

	PatternsDetected []PatternKind    `json:"all_patterns_detected,omitempty"`
	CriticalMoments  []CriticalMoment `json:"critical_moments,omitempty"`

	AnalysisSeconds float64 `json:"analysis_time_seconds"`
}
