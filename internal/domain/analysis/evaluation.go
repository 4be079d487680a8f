package analysis

import (
	"errors"
	"time"
)

// MateScore is the saturating sentinel used so that forced mates can take
// part in centipawn arithmetic.
const MateScore = 10000

// EngineConfig holds session-scoped Stockfish settings. It is fixed once a
// session has been started.
type EngineConfig struct {
	Path     string        `json:"path"`
	Depth    int           `json:"depth"`
	MoveTime time.Duration `json:"move_time"`
	Threads  int           `json:"threads"`
	HashMB   int           `json:"hash_mb"`
	MultiPV  int           `json:"multipv"`
}

var errBadEngineConfig = errors.New("engine config: depth must be >= 10 and multipv >= 1")

func (c EngineConfig) Validate() error {
	if c.Depth < 10 || c.MultiPV < 1 {
		return errBadEngineConfig
	}
	return nil
}

// Evaluation is the engine's verdict on one position, relative to the side
// to move. Centipawns and MateIn are mutually exclusive.
type Evaluation struct {
	Centipawns *int   `json:"centipawns,omitempty"`
	MateIn     *int   `json:"mate_in,omitempty"`
	Depth      int    `json:"depth"`
	BestMove   string `json:"best_move,omitempty"`
}

// Score collapses the evaluation to a single centipawn number, saturating
// mates at ±MateScore.
func (e Evaluation) Score() int {
	if e.MateIn != nil {
		if *e.MateIn > 0 {
			return MateScore
		}
		return -MateScore
	}
	if e.Centipawns != nil {
		return *e.Centipawns
	}
	return 0
}

// TopMove is one line of a multi-PV engine reply, strongest first.
type TopMove struct {
	Move string     `json:"move"`
	Eval Evaluation `json:"evaluation"`
	PV   []string   `json:"pv,omitempty"`
}

// AlternativeMove is one of the engine's preferred continuations shown
// alongside the move actually played.
type AlternativeMove struct {
	Move        string     `json:"move"`
	SAN         string     `json:"san"`
	Eval        Evaluation `json:"evaluation"`
	Description string     `json:"description,omitempty"`
}
