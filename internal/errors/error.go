package errors

import "errors"

var (
	ErrEngineUnavailable = errors.New("stockfish executable is missing or cannot be launched")
	ErrEngineNotStarted  = errors.New("engine session used before start")
	ErrEngineTimeout     = errors.New("engine did not respond within the configured time budget")
	ErrInvalidPosition   = errors.New("position is malformed or illegal")
	ErrInvalidMove       = errors.New("move is malformed or illegal in its position")
	ErrAnalysisFailed    = errors.New("game analysis failed")
	ErrGameNotFound      = errors.New("game not found")
	ErrNoGamesFound      = errors.New("no games found for player")
)
