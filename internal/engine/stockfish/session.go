// Package stockfish drives one Stockfish process over the UCI text protocol
// and serves position evaluations with a per-session cache.
package stockfish

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/danielpmchugh/chess-pattern-analyzer/internal/domain/analysis"
	errs "github.com/danielpmchugh/chess-pattern-analyzer/internal/errors"
)

// replyGrace is added on top of the search budget before a silent engine is
// declared dead.
const replyGrace = 5 * time.Second

// defaultSearchBudget bounds depth-only searches that carry no movetime.
const defaultSearchBudget = 30 * time.Second

// EvalOptions override session defaults for a single Evaluate call. Zero
// values mean "use the session configuration".
type EvalOptions struct {
	Depth    int
	MoveTime time.Duration
	MultiPV  int
	NoCache  bool
}

// Session owns one engine process. It is not safe for concurrent use; the
// orchestrator issues requests strictly one at a time.
type Session struct {
	cfg analysis.EngineConfig
	log *zap.SugaredLogger

	cmd   *exec.Cmd
	stdin *bufio.Writer
	lines chan string

	started    bool
	curMultiPV int
	cache      map[string]analysis.Evaluation
}

func NewSession(cfg analysis.EngineConfig, log *zap.SugaredLogger) *Session {
	return &Session{
		cfg:   cfg,
		log:   log,
		cache: make(map[string]analysis.Evaluation),
	}
}

// Start launches the engine, performs the uci/isready handshake and applies
// the session configuration.
func (s *Session) Start(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(s.cfg.Path); err != nil {
		return fmt.Errorf("%w: %s", errs.ErrEngineUnavailable, s.cfg.Path)
	}

	cmd := exec.Command(s.cfg.Path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open engine stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrEngineUnavailable, err)
	}

	s.cmd = cmd
	s.attach(stdin, stdout)

	if err := s.handshake(ctx); err != nil {
		s.log.Errorw("engine handshake failed", "path", s.cfg.Path, "error", err)
		s.Stop()
		return err
	}

	s.started = true
	s.log.Infow("engine session started",
		"path", s.cfg.Path,
		"depth", s.cfg.Depth,
		"threads", s.cfg.Threads,
		"multipv", s.cfg.MultiPV,
	)
	return nil
}

// attach wires the session to raw pipes and starts the reader loop. Tests
// use it to substitute a scripted engine for the real process.
func (s *Session) attach(in io.Writer, out io.Reader) {
	s.stdin = bufio.NewWriter(in)
	s.lines = make(chan string, 64)
	go func(lines chan<- string) {
		scanner := bufio.NewScanner(out)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}(s.lines)
}

func (s *Session) handshake(ctx context.Context) error {
	if err := s.send("uci"); err != nil {
		return err
	}
	if _, err := s.waitFor(ctx, "uciok", replyGrace); err != nil {
		return err
	}

	s.setOption("Threads", strconv.Itoa(s.cfg.Threads))
	s.setOption("Hash", strconv.Itoa(s.cfg.HashMB))
	s.setOption("MultiPV", strconv.Itoa(s.cfg.MultiPV))
	s.curMultiPV = s.cfg.MultiPV

	if err := s.send("isready"); err != nil {
		return err
	}
	_, err := s.waitFor(ctx, "readyok", replyGrace)
	return err
}

// Stop asks the engine to quit, kills it if it lingers, and drops the cache.
// Termination errors are swallowed; Stop is safe to call twice.
func (s *Session) Stop() {
	if s.cmd != nil {
		_ = s.send("quit")
		done := make(chan struct{})
		go func() {
			_ = s.cmd.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			_ = s.cmd.Process.Kill()
			<-done
		}
		s.cmd = nil
	}
	s.started = false
	s.cache = make(map[string]analysis.Evaluation)
}

// Evaluate analyzes one position with the session defaults, serving repeated
// positions from the cache.
func (s *Session) Evaluate(ctx context.Context, fen string) (analysis.Evaluation, error) {
	return s.EvaluateWith(ctx, fen, EvalOptions{})
}

// EvaluateWith analyzes one position. Option fields override the session
// defaults for this call only.
func (s *Session) EvaluateWith(ctx context.Context, fen string, opts EvalOptions) (analysis.Evaluation, error) {
	if !s.started {
		return analysis.Evaluation{}, errs.ErrEngineNotStarted
	}

	if !opts.NoCache {
		if cached, ok := s.cache[fen]; ok {
			return cached, nil
		}
	}

	depth := opts.Depth
	if depth == 0 {
		depth = s.cfg.Depth
	}
	moveTime := opts.MoveTime
	if moveTime == 0 {
		moveTime = s.cfg.MoveTime
	}
	multiPV := opts.MultiPV
	if multiPV == 0 {
		multiPV = s.cfg.MultiPV
	}

	lines, err := s.search(ctx, fen, depth, moveTime, multiPV)
	if err != nil {
		return analysis.Evaluation{}, err
	}

	eval := analysis.Evaluation{Depth: depth}
	if line, ok := lines[1]; ok {
		eval = analysis.Evaluation{
			Centipawns: line.centipawns,
			MateIn:     line.mateIn,
			Depth:      line.depth,
		}
		if len(line.pv) > 0 {
			eval.BestMove = line.pv[0]
		}
	}

	if !opts.NoCache {
		s.cache[fen] = eval
	}
	return eval, nil
}

// TopMoves returns the n strongest moves in the position, best first. n is
// clamped to [1,5]; MultiPV is reconfigured only when it actually changes.
func (s *Session) TopMoves(ctx context.Context, fen string, n int) ([]analysis.TopMove, error) {
	return s.TopMovesWith(ctx, fen, n, EvalOptions{})
}

// TopMovesWith is TopMoves with per-call overrides of the session depth and
// move time. The MultiPV option is ignored here, n decides it.
func (s *Session) TopMovesWith(ctx context.Context, fen string, n int, opts EvalOptions) ([]analysis.TopMove, error) {
	if !s.started {
		return nil, errs.ErrEngineNotStarted
	}
	if n < 1 {
		n = 1
	} else if n > 5 {
		n = 5
	}

	depth := opts.Depth
	if depth == 0 {
		depth = s.cfg.Depth
	}
	moveTime := opts.MoveTime
	if moveTime == 0 {
		moveTime = s.cfg.MoveTime
	}

	lines, err := s.search(ctx, fen, depth, moveTime, n)
	if err != nil {
		return nil, err
	}

	moves := make([]analysis.TopMove, 0, n)
	for rank := 1; rank <= n; rank++ {
		line, ok := lines[rank]
		if !ok || len(line.pv) == 0 {
			continue
		}
		moves = append(moves, analysis.TopMove{
			Move: line.pv[0],
			Eval: analysis.Evaluation{
				Centipawns: line.centipawns,
				MateIn:     line.mateIn,
				Depth:      line.depth,
			},
			PV: line.pv,
		})
	}
	return moves, nil
}

// CacheSize reports how many positions the session has memoized.
func (s *Session) CacheSize() int { return len(s.cache) }

// search runs one go-command round trip and returns the final info line per
// multipv rank.
func (s *Session) search(ctx context.Context, fen string, depth int, moveTime time.Duration, multiPV int) (map[int]infoLine, error) {
	if multiPV != s.curMultiPV {
		s.setOption("MultiPV", strconv.Itoa(multiPV))
		s.curMultiPV = multiPV
	}

	if err := s.send("position fen " + fen); err != nil {
		return nil, err
	}

	goCmd := fmt.Sprintf("go depth %d", depth)
	budget := defaultSearchBudget
	if moveTime > 0 {
		goCmd = fmt.Sprintf("go depth %d movetime %d", depth, moveTime.Milliseconds())
		budget = moveTime
	}
	if err := s.send(goCmd); err != nil {
		return nil, err
	}

	lines := make(map[int]infoLine)
	deadline := time.NewTimer(budget + replyGrace)
	defer deadline.Stop()

	for {
		select {
		case raw, ok := <-s.lines:
			if !ok {
				return nil, fmt.Errorf("%w: engine closed its pipe", errs.ErrEngineUnavailable)
			}
			if info, ok := parseInfoLine(raw); ok {
				lines[info.multiPV] = info
				continue
			}
			if strings.HasPrefix(raw, "bestmove") {
				return lines, nil
			}
		case <-deadline.C:
			return nil, fmt.Errorf("%w: no bestmove after %s", errs.ErrEngineTimeout, budget+replyGrace)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Session) setOption(name, value string) {
	_ = s.send(fmt.Sprintf("setoption name %s value %s", name, value))
}

func (s *Session) send(cmd string) error {
	if _, err := s.stdin.WriteString(cmd + "\n"); err != nil {
		return fmt.Errorf("failed to write to engine: %w", err)
	}
	if err := s.stdin.Flush(); err != nil {
		return fmt.Errorf("failed to flush to engine: %w", err)
	}
	return nil
}

// waitFor discards lines until one contains token.
func (s *Session) waitFor(ctx context.Context, token string, budget time.Duration) (string, error) {
	deadline := time.NewTimer(budget)
	defer deadline.Stop()
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return "", fmt.Errorf("%w: engine closed its pipe", errs.ErrEngineUnavailable)
			}
			if strings.Contains(line, token) {
				return line, nil
			}
		case <-deadline.C:
			return "", fmt.Errorf("%w: waiting for %q", errs.ErrEngineTimeout, token)
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// infoLine is one parsed "info ..." reply.
type infoLine struct {
	depth      int
	multiPV    int
	centipawns *int
	mateIn     *int
	pv         []string
}

// parseInfoLine extracts depth, multipv rank, score and pv from a UCI info
// line. Lines without a score (currmove chatter and the like) are rejected.
func parseInfoLine(raw string) (infoLine, bool) {
	if !strings.HasPrefix(raw, "info") {
		return infoLine{}, false
	}

	info := infoLine{multiPV: 1}
	hasScore := false
	fields := strings.Fields(raw)
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			if i+1 < len(fields) {
				info.depth, _ = strconv.Atoi(fields[i+1])
				i++
			}
		case "multipv":
			if i+1 < len(fields) {
				info.multiPV, _ = strconv.Atoi(fields[i+1])
				i++
			}
		case "score":
			if i+2 < len(fields) {
				v, err := strconv.Atoi(fields[i+2])
				if err == nil {
					switch fields[i+1] {
					case "cp":
						info.centipawns = &v
						hasScore = true
					case "mate":
						info.mateIn = &v
						hasScore = true
					}
				}
				i += 2
			}
		case "pv":
			if i+1 < len(fields) {
				info.pv = fields[i+1:]
				if len(info.pv) > 5 {
					info.pv = info.pv[:5]
				}
				i = len(fields)
			}
		}
	}

	if !hasScore {
		return infoLine{}, false
	}
	return info, true
}
