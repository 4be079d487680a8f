package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danielpmchugh/chess-pattern-analyzer/internal/domain/analysis"
	errs "github.com/danielpmchugh/chess-pattern-analyzer/internal/errors"
)

const testPGN = `[Event "Test Match"]
[White "Alice"]
[Black "Bob"]
[WhiteElo "1500"]
[BlackElo "1400"]
[Result "1-0"]

1. e4 e5 2. Nf3 Nc6 3. Bc4 1-0
`

// fakeSession replays a fixed evaluation sequence. TopMoves is always
// empty, so the classifier falls back to the pre-move evaluation as the
// best score.
type fakeSession struct {
	startErr error
	evalErr  error
	evalSeq  []analysis.Evaluation
	calls    int
	stops    int
}

func (f *fakeSession) Start(context.Context) error { return f.startErr }

func (f *fakeSession) Stop() { f.stops++ }

func (f *fakeSession) Evaluate(_ context.Context, _ string) (analysis.Evaluation, error) {
	if f.evalErr != nil {
		return analysis.Evaluation{}, f.evalErr
	}
	i := f.calls
	f.calls++
	if i < len(f.evalSeq) {
		return f.evalSeq[i], nil
	}
	return cp(20), nil
}

func (f *fakeSession) TopMoves(context.Context, string, int) ([]analysis.TopMove, error) {
	return nil, nil
}

func cp(v int) analysis.Evaluation {
	return analysis.Evaluation{Centipawns: &v, Depth: 12}
}

func newTestAnalyzer(session *fakeSession) *Analyzer {
	a := New(analysis.EngineConfig{Path: "stockfish", Depth: 12, MultiPV: 1}, zap.NewNop().Sugar())
	a.newSession = func() EngineSession { return session }
	return a
}

func TestAnalyzeGame(t *testing.T) {
	session := &fakeSession{}
	a := newTestAnalyzer(session)

	report, err := a.AnalyzeGame(context.Background(), testPGN)
	require.NoError(t, err)

	assert.Len(t, report.GameID, 16)
	assert.Equal(t, "Alice", report.White)
	assert.Equal(t, "Bob", report.Black)
	require.NotNil(t, report.WhiteRating)
	assert.Equal(t, 1500, *report.WhiteRating)
	require.NotNil(t, report.BlackRating)
	assert.Equal(t, 1400, *report.BlackRating)
	assert.Equal(t, "1-0", report.Result)

	assert.Equal(t, 5, report.TotalMoves)
	require.Len(t, report.Moves, 5)
	assert.Equal(t, "e4", report.Moves[0].SAN)
	assert.Equal(t, "white", report.Moves[0].Color)
	assert.Equal(t, "black", report.Moves[1].Color)
	assert.Equal(t, 2, report.Moves[2].MoveNumber)

	assert.Equal(t, "C50", report.Opening.ECO)
	assert.Contains(t, report.Opening.Name, "Italian")

	// Every move evaluated flat: all good, 40cp loss each.
	assert.Equal(t, 3, report.WhiteReport.Good)
	assert.Equal(t, 95.0, report.WhiteReport.Accuracy)
	assert.Equal(t, 40.0, report.WhiteReport.AvgCentipawnLoss)
	require.NotNil(t, report.WhiteReport.OpeningPhase)
	assert.Equal(t, 3, report.WhiteReport.OpeningPhase.Moves)
	assert.Nil(t, report.WhiteReport.MiddlegamePhase)
	assert.Nil(t, report.WhiteReport.EndgamePhase)
	assert.Equal(t, 2, report.BlackReport.Good)

	assert.Empty(t, report.CriticalMoments)
	assert.Equal(t, 1, session.stops, "session released exactly once")
}

func TestAnalyzeGameCriticalMoment(t *testing.T) {
	// The evaluation sequence per ply is before, after. Ply 1 (Black's
	// first move) collapses from the mover's perspective.
	session := &fakeSession{evalSeq: []analysis.Evaluation{
		cp(20), cp(-20), // ply 0: no loss
		cp(20), cp(300), // ply 1: mover's perspective -300, loss 320
	}}
	a := newTestAnalyzer(session)

	report, err := a.AnalyzeGame(context.Background(), "1. e4 e5 2. Nf3 *")
	require.NoError(t, err)
	require.Len(t, report.Moves, 3)

	assert.Equal(t, analysis.LabelBlunder, report.Moves[1].Label)
	assert.Equal(t, analysis.BlunderOpeningMistake, report.Moves[1].BlunderKind)

	require.Len(t, report.CriticalMoments, 1)
	cm := report.CriticalMoments[0]
	assert.Equal(t, 1, cm.Ply)
	assert.Equal(t, 1, cm.MoveNumber)
	assert.Equal(t, 320, cm.Swing)
	assert.False(t, cm.MissedOpportunity)
	assert.Equal(t, "Black blundered: e5", cm.Description)

	assert.Empty(t, report.WhiteReport.CriticalMoments)
	require.Len(t, report.BlackReport.CriticalMoments, 1)
	assert.Equal(t, 1, report.BlackReport.Blunders)
}

func TestAnalyzeGameInvalidPGN(t *testing.T) {
	session := &fakeSession{}
	a := newTestAnalyzer(session)

	_, err := a.AnalyzeGame(context.Background(), "this is definitely not a PGN })(")
	require.Error(t, err)
	assert.Equal(t, 0, session.stops, "no session is opened for unparseable input")
}

func TestAnalyzeGameEngineFailureReleasesSession(t *testing.T) {
	session := &fakeSession{evalErr: errs.ErrEngineTimeout}
	a := newTestAnalyzer(session)

	_, err := a.AnalyzeGame(context.Background(), testPGN)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrAnalysisFailed)
	assert.Equal(t, 1, session.stops)
}

func TestAnalyzeBatchSkipsFailures(t *testing.T) {
	a := New(analysis.EngineConfig{Path: "stockfish", Depth: 12, MultiPV: 1}, zap.NewNop().Sugar())
	a.newSession = func() EngineSession { return &fakeSession{} }

	good1 := "[White \"First\"]\n\n1. e4 e5 *"
	bad := "this is definitely not a PGN })("
	good2 := "[White \"Third\"]\n\n1. d4 d5 *"

	var progress [][2]int
	reports := a.AnalyzeBatch(context.Background(), []string{good1, bad, good2}, func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})

	require.Len(t, reports, 2)
	assert.Equal(t, "First", reports[0].White)
	assert.Equal(t, "Third", reports[1].White)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
}

func TestAnalyzeBatchCanceled(t *testing.T) {
	a := New(analysis.EngineConfig{Path: "stockfish", Depth: 12, MultiPV: 1}, zap.NewNop().Sugar())
	a.newSession = func() EngineSession { return &fakeSession{} }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports := a.AnalyzeBatch(ctx, []string{"1. e4 *", "1. d4 *"}, nil)
	assert.Empty(t, reports)
}

func TestParseTimes(t *testing.T) {
	spent, remaining := parseTimes([]string{"[%clk 0:05:23] [%emt 0:00:05]"})
	require.NotNil(t, remaining)
	assert.Equal(t, 323.0, *remaining)
	require.NotNil(t, spent)
	assert.Equal(t, 5.0, *spent)

	spent, remaining = parseTimes([]string{"a human comment"})
	assert.Nil(t, spent)
	assert.Nil(t, remaining)

	spent, remaining = parseTimes(nil)
	assert.Nil(t, spent)
	assert.Nil(t, remaining)
}

func TestGameIDStable(t *testing.T) {
	id1 := GameID(testPGN)
	id2 := GameID(testPGN)
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 16)
	assert.NotEqual(t, id1, GameID(testPGN+" "))
}
