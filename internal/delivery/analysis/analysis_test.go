package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danielpmchugh/chess-pattern-analyzer/internal/bootstrap"
	domain "github.com/danielpmchugh/chess-pattern-analyzer/internal/domain/analysis"
	"github.com/danielpmchugh/chess-pattern-analyzer/internal/engine/analyzer"
	errs "github.com/danielpmchugh/chess-pattern-analyzer/internal/errors"
	analysisuc "github.com/danielpmchugh/chess-pattern-analyzer/internal/usecase/analysis"
)

type fakeAnalyzer struct {
	fail error
}

func (f *fakeAnalyzer) AnalyzeGame(ctx context.Context, pgnText string) (domain.GameReport, error) {
	if f.fail != nil {
		return domain.GameReport{}, f.fail
	}
	return domain.GameReport{GameID: analyzer.GameID(pgnText), White: "Alice", Black: "Bob"}, nil
}

func (f *fakeAnalyzer) AnalyzeBatch(ctx context.Context, pgnTexts []string, progress func(done, total int)) []domain.GameReport {
	reports := make([]domain.GameReport, 0, len(pgnTexts))
	for i, pgn := range pgnTexts {
		reports = append(reports, domain.GameReport{GameID: analyzer.GameID(pgn)})
		if progress != nil {
			progress(i+1, len(pgnTexts))
		}
	}
	return reports
}

type fakeStore struct {
	reports map[string]*domain.GameReport
}

func (f *fakeStore) Save(ctx context.Context, report *domain.GameReport) error {
	f.reports[report.GameID] = report
	return nil
}

func (f *fakeStore) Get(ctx context.Context, gameID string) (*domain.GameReport, error) {
	if r, ok := f.reports[gameID]; ok {
		return r, nil
	}
	return nil, errs.ErrGameNotFound
}

type fakeSource struct {
	pgns []string
	err  error
}

func (f *fakeSource) FetchGames(ctx context.Context, username string, year, month int) ([]string, error) {
	return f.pgns, f.err
}

func newTestHandler(t *testing.T, ga analysisuc.GameAnalyzer, src analysisuc.GameSource) *AnalysisHandler {
	t.Helper()
	log := zap.NewNop().Sugar()
	store := &fakeStore{reports: make(map[string]*domain.GameReport)}
	return &AnalysisHandler{
		cfg: bootstrap.Config{StockfishPath: "/usr/local/bin/stockfish"},
		log: log,
		uc:  analysisuc.NewAnalysisUseCase(log, ga, store, src),
	}
}

type envelope struct {
	Status int             `json:"Status"`
	Body   json.RawMessage `json:"Body"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestHandleAnalyze(t *testing.T) {
	h := newTestHandler(t, &fakeAnalyzer{}, &fakeSource{})

	body := `{"pgn": "1. e4 e5 *"}`
	rec := httptest.NewRecorder()
	h.HandleAnalyze(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusOK, env.Status)

	var report domain.GameReport
	require.NoError(t, json.Unmarshal(env.Body, &report))
	assert.Equal(t, analyzer.GameID("1. e4 e5 *"), report.GameID)
	assert.Equal(t, "Alice", report.White)
}

func TestHandleAnalyzeMissingPGN(t *testing.T) {
	h := newTestHandler(t, &fakeAnalyzer{}, &fakeSource{})

	rec := httptest.NewRecorder()
	h.HandleAnalyze(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnalyzeMalformedBody(t *testing.T) {
	h := newTestHandler(t, &fakeAnalyzer{}, &fakeSource{})

	rec := httptest.NewRecorder()
	h.HandleAnalyze(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(`{"pgn": 5`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnalyzeInvalidGame(t *testing.T) {
	ga := &fakeAnalyzer{fail: fmt.Errorf("%w: bad movetext", errs.ErrInvalidMove)}
	h := newTestHandler(t, ga, &fakeSource{})

	rec := httptest.NewRecorder()
	h.HandleAnalyze(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(`{"pgn": "1. zz *"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnalyzeEngineDown(t *testing.T) {
	ga := &fakeAnalyzer{fail: errs.ErrEngineUnavailable}
	h := newTestHandler(t, ga, &fakeSource{})

	rec := httptest.NewRecorder()
	h.HandleAnalyze(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(`{"pgn": "1. e4 *"}`)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleAnalyzeBatchPGNs(t *testing.T) {
	h := newTestHandler(t, &fakeAnalyzer{}, &fakeSource{})

	body := `{"pgns": ["1. e4 *", "1. d4 *"]}`
	rec := httptest.NewRecorder()
	h.HandleAnalyzeBatch(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analyze/batch", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)

	var resp batchResponse
	require.NoError(t, json.Unmarshal(env.Body, &resp))
	assert.Equal(t, 2, resp.Requested)
	assert.Equal(t, 2, resp.Analyzed)
	assert.Len(t, resp.Reports, 2)
}

func TestHandleAnalyzeBatchByUsername(t *testing.T) {
	src := &fakeSource{pgns: []string{"1. e4 *", "1. d4 *", "1. c4 *"}}
	h := newTestHandler(t, &fakeAnalyzer{}, src)

	body := `{"username": "hikaru", "year": 2024, "month": 3}`
	rec := httptest.NewRecorder()
	h.HandleAnalyzeBatch(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analyze/batch", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)

	var resp batchResponse
	require.NoError(t, json.Unmarshal(env.Body, &resp))
	assert.Equal(t, 3, resp.Analyzed)
}

func TestHandleAnalyzeBatchEmptyRequest(t *testing.T) {
	h := newTestHandler(t, &fakeAnalyzer{}, &fakeSource{})

	rec := httptest.NewRecorder()
	h.HandleAnalyzeBatch(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analyze/batch", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetReportNotFound(t *testing.T) {
	h := newTestHandler(t, &fakeAnalyzer{}, &fakeSource{})

	rec := httptest.NewRecorder()
	h.HandleGetReport(rec, httptest.NewRequest(http.MethodGet, "/api/v1/report?game_id=deadbeefdeadbeef", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetReportAfterAnalyze(t *testing.T) {
	h := newTestHandler(t, &fakeAnalyzer{}, &fakeSource{})

	rec := httptest.NewRecorder()
	h.HandleAnalyze(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(`{"pgn": "1. e4 *"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	id := analyzer.GameID("1. e4 *")
	rec = httptest.NewRecorder()
	h.HandleGetReport(rec, httptest.NewRequest(http.MethodGet, "/api/v1/report?game_id="+id, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)

	var report domain.GameReport
	require.NoError(t, json.Unmarshal(env.Body, &report))
	assert.Equal(t, id, report.GameID)
}

func TestHandleHealth(t *testing.T) {
	h := newTestHandler(t, &fakeAnalyzer{}, &fakeSource{})

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)

	var body map[string]string
	require.NoError(t, json.Unmarshal(env.Body, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHandleAnalyzeWS(t *testing.T) {
	h := newTestHandler(t, &fakeAnalyzer{}, &fakeSource{})

	srv := httptest.NewServer(http.HandlerFunc(h.HandleAnalyzeWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(batchRequest{PGNs: []string{"1. e4 *", "1. d4 *"}}))

	var progressSeen int
	for {
		var msg struct {
			Type    string              `json:"type"`
			Done    int                 `json:"done"`
			Total   int                 `json:"total"`
			Reports []domain.GameReport `json:"reports"`
			Error   string              `json:"error"`
		}
		require.NoError(t, conn.ReadJSON(&msg))

		switch msg.Type {
		case "progress":
			progressSeen++
			assert.Equal(t, 2, msg.Total)
		case "result":
			assert.Equal(t, 2, progressSeen)
			assert.Len(t, msg.Reports, 2)
			return
		default:
			t.Fatalf("unexpected message type %q (error: %s)", msg.Type, msg.Error)
		}
	}
}

func TestHandleAnalyzeWSEmptyRequest(t *testing.T) {
	h := newTestHandler(t, &fakeAnalyzer{}, &fakeSource{})

	srv := httptest.NewServer(http.HandlerFunc(h.HandleAnalyzeWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(batchRequest{}))

	var msg struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
}
