package analysis

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/danielpmchugh/chess-pattern-analyzer/internal/adapters"
	"github.com/danielpmchugh/chess-pattern-analyzer/internal/bootstrap"
	domain "github.com/danielpmchugh/chess-pattern-analyzer/internal/domain/analysis"
	"github.com/danielpmchugh/chess-pattern-analyzer/internal/engine/analyzer"
	errs "github.com/danielpmchugh/chess-pattern-analyzer/internal/errors"
	"github.com/danielpmchugh/chess-pattern-analyzer/internal/httpresponse"
	"github.com/danielpmchugh/chess-pattern-analyzer/internal/repository"
	analysisuc "github.com/danielpmchugh/chess-pattern-analyzer/internal/usecase/analysis"
	"github.com/danielpmchugh/chess-pattern-analyzer/internal/utils"
)

type AnalysisHandler struct {
	cfg bootstrap.Config
	log *zap.SugaredLogger
	uc  *analysisuc.AnalysisUseCase
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func NewAnalysisHandler(cfg bootstrap.Config, log *zap.SugaredLogger, redisAdapter *adapters.AdapterRedis) *AnalysisHandler {
	uc := analysisuc.NewAnalysisUseCase(
		log,
		analyzer.New(cfg.EngineConfig(), log),
		repository.NewReportRepository(&cfg, log, redisAdapter),
		repository.NewChessComRepository(&cfg, log, redisAdapter),
	)
	return &AnalysisHandler{
		cfg: cfg,
		log: log,
		uc:  uc,
	}
}

type analyzeRequest struct {
	PGN string `json:"pgn"`
}

type batchRequest struct {
	PGNs     []string `json:"pgns,omitempty"`
	Username string   `json:"username,omitempty"`
	Year     int      `json:"year,omitempty"`
	Month    int      `json:"month,omitempty"`
}

type batchResponse struct {
	Requested int                 `json:"games_requested"`
	Analyzed  int                 `json:"games_analyzed"`
	Reports   []domain.GameReport `json:"reports"`
}

// HandleAnalyze analyzes a single PGN.
func (h *AnalysisHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		h.log.Errorw("failed to decode analyze request", "error", err)
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PGN == "" {
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest, "pgn is required")
		return
	}

	report, err := h.uc.AnalyzeGame(r.Context(), req.PGN)
	if err != nil {
		h.writeAnalysisError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, report)
}

// HandleAnalyzeBatch analyzes a list of PGNs, or a player's games for one
// month when a username is given instead.
func (h *AnalysisHandler) HandleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		h.log.Errorw("failed to decode batch request", "error", err)
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		reports   []domain.GameReport
		requested int
		err       error
	)
	switch {
	case req.Username != "":
		reports, err = h.uc.AnalyzePlayerMonth(r.Context(), req.Username, req.Year, req.Month, nil)
		if err != nil {
			h.writeAnalysisError(w, err)
			return
		}
		requested = len(reports)
	case len(req.PGNs) > 0:
		requested = len(req.PGNs)
		reports = h.uc.AnalyzeBatch(r.Context(), req.PGNs, nil)
	default:
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest, "either pgns or username is required")
		return
	}

	httpresponse.WriteResponseWithStatus(w, http.StatusOK, batchResponse{
		Requested: requested,
		Analyzed:  len(reports),
		Reports:   reports,
	})
}

// HandleGetReport returns a cached report by its game ID.
func (h *AnalysisHandler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("game_id")
	if gameID == "" {
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest, "game_id is required")
		return
	}

	report, err := h.uc.GetReport(r.Context(), gameID)
	if err != nil {
		if errors.Is(err, errs.ErrGameNotFound) {
			httpresponse.WriteResponseWithStatus(w, http.StatusNotFound, err.Error())
			return
		}
		h.log.Errorw("failed to load report", "gameID", gameID, "error", err)
		httpresponse.WriteInternalErrorResponse(w)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, report)
}

// HandleHealth reports service liveness.
func (h *AnalysisHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, map[string]string{
		"status": "ok",
		"engine": h.cfg.StockfishPath,
	})
}

type wsProgress struct {
	Type  string `json:"type"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

type wsResult struct {
	Type    string              `json:"type"`
	Reports []domain.GameReport `json:"reports"`
}

type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// HandleAnalyzeWS upgrades to a websocket, reads one batch request and
// streams progress messages while the batch runs, finishing with the
// full list of reports.
func (h *AnalysisHandler) HandleAnalyzeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var req batchRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(wsError{Type: "error", Error: "invalid request: " + err.Error()})
		return
	}

	progress := func(done, total int) {
		if err := conn.WriteJSON(wsProgress{Type: "progress", Done: done, Total: total}); err != nil {
			h.log.Warnw("failed to push progress", "error", err)
		}
	}

	var reports []domain.GameReport
	switch {
	case req.Username != "":
		reports, err = h.uc.AnalyzePlayerMonth(r.Context(), req.Username, req.Year, req.Month, progress)
		if err != nil {
			_ = conn.WriteJSON(wsError{Type: "error", Error: err.Error()})
			return
		}
	case len(req.PGNs) > 0:
		reports = h.uc.AnalyzeBatch(r.Context(), req.PGNs, progress)
	default:
		_ = conn.WriteJSON(wsError{Type: "error", Error: "either pgns or username is required"})
		return
	}

	if err := conn.WriteJSON(wsResult{Type: "result", Reports: reports}); err != nil {
		h.log.Warnw("failed to push result", "error", err)
	}
}

func (h *AnalysisHandler) writeAnalysisError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidMove) || errors.Is(err, errs.ErrInvalidPosition):
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrNoGamesFound):
		httpresponse.WriteResponseWithStatus(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrEngineUnavailable) || errors.Is(err, errs.ErrEngineTimeout):
		h.log.Errorw("engine unavailable", "error", err)
		httpresponse.WriteResponseWithStatus(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Errorw("analysis failed", "error", err)
		httpresponse.WriteInternalErrorResponse(w)
	}
}
