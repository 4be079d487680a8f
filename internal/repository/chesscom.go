package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/danielpmchugh/chess-pattern-analyzer/internal/adapters"
	"github.com/danielpmchugh/chess-pattern-analyzer/internal/bootstrap"
	errs "github.com/danielpmchugh/chess-pattern-analyzer/internal/errors"
)

const (
	fetchAttempts = 3
	retryBaseWait = 500 * time.Millisecond
)

// ChessComRepository pulls player game archives from the chess.com public
// API. Monthly archives are immutable once the month is over, so responses
// are cached in Redis.
type ChessComRepository struct {
	cfg    *bootstrap.Config
	log    *zap.SugaredLogger
	client *http.Client
	redis  *redis.Client
}

func NewChessComRepository(cfg *bootstrap.Config, log *zap.SugaredLogger, redisAdapter *adapters.AdapterRedis) *ChessComRepository {
	return &ChessComRepository{
		cfg:    cfg,
		log:    log,
		client: &http.Client{Timeout: 30 * time.Second},
		redis:  redisAdapter.GetClient(),
	}
}

type archivesResponse struct {
	Archives []string `json:"archives"`
}

type monthlyGamesResponse struct {
	Games []struct {
		PGN         string `json:"pgn"`
		TimeControl string `json:"time_control"`
		EndTime     int64  `json:"end_time"`
	} `json:"games"`
}

// FetchArchives lists the monthly archive URLs available for a player.
func (r *ChessComRepository) FetchArchives(ctx context.Context, username string) ([]string, error) {
	url := fmt.Sprintf("%s/player/%s/games/archives", r.cfg.ChessComBaseUrl, username)

	var resp archivesResponse
	if err := r.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if len(resp.Archives) == 0 {
		return nil, errs.ErrNoGamesFound
	}
	return resp.Archives, nil
}

// FetchGames returns the PGN texts of every game the player finished in the
// given month.
func (r *ChessComRepository) FetchGames(ctx context.Context, username string, year, month int) ([]string, error) {
	cacheKey := fmt.Sprintf("chesscom:games:%s:%04d-%02d", username, year, month)
	if cached, err := r.redis.Get(ctx, cacheKey).Result(); err == nil {
		var pgns []string
		if err := json.Unmarshal([]byte(cached), &pgns); err == nil {
			r.log.Debugw("games served from cache", "key", cacheKey, "count", len(pgns))
			return pgns, nil
		}
	}

	url := fmt.Sprintf("%s/player/%s/games/%04d/%02d", r.cfg.ChessComBaseUrl, username, year, month)

	var resp monthlyGamesResponse
	if err := r.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	pgns := make([]string, 0, len(resp.Games))
	for _, g := range resp.Games {
		if g.PGN != "" {
			pgns = append(pgns, g.PGN)
		}
	}
	if len(pgns) == 0 {
		return nil, errs.ErrNoGamesFound
	}

	if payload, err := json.Marshal(pgns); err == nil {
		ttl := time.Duration(r.cfg.CacheTTLGamesSec) * time.Second
		if err := r.redis.Set(ctx, cacheKey, payload, ttl).Err(); err != nil {
			r.log.Warnw("failed to cache games", "key", cacheKey, "error", err)
		}
	}

	return pgns, nil
}

// getJSON fetches a URL with retries. Rate limiting and server errors are
// retried with exponential backoff, client errors are not.
func (r *ChessComRepository) getJSON(ctx context.Context, url string, dst any) error {
	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			wait := retryBaseWait << (attempt - 1)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to build request for %s: %w", url, err)
		}

		resp, err := r.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to fetch %s: %w", url, err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			err = json.NewDecoder(resp.Body).Decode(dst)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("failed to decode response from %s: %w", url, err)
			}
			return nil
		case resp.StatusCode == http.StatusNotFound:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return errs.ErrNoGamesFound
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("chess.com returned status %d for %s", resp.StatusCode, url)
			r.log.Warnw("retrying chess.com request", "url", url, "status", resp.StatusCode, "attempt", attempt+1)
		default:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return fmt.Errorf("chess.com returned status %d for %s", resp.StatusCode, url)
		}
	}
	return lastErr
}
