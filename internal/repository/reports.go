package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/danielpmchugh/chess-pattern-analyzer/internal/adapters"
	"github.com/danielpmchugh/chess-pattern-analyzer/internal/bootstrap"
	"github.com/danielpmchugh/chess-pattern-analyzer/internal/domain/analysis"
	errs "github.com/danielpmchugh/chess-pattern-analyzer/internal/errors"
)

// ReportRepository caches finished analysis reports in Redis keyed by game
// ID, so re-submitting the same PGN does not re-run the engine.
type ReportRepository struct {
	cfg   *bootstrap.Config
	log   *zap.SugaredLogger
	redis *redis.Client
}

func NewReportRepository(cfg *bootstrap.Config, log *zap.SugaredLogger, redisAdapter *adapters.AdapterRedis) *ReportRepository {
	return &ReportRepository{
		cfg:   cfg,
		log:   log,
		redis: redisAdapter.GetClient(),
	}
}

func reportKey(gameID string) string {
	return "analysis:report:" + gameID
}

func (r *ReportRepository) Save(ctx context.Context, report *analysis.GameReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report %s: %w", report.GameID, err)
	}

	ttl := time.Duration(r.cfg.CacheTTLAnalysisSec) * time.Second
	if err := r.redis.Set(ctx, reportKey(report.GameID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store report %s: %w", report.GameID, err)
	}
	return nil
}

func (r *ReportRepository) Get(ctx context.Context, gameID string) (*analysis.GameReport, error) {
	raw, err := r.redis.Get(ctx, reportKey(gameID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errs.ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to read report %s: %w", gameID, err)
	}

	var report analysis.GameReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report %s: %w", gameID, err)
	}
	return &report, nil
}
