package bootstrap

import (
	"time"

	"github.com/spf13/viper"

	"github.com/danielpmchugh/chess-pattern-analyzer/internal/domain/analysis"
)

type Config struct {
	ServerPort          string `mapstructure:"SERVER_PORT"`
	IsLocalCors         bool   `mapstructure:"LOCAL_CORS"`
	StockfishPath       string `mapstructure:"STOCKFISH_PATH"`
	StockfishDepth      int    `mapstructure:"STOCKFISH_DEPTH"`
	StockfishThreads    int    `mapstructure:"STOCKFISH_THREADS"`
	StockfishHashMB     int    `mapstructure:"STOCKFISH_HASH"`
	StockfishMultiPV    int    `mapstructure:"STOCKFISH_MULTIPV"`
	StockfishMoveTimeMS int    `mapstructure:"STOCKFISH_MOVE_TIME_MS"`
	RedisUrl            string `mapstructure:"REDIS_URL"`
	ChessComBaseUrl     string `mapstructure:"CHESS_COM_BASE_URL"`
	CacheTTLAnalysisSec int    `mapstructure:"CACHE_TTL_ANALYSIS_SEC"`
	CacheTTLGamesSec    int    `mapstructure:"CACHE_TTL_GAMES_SEC"`
}

func Setup(cfgPath string) (*Config, error) {
	viper.SetConfigFile(cfgPath)

	setDefaults()

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	var cfg Config

	err = viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("STOCKFISH_PATH", "/usr/local/bin/stockfish")
	viper.SetDefault("STOCKFISH_DEPTH", 18)
	viper.SetDefault("STOCKFISH_THREADS", 2)
	viper.SetDefault("STOCKFISH_HASH", 128)
	viper.SetDefault("STOCKFISH_MULTIPV", 3)
	viper.SetDefault("STOCKFISH_MOVE_TIME_MS", 500)
	viper.SetDefault("CHESS_COM_BASE_URL", "https://api.chess.com/pub")
	viper.SetDefault("CACHE_TTL_ANALYSIS_SEC", 86400)
	viper.SetDefault("CACHE_TTL_GAMES_SEC", 3600)
}

// EngineConfig translates the flat settings into the session configuration
// handed to the stockfish package.
func (c *Config) EngineConfig() analysis.EngineConfig {
	return analysis.EngineConfig{
		Path:     c.StockfishPath,
		Depth:    c.StockfishDepth,
		MoveTime: time.Duration(c.StockfishMoveTimeMS) * time.Millisecond,
		Threads:  c.StockfishThreads,
		HashMB:   c.StockfishHashMB,
		MultiPV:  c.StockfishMultiPV,
	}
}
