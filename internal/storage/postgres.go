package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/axionmev/flasharb/internal/pipeline"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Test connection
	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// SaveExecution stores a finished execution in PostgreSQL.
func (p *PostgresStorage) SaveExecution(ctx context.Context, ectx *pipeline.Context) error {
	opp := ectx.Opportunity

	var (
		source    string
		nonce     sql.NullInt64
		netProfit float64
		txHash    sql.NullString
		gasUsed   sql.NullInt64
		errCode   sql.NullString
	)
	if ectx.Request != nil {
		source = string(ectx.Request.Source)
		nonce = sql.NullInt64{Int64: int64(ectx.Request.Nonce), Valid: true}
		netProfit = ectx.Request.NetProfit
	}
	if ectx.Result != nil {
		txHash = sql.NullString{String: ectx.Result.TxHash.Hex(), Valid: true}
		gasUsed = sql.NullInt64{Int64: int64(ectx.Result.GasUsed), Valid: true}
	}
	if last := ectx.LastError(); last != nil {
		errCode = sql.NullString{String: string(last.Code), Valid: true}
	}

	query := `
		INSERT INTO executions (
			id, state, hop_count, borrow_token, borrow_amount,
			notional_usd, gross_profit_usd, flash_loan_source, nonce,
			net_profit_usd, tx_hash, gas_used, attempts, gas_bumps,
			error_code, started_at, finished_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		opp.ID,
		string(ectx.State),
		opp.Path.HopCount(),
		opp.Path.BorrowToken.Hex(),
		opp.Path.BorrowAmount.String(),
		opp.BorrowNotionalUSD,
		opp.ExpectedGrossProfit,
		source,
		nonce,
		netProfit,
		txHash,
		gasUsed,
		ectx.Attempts,
		ectx.GasBumps,
		errCode,
		ectx.StartedAt,
		ectx.FinishedAt,
	)

	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}

	p.logger.Debug("execution-stored",
		zap.String("execution-id", opp.ID),
		zap.String("state", string(ectx.State)),
		zap.Int("attempts", ectx.Attempts))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
