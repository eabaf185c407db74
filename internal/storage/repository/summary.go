package repository

import (
	"database/sql"
	"time"

	"github.com/kirillm/signal-bot/internal/domain"
)

// SummaryRepository реализует периодические агрегаты по сделкам
type SummaryRepository struct {
	db *sql.DB
}

// NewSummaryRepository создает новый репозиторий агрегатов
func NewSummaryRepository(db *sql.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// Save сохраняет агрегат
func (r *SummaryRepository) Save(summary *domain.AnalysisSummary) error {
	query := `
		INSERT INTO analysis_summaries (symbol, action_prefix, trade_count, sum_profit_pct, mean_profit_pct, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	return r.db.QueryRow(
		query,
		summary.Symbol,
		summary.ActionPrefix,
		summary.TradeCount,
		summary.SumProfitPct,
		summary.MeanProfitPct,
		summary.CreatedAt,
	).Scan(&summary.ID)
}

// BuildForSymbol считает count/sum/mean profit_pct по успешным сделкам
// символа с данным префиксом действия
func (r *SummaryRepository) BuildForSymbol(symbol, actionPrefix string) (*domain.AnalysisSummary, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(profit_pct), 0), COALESCE(AVG(profit_pct), 0)
		FROM trades
		WHERE symbol = $1 AND action LIKE $2 || '%' AND status = $3
	`
	summary := &domain.AnalysisSummary{
		Symbol:       symbol,
		ActionPrefix: actionPrefix,
		CreatedAt:    time.Now(),
	}
	err := r.db.QueryRow(query, symbol, actionPrefix, domain.StatusFilled).Scan(
		&summary.TradeCount,
		&summary.SumProfitPct,
		&summary.MeanProfitPct,
	)
	if err != nil {
		return nil, err
	}
	return summary, nil
}
