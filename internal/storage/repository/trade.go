package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/kirillm/signal-bot/internal/domain"
)

// TradeRepository реализует журнал сделок
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый репозиторий для журнала сделок
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Save сохраняет запись о попытке сделки
func (r *TradeRepository) Save(trade *domain.TradeRecord) error {
	query := `
		INSERT INTO trades (symbol, action, quantity, price, profit_pct, profit_abs, order_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	return r.db.QueryRow(
		query,
		trade.Symbol,
		trade.Action,
		trade.Quantity,
		trade.Price,
		trade.ProfitPct,
		trade.ProfitAbs,
		trade.OrderID,
		trade.Status,
		trade.CreatedAt,
	).Scan(&trade.ID)
}

// GetRecent получает последние N сделок символа
func (r *TradeRepository) GetRecent(symbol string, limit int) ([]domain.TradeRecord, error) {
	query := `
		SELECT id, symbol, action, quantity, price, profit_pct, profit_abs, COALESCE(order_id, ''), status, created_at
		FROM trades
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.queryTrades(query, symbol, limit)
}

// LastBySide возвращает последнюю успешную сделку символа с данным
// префиксом действия ("BUY" покрывает и BUY, и BUY_DCA)
func (r *TradeRepository) LastBySide(symbol, sidePrefix string) (*domain.TradeRecord, error) {
	query := `
		SELECT id, symbol, action, quantity, price, profit_pct, profit_abs, COALESCE(order_id, ''), status, created_at
		FROM trades
		WHERE symbol = $1 AND action LIKE $2 || '%' AND status = $3
		ORDER BY created_at DESC
		LIMIT 1
	`
	row := r.db.QueryRow(query, symbol, sidePrefix, domain.StatusFilled)

	var trade domain.TradeRecord
	err := row.Scan(
		&trade.ID,
		&trade.Symbol,
		&trade.Action,
		&trade.Quantity,
		&trade.Price,
		&trade.ProfitPct,
		&trade.ProfitAbs,
		&trade.OrderID,
		&trade.Status,
		&trade.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

// CountSince возвращает число успешных сделок и сумму их profit_abs
// начиная с момента since
func (r *TradeRepository) CountSince(since time.Time) (int, float64, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(profit_abs), 0)
		FROM trades
		WHERE created_at >= $1 AND status = $2
	`
	var count int
	var profitSum float64
	if err := r.db.QueryRow(query, since, domain.StatusFilled).Scan(&count, &profitSum); err != nil {
		return 0, 0, err
	}
	return count, profitSum, nil
}

// queryTrades выполняет запрос и возвращает список сделок
func (r *TradeRepository) queryTrades(query string, args ...interface{}) ([]domain.TradeRecord, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		var trade domain.TradeRecord
		err := rows.Scan(
			&trade.ID,
			&trade.Symbol,
			&trade.Action,
			&trade.Quantity,
			&trade.Price,
			&trade.ProfitPct,
			&trade.ProfitAbs,
			&trade.OrderID,
			&trade.Status,
			&trade.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	return trades, rows.Err()
}
