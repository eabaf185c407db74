package repository

import (
	"database/sql"

	"github.com/kirillm/signal-bot/internal/domain"
)

// SignalRepository реализует журнал сигналов
type SignalRepository struct {
	db *sql.DB
}

// NewSignalRepository создает новый репозиторий для журнала сигналов
func NewSignalRepository(db *sql.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

// Save сохраняет сигнал итерации
func (r *SignalRepository) Save(signal *domain.SignalRecord) error {
	query := `
		INSERT INTO signals (symbol, signal, price, rsi, macd, risk_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	return r.db.QueryRow(
		query,
		signal.Symbol,
		signal.Signal,
		signal.Price,
		signal.RSI,
		signal.MACD,
		signal.RiskScore,
		signal.CreatedAt,
	).Scan(&signal.ID)
}

// GetRecent получает последние N сигналов символа
func (r *SignalRepository) GetRecent(symbol string, limit int) ([]domain.SignalRecord, error) {
	query := `
		SELECT id, symbol, signal, price, rsi, macd, risk_score, created_at
		FROM signals
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []domain.SignalRecord
	for rows.Next() {
		var s domain.SignalRecord
		err := rows.Scan(
			&s.ID,
			&s.Symbol,
			&s.Signal,
			&s.Price,
			&s.RSI,
			&s.MACD,
			&s.RiskScore,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		signals = append(signals, s)
	}

	return signals, rows.Err()
}
