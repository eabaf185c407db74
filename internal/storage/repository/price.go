package repository

import (
	"database/sql"

	"github.com/kirillm/signal-bot/internal/domain"
)

// PriceRepository реализует журнал цен
type PriceRepository struct {
	db *sql.DB
}

// NewPriceRepository создает новый репозиторий для журнала цен
func NewPriceRepository(db *sql.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// Save сохраняет замер цены
func (r *PriceRepository) Save(sample *domain.PriceSample) error {
	query := `
		INSERT INTO prices (symbol, price, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	return r.db.QueryRow(
		query,
		sample.Symbol,
		sample.Price,
		sample.CreatedAt,
	).Scan(&sample.ID)
}

// GetRecent получает последние N замеров цены символа (от новых к старым)
func (r *PriceRepository) GetRecent(symbol string, limit int) ([]domain.PriceSample, error) {
	query := `
		SELECT id, symbol, price, created_at
		FROM prices
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []domain.PriceSample
	for rows.Next() {
		var sample domain.PriceSample
		err := rows.Scan(
			&sample.ID,
			&sample.Symbol,
			&sample.Price,
			&sample.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}

	return samples, rows.Err()
}
