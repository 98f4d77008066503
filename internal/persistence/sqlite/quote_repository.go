package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

// QuoteRepository implements persistence.QuoteRepository using SQLite
type QuoteRepository struct {
	pool *ConnectionPool
}

// NewQuoteRepository creates a new SQLite quote repository
func NewQuoteRepository(pool *ConnectionPool) *QuoteRepository {
	return &QuoteRepository{pool: pool}
}

// ListCustomQuotes returns custom quotes in insertion order
func (r *QuoteRepository) ListCustomQuotes(ctx context.Context) ([]persistence.CustomQuote, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, text, category, author, created_at_ms
		FROM custom_quotes
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	var quotes []persistence.CustomQuote
	for rows.Next() {
		var (
			quote     persistence.CustomQuote
			createdAt int64
		)
		if err := rows.Scan(&quote.ID, &quote.Text, &quote.Category, &quote.Author, &createdAt); err != nil {
			return nil, MapError(err)
		}
		quote.CreatedAt = time.UnixMilli(createdAt).UTC()
		quotes = append(quotes, quote)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return quotes, nil
}

// AddCustomQuote inserts quote; a duplicate id maps to persistence.ErrConflict
func (r *QuoteRepository) AddCustomQuote(ctx context.Context, quote persistence.CustomQuote) error {
	return r.pool.WithWriteTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO custom_quotes (id, text, category, author, created_at_ms)
			VALUES (?, ?, ?, ?, ?)
		`, quote.ID, quote.Text, quote.Category, quote.Author, quote.CreatedAt.UnixMilli())
		return err
	})
}

// DeleteCustomQuote removes the quote with id
func (r *QuoteRepository) DeleteCustomQuote(ctx context.Context, id string) error {
	return r.pool.WithWriteTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, "DELETE FROM custom_quotes WHERE id = ?", id)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// LoadQuoteSettings reads the single settings row
func (r *QuoteRepository) LoadQuoteSettings(ctx context.Context) (persistence.QuoteSettings, bool, error) {
	var settings persistence.QuoteSettings
	err := r.pool.DB().QueryRowContext(ctx, `
		SELECT category, source, show_productivity_stats
		FROM quote_settings
		WHERE id = 1
	`).Scan(&settings.Category, &settings.Source, &settings.ShowProductivityStats)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.QuoteSettings{}, false, nil
	}
	if err != nil {
		return persistence.QuoteSettings{}, false, MapError(err)
	}
	return settings, true, nil
}

// SaveQuoteSettings upserts the single settings row
func (r *QuoteRepository) SaveQuoteSettings(ctx context.Context, settings persistence.QuoteSettings) error {
	return r.pool.WithWriteTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO quote_settings (id, category, source, show_productivity_stats)
			VALUES (1, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				category = excluded.category,
				source = excluded.source,
				show_productivity_stats = excluded.show_productivity_stats
		`, settings.Category, settings.Source, settings.ShowProductivityStats)
		return err
	})
}
