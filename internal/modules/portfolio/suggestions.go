package portfolio

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/pulse/internal/database"
	"github.com/aristath/pulse/internal/domain"
)

// ClearSuggestions removes every cached suggestion of the portfolio
func (r *Repository) ClearSuggestions(ctx context.Context, portfolioID int64) error {
	if _, err := r.db.Conn().ExecContext(ctx,
		`DELETE FROM rebalancing_suggestions WHERE portfolio_id = ?`, portfolioID); err != nil {
		return storeErr("clear suggestions", err)
	}
	return nil
}

// SaveSuggestions inserts suggestions without clearing the previous set
func (r *Repository) SaveSuggestions(ctx context.Context, portfolioID int64, suggestions []domain.RebalanceSuggestion) error {
	err := database.WithTransactionContext(ctx, r.db.Conn(), func(tx *sql.Tx) error {
		return insertSuggestions(ctx, tx, portfolioID, suggestions)
	})
	if err != nil {
		return storeErr("save suggestions", err)
	}
	return nil
}

// ReplaceSuggestions swaps the portfolio's suggestion set in one transaction
func (r *Repository) ReplaceSuggestions(ctx context.Context, portfolioID int64, suggestions []domain.RebalanceSuggestion) error {
	err := database.WithTransactionContext(ctx, r.db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM rebalancing_suggestions WHERE portfolio_id = ?`, portfolioID); err != nil {
			return err
		}
		return insertSuggestions(ctx, tx, portfolioID, suggestions)
	})
	if err != nil {
		return storeErr("replace suggestions", err)
	}
	return nil
}

func insertSuggestions(ctx context.Context, ex execer, portfolioID int64, suggestions []domain.RebalanceSuggestion) error {
	for _, s := range suggestions {
		if _, err := ex.ExecContext(ctx,
			`INSERT INTO rebalancing_suggestions (portfolio_id, ticker, action, suggested_quantity,
				suggested_value, reason, current_weight_pct, target_weight_pct, confidence_score,
				priority, created_at, expires_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			portfolioID, s.Ticker, string(s.Action), s.SuggestedQuantity, s.SuggestedValue, s.Reason,
			s.CurrentWeightPct, s.TargetWeightPct, s.ConfidenceScore, s.Priority,
			s.CreatedAt.Unix(), s.ExpiresAt.Unix()); err != nil {
			return fmt.Errorf("insert suggestion %s: %w", s.Ticker, err)
		}
	}
	return nil
}

// GetSuggestions returns the suggestions still valid at now, by priority
func (r *Repository) GetSuggestions(ctx context.Context, portfolioID int64, now time.Time) ([]domain.RebalanceSuggestion, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT ticker, action, suggested_quantity, suggested_value, reason, current_weight_pct,
			target_weight_pct, confidence_score, priority, created_at, expires_at
		 FROM rebalancing_suggestions
		 WHERE portfolio_id = ? AND expires_at > ?
		 ORDER BY priority`, portfolioID, now.Unix())
	if err != nil {
		return nil, storeErr("query suggestions", err)
	}
	defer rows.Close()

	suggestions := make([]domain.RebalanceSuggestion, 0)
	for rows.Next() {
		var (
			s                    domain.RebalanceSuggestion
			action               string
			createdAt, expiresAt int64
		)
		if err := rows.Scan(&s.Ticker, &action, &s.SuggestedQuantity, &s.SuggestedValue, &s.Reason,
			&s.CurrentWeightPct, &s.TargetWeightPct, &s.ConfidenceScore, &s.Priority,
			&createdAt, &expiresAt); err != nil {
			return nil, storeErr("scan suggestion", err)
		}
		s.Action = domain.Action(action)
		s.CreatedAt = time.Unix(createdAt, 0).UTC()
		s.ExpiresAt = time.Unix(expiresAt, 0).UTC()
		suggestions = append(suggestions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate suggestions", err)
	}

	return suggestions, nil
}

// DeleteExpiredSuggestions purges suggestions that expired at or before now
func (r *Repository) DeleteExpiredSuggestions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.Conn().ExecContext(ctx,
		`DELETE FROM rebalancing_suggestions WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, storeErr("delete expired suggestions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("rows affected", err)
	}
	if n > 0 {
		r.log.Debug().Int64("deleted", n).Msg("Purged expired suggestions")
	}
	return n, nil
}
