// Package portfolio provides the SQLite-backed portfolio store.
package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/pulse/internal/database"
	"github.com/aristath/pulse/internal/domain"
	"github.com/aristath/pulse/internal/utils"
	"github.com/rs/zerolog"
)

const holdingColumns = `id, portfolio_id, ticker, shares, avg_cost, current_price,
	current_signal, signal_confidence, signal_model, updated_at`

// Repository handles portfolio, holding, suggestion and risk snapshot persistence.
// It implements domain.PortfolioStore.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
	now func() time.Time
}

// NewRepository creates a new portfolio repository
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
		now: time.Now,
	}
}

var _ domain.PortfolioStore = (*Repository)(nil)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStore, op, err)
}

// CreatePortfolio inserts an active portfolio and returns its id
func (r *Repository) CreatePortfolio(ctx context.Context, userID, name string, cash float64) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	res, err := r.db.Conn().ExecContext(ctx,
		`INSERT INTO portfolios (user_id, name, cash, total_value, active, updated_at)
		 VALUES (?, ?, ?, ?, 1, ?)`,
		userID, name, cash, cash, r.now().Unix())
	if err != nil {
		return 0, storeErr("insert portfolio", err)
	}
	return res.LastInsertId()
}

// SetPortfolioActive toggles whether signal propagation reaches the portfolio
func (r *Repository) SetPortfolioActive(ctx context.Context, portfolioID int64, active bool) error {
	res, err := r.db.Conn().ExecContext(ctx,
		`UPDATE portfolios SET active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), r.now().Unix(), portfolioID)
	if err != nil {
		return storeErr("update portfolio", err)
	}
	return requireAffected(res, "portfolio", portfolioID)
}

// UpsertHolding inserts or updates the position of a ticker in a portfolio.
// Signal columns are left untouched on update.
func (r *Repository) UpsertHolding(ctx context.Context, h domain.Holding) (int64, error) {
	ticker := utils.NormalizeTicker(h.Ticker)
	if ticker == "" {
		return 0, fmt.Errorf("%w: ticker is required", domain.ErrValidation)
	}
	if h.Shares < 0 || h.AvgCost < 0 {
		return 0, fmt.Errorf("%w: shares and avg cost must not be negative", domain.ErrValidation)
	}

	var id int64
	err := r.db.Conn().QueryRowContext(ctx,
		`INSERT INTO holdings (portfolio_id, ticker, shares, avg_cost, current_price,
			current_signal, signal_confidence, signal_model, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (portfolio_id, ticker) DO UPDATE SET
			shares = excluded.shares,
			avg_cost = excluded.avg_cost,
			current_price = excluded.current_price,
			updated_at = excluded.updated_at
		 RETURNING id`,
		h.PortfolioID, ticker, h.Shares, h.AvgCost, h.CurrentPrice,
		nullString(string(h.CurrentSignal)), h.SignalConfidence, nullString(h.SignalModel),
		r.now().Unix(),
	).Scan(&id)
	if err != nil {
		return 0, storeErr("upsert holding", err)
	}
	return id, nil
}

// GetPortfolio returns the portfolio with its holdings. TotalValue is
// recomputed from the loaded holdings; the stored column may lag behind
// holding upserts.
func (r *Repository) GetPortfolio(ctx context.Context, portfolioID int64) (*domain.Portfolio, error) {
	var (
		p         domain.Portfolio
		active    int
		updatedAt int64
	)
	err := r.db.Conn().QueryRowContext(ctx,
		`SELECT id, user_id, name, cash, total_value, active, updated_at
		 FROM portfolios WHERE id = ?`, portfolioID,
	).Scan(&p.ID, &p.UserID, &p.Name, &p.Cash, &p.TotalValue, &active, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: portfolio %d", domain.ErrNotFound, portfolioID)
	}
	if err != nil {
		return nil, storeErr("query portfolio", err)
	}
	p.Active = active == 1
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	holdings, err := r.GetHoldings(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	p.Holdings = holdings
	p.TotalValue = domain.MarketValue(p.Cash, holdings)

	return &p, nil
}

// GetHoldings returns the portfolio's holdings ordered by ticker
func (r *Repository) GetHoldings(ctx context.Context, portfolioID int64) ([]domain.Holding, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT `+holdingColumns+` FROM holdings WHERE portfolio_id = ? ORDER BY ticker`, portfolioID)
	if err != nil {
		return nil, storeErr("query holdings", err)
	}
	defer rows.Close()

	holdings := make([]domain.Holding, 0)
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, storeErr("scan holding", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate holdings", err)
	}

	return holdings, nil
}

// FindHoldingsByTicker returns the holdings of ticker across active portfolios
func (r *Repository) FindHoldingsByTicker(ctx context.Context, ticker string) ([]domain.PortfolioHolding, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT h.id, h.portfolio_id, h.ticker, h.shares, h.avg_cost, h.current_price,
			h.current_signal, h.signal_confidence, h.signal_model, h.updated_at, p.user_id
		 FROM holdings h
		 JOIN portfolios p ON p.id = h.portfolio_id
		 WHERE h.ticker = ? AND p.active = 1
		 ORDER BY h.portfolio_id, h.id`, utils.NormalizeTicker(ticker))
	if err != nil {
		return nil, storeErr("query holdings by ticker", err)
	}
	defer rows.Close()

	var result []domain.PortfolioHolding
	for rows.Next() {
		var (
			ph        domain.PortfolioHolding
			signal    sql.NullString
			model     sql.NullString
			updatedAt int64
		)
		if err := rows.Scan(&ph.ID, &ph.PortfolioID, &ph.Ticker, &ph.Shares, &ph.AvgCost,
			&ph.CurrentPrice, &signal, &ph.SignalConfidence, &model, &updatedAt, &ph.UserID); err != nil {
			return nil, storeErr("scan holding", err)
		}
		ph.CurrentSignal = domain.Signal(signal.String)
		ph.SignalModel = model.String
		ph.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		result = append(result, ph)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate holdings", err)
	}

	return result, nil
}

// UpdateHoldingSignal writes the latest signal of a holding
func (r *Repository) UpdateHoldingSignal(ctx context.Context, holdingID int64, signal domain.Signal, confidence float64, model string) error {
	res, err := r.db.Conn().ExecContext(ctx,
		`UPDATE holdings SET current_signal = ?, signal_confidence = ?, signal_model = ?, updated_at = ?
		 WHERE id = ?`,
		nullString(string(signal)), confidence, nullString(model), r.now().Unix(), holdingID)
	if err != nil {
		return storeErr("update holding signal", err)
	}
	return requireAffected(res, "holding", holdingID)
}

// UpdatePortfolioTotals recomputes total value as cash plus holding values
func (r *Repository) UpdatePortfolioTotals(ctx context.Context, portfolioID int64) error {
	res, err := r.db.Conn().ExecContext(ctx,
		`UPDATE portfolios SET
			total_value = cash + COALESCE((SELECT SUM(shares * current_price) FROM holdings WHERE portfolio_id = ?), 0),
			updated_at = ?
		 WHERE id = ?`,
		portfolioID, r.now().Unix(), portfolioID)
	if err != nil {
		return storeErr("update portfolio totals", err)
	}
	return requireAffected(res, "portfolio", portfolioID)
}

// ListActivePortfolioIDs returns the ids of all active portfolios
func (r *Repository) ListActivePortfolioIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `SELECT id FROM portfolios WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, storeErr("query active portfolios", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scan portfolio id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate portfolio ids", err)
	}
	return ids, nil
}

func scanHolding(row rowScanner) (domain.Holding, error) {
	var (
		h         domain.Holding
		signal    sql.NullString
		model     sql.NullString
		updatedAt int64
	)
	if err := row.Scan(&h.ID, &h.PortfolioID, &h.Ticker, &h.Shares, &h.AvgCost, &h.CurrentPrice,
		&signal, &h.SignalConfidence, &model, &updatedAt); err != nil {
		return h, err
	}
	h.CurrentSignal = domain.Signal(signal.String)
	h.SignalModel = model.String
	h.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return h, nil
}

func requireAffected(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d", domain.ErrNotFound, what, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
