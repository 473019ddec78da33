package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/pulse/internal/domain"
	"github.com/vmihailenco/msgpack/v5"
)

const asOfLayout = "2006-01-02"

// SaveRiskMetrics upserts the snapshot keyed by (portfolio, as-of day)
func (r *Repository) SaveRiskMetrics(ctx context.Context, portfolioID int64, m *domain.RiskMetrics) error {
	if m == nil {
		return fmt.Errorf("%w: nil risk metrics", domain.ErrValidation)
	}

	distribution, err := msgpack.Marshal(m.SignalDistribution)
	if err != nil {
		return storeErr("encode signal distribution", err)
	}

	calculatedAt := m.CalculatedAt
	if calculatedAt.IsZero() {
		calculatedAt = r.now()
	}

	_, err = r.db.Conn().ExecContext(ctx,
		`INSERT INTO risk_metrics (portfolio_id, as_of, volatility, sharpe_ratio, beta,
			max_drawdown_pct, top_holding_weight_pct, top5_weight_pct, herfindahl_index,
			signal_distribution, holdings_count, total_value, calculated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (portfolio_id, as_of) DO UPDATE SET
			volatility = excluded.volatility,
			sharpe_ratio = excluded.sharpe_ratio,
			beta = excluded.beta,
			max_drawdown_pct = excluded.max_drawdown_pct,
			top_holding_weight_pct = excluded.top_holding_weight_pct,
			top5_weight_pct = excluded.top5_weight_pct,
			herfindahl_index = excluded.herfindahl_index,
			signal_distribution = excluded.signal_distribution,
			holdings_count = excluded.holdings_count,
			total_value = excluded.total_value,
			calculated_at = excluded.calculated_at`,
		portfolioID, domain.AsOfDate(m.AsOf).Format(asOfLayout),
		nullFloat(m.Volatility), nullFloat(m.SharpeRatio), nullFloat(m.Beta),
		m.MaxDrawdownPct, m.TopHoldingWeightPct, m.Top5WeightPct, m.HerfindahlIndex,
		distribution, m.HoldingsCount, m.TotalValue, calculatedAt.Unix())
	if err != nil {
		return storeErr("upsert risk metrics", err)
	}
	return nil
}

// GetCachedRiskMetrics returns the snapshot for the as-of day, or nil when none exists
func (r *Repository) GetCachedRiskMetrics(ctx context.Context, portfolioID int64, asOf time.Time) (*domain.RiskMetrics, error) {
	day := domain.AsOfDate(asOf)

	var (
		m                        domain.RiskMetrics
		volatility, sharpe, beta sql.NullFloat64
		distribution             []byte
		calculatedAt             int64
	)
	err := r.db.Conn().QueryRowContext(ctx,
		`SELECT volatility, sharpe_ratio, beta, max_drawdown_pct, top_holding_weight_pct,
			top5_weight_pct, herfindahl_index, signal_distribution, holdings_count, total_value,
			calculated_at
		 FROM risk_metrics WHERE portfolio_id = ? AND as_of = ?`,
		portfolioID, day.Format(asOfLayout),
	).Scan(&volatility, &sharpe, &beta, &m.MaxDrawdownPct, &m.TopHoldingWeightPct,
		&m.Top5WeightPct, &m.HerfindahlIndex, &distribution, &m.HoldingsCount, &m.TotalValue,
		&calculatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("query risk metrics", err)
	}

	m.PortfolioID = portfolioID
	m.AsOf = day
	m.Volatility = floatPtr(volatility)
	m.SharpeRatio = floatPtr(sharpe)
	m.Beta = floatPtr(beta)
	m.CalculatedAt = time.Unix(calculatedAt, 0).UTC()

	m.SignalDistribution = map[string]int{}
	if len(distribution) > 0 {
		if err := msgpack.Unmarshal(distribution, &m.SignalDistribution); err != nil {
			return nil, storeErr("decode signal distribution", err)
		}
	}

	return &m, nil
}
