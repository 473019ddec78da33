package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/aristath/pulse/internal/database"
	"github.com/aristath/pulse/internal/domain"
	"github.com/aristath/pulse/internal/modules/portfolio"
	"github.com/aristath/pulse/internal/modules/rebalancing"
	testingutil "github.com/aristath/pulse/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (http.Handler, int64) {
	t.Helper()
	ctx := context.Background()

	repo := portfolio.NewRepository(testingutil.NewTestDB(t, database.NamePortfolio), zerolog.Nop())
	id, err := repo.CreatePortfolio(ctx, "user-1", "main", 80000)
	require.NoError(t, err)
	hid, err := repo.UpsertHolding(ctx, domain.Holding{PortfolioID: id, Ticker: "AAPL", Shares: 100, AvgCost: 150, CurrentPrice: 200})
	require.NoError(t, err)
	require.NoError(t, repo.UpdateHoldingSignal(ctx, hid, domain.SignalHold, 60, "m"))
	require.NoError(t, repo.UpdatePortfolioTotals(ctx, id))

	svc := rebalancing.NewService(rebalancing.NewEngine(), repo, time.Hour, zerolog.Nop())
	r := chi.NewRouter()
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(r)
	return r, id
}

type suggestionsBody struct {
	Data struct {
		PortfolioID int64                        `json:"portfolio_id"`
		Status      string                       `json:"status"`
		Suggestions []domain.RebalanceSuggestion `json:"suggestions"`
		Count       int                          `json:"count"`
	} `json:"data"`
}

func TestHandleGetSuggestions(t *testing.T) {
	router, id := setupRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/portfolios/"+strconv.FormatInt(id, 10)+"/suggestions", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body suggestionsBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, id, body.Data.PortfolioID)
	require.Equal(t, 1, body.Data.Count)
	assert.Equal(t, "AAPL", body.Data.Suggestions[0].Ticker)
	assert.Equal(t, domain.ActionTrim, body.Data.Suggestions[0].Action)
}

func TestHandleRegenerate(t *testing.T) {
	router, id := setupRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/portfolios/"+strconv.FormatInt(id, 10)+"/suggestions/regenerate", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body suggestionsBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, rebalancing.StatusOK, body.Data.Status)
	assert.Equal(t, 1, body.Data.Count)
}

func TestHandlers_Errors(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"non numeric id", http.MethodGet, "/portfolios/abc/suggestions", http.StatusBadRequest},
		{"zero id", http.MethodPost, "/portfolios/0/suggestions/regenerate", http.StatusBadRequest},
		{"unknown portfolio", http.MethodGet, "/portfolios/9999/suggestions", http.StatusNotFound},
		{"unknown portfolio regenerate", http.MethodPost, "/portfolios/9999/suggestions/regenerate", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
