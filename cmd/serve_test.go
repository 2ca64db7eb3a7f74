package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliscan/aliscan-cli/internal/billing"
	"github.com/aliscan/aliscan-cli/internal/config"
	"github.com/aliscan/aliscan-cli/internal/cost"
	"github.com/aliscan/aliscan-cli/internal/extract"
	"github.com/aliscan/aliscan-cli/internal/model"
	"github.com/aliscan/aliscan-cli/internal/scorer"
)

const testSupplierBlock = "Shenzhen Audio Co., Ltd.\n" +
	"Fournisseur verifie\n" +
	"Note 4.6/5\n" +
	"1 275 avis | 5 430 vendus\n" +
	"Livraison a temps : 97.5%"

func newTestEnv(t *testing.T) *appEnv {
	t.Helper()

	c := &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
		},
		Analysis: config.AnalysisConfig{SimilarityThreshold: 0.70, BatchConcurrency: 4},
		Scorer:   scorer.DefaultConfig(),
		Vocab:    extract.DefaultVocabulary(),
		Billing:  config.BillingConfig{Limits: billing.DefaultLimits()},
		Cost:     cost.DefaultRates(),
		Track:    config.TrackConfig{Simulate: true, CacheTTLHours: 6},
		Server:   config.ServerConfig{Port: 0, AllowedOrigins: []string{"*"}},
	}

	env, err := newEnv(context.Background(), c)
	require.NoError(t, err)
	t.Cleanup(env.Close)
	return env
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealth(t *testing.T) {
	h := newRouter(newTestEnv(t))

	rr := doJSON(t, h, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouterAnalyze(t *testing.T) {
	env := newTestEnv(t)
	h := newRouter(env)

	rr := doJSON(t, h, http.MethodPost, "/api/analyze", map[string]any{
		"blocks": []string{testSupplierBlock},
		"user":   "u1",
	})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var a model.Analysis
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &a))
	assert.Equal(t, model.AnalysisStatusComplete, a.Status)
	require.NotNil(t, a.Supplier)
	assert.Equal(t, "Shenzhen Audio Co., Ltd.", a.Supplier.Name)
	require.NotNil(t, a.Result)
	assert.NotEmpty(t, a.Result.Label)

	// One trial credit was consumed and persisted.
	ledger, err := env.store.GetLedger(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, ledger)
	assert.Equal(t, billing.DefaultLimits().TrialCredits-1, ledger.Trial)
}

func TestRouterAnalyzeMissingBlocks(t *testing.T) {
	h := newRouter(newTestEnv(t))

	rr := doJSON(t, h, http.MethodPost, "/api/analyze", map[string]any{"user": "u1"})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "blocks is required")
}

func TestRouterAnalyzeInvalidJSON(t *testing.T) {
	h := newRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader([]byte("not json")))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")
}

func TestRouterAnalyzeMixedVendors(t *testing.T) {
	h := newRouter(newTestEnv(t))

	rr := doJSON(t, h, http.MethodPost, "/api/analyze", map[string]any{
		"blocks": []string{
			"Shenzhen Audio Co., Ltd.\nNote 4.6/5",
			"Guangzhou Lighting Factory\nNote 3.9/5",
		},
		"user": "u1",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "mixes several vendors")
}

func TestRouterAnalyzeQuotaExhausted(t *testing.T) {
	env := newTestEnv(t)
	h := newRouter(env)

	// A ledger with nothing left: trial spent, today's free uses consumed.
	now := timeNow()
	ledger := billing.NewLedger(env.cfg.Billing.Limits)
	ledger.Trial = 0
	ledger.Day = billing.DayWindow{Date: now.Format("2006-01-02"), Used: env.cfg.Billing.Limits.DailyFree}
	require.NoError(t, env.store.SaveLedger(context.Background(), "broke", ledger))

	rr := doJSON(t, h, http.MethodPost, "/api/analyze", map[string]any{
		"blocks": []string{testSupplierBlock},
		"user":   "broke",
	})

	assert.Equal(t, http.StatusPaymentRequired, rr.Code)
	assert.Contains(t, rr.Body.String(), "quota exhausted")
}

func TestRouterHistoryLifecycle(t *testing.T) {
	env := newTestEnv(t)
	h := newRouter(env)

	rr := doJSON(t, h, http.MethodPost, "/api/analyze", map[string]any{
		"blocks": []string{testSupplierBlock},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var created model.Analysis
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	rr = doJSON(t, h, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list []model.Analysis
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	rr = doJSON(t, h, http.MethodGet, "/api/history/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, http.MethodDelete, "/api/history/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/api/history/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterHistoryListEmpty(t *testing.T) {
	h := newRouter(newTestEnv(t))

	rr := doJSON(t, h, http.MethodGet, "/api/history", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]\n", rr.Body.String())
}

func TestRouterTrack(t *testing.T) {
	env := newTestEnv(t)
	h := newRouter(env)

	rr := doJSON(t, h, http.MethodPost, "/api/track/LP123456789CN", nil)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var tr model.Tracking
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tr))
	assert.Equal(t, "LP123456789CN", tr.Number)
	assert.NotEmpty(t, tr.Status)
	assert.NotEmpty(t, tr.Events)

	// Second call is served from the cache.
	cached, err := env.store.GetCachedTracking(context.Background(), "LP123456789CN")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, tr.Status, cached.Status)
}

func TestRouterTrackBadNumber(t *testing.T) {
	h := newRouter(newTestEnv(t))

	rr := doJSON(t, h, http.MethodPost, "/api/track/ab", nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouterCost(t *testing.T) {
	h := newRouter(newTestEnv(t))

	rr := doJSON(t, h, http.MethodPost, "/api/cost", map[string]any{
		"unit_price": 10.0,
		"quantity":   5,
		"shipping":   20.0,
	})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var b cost.Breakdown
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &b))
	assert.InDelta(t, 50.0, b.Goods, 0.001)
	assert.Greater(t, b.Total, b.Goods+b.Shipping)
}

func TestRouterCostInvalid(t *testing.T) {
	h := newRouter(newTestEnv(t))

	rr := doJSON(t, h, http.MethodPost, "/api/cost", map[string]any{
		"unit_price": -1.0,
		"quantity":   1,
	})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouterMargin(t *testing.T) {
	h := newRouter(newTestEnv(t))

	rr := doJSON(t, h, http.MethodPost, "/api/margin", map[string]any{
		"unit_cost":    8.0,
		"resale_price": 12.0,
	})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var m cost.Margin
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
	assert.InDelta(t, 4.0, m.GrossPerUnit, 0.001)
}

func TestRouterBillingPackAndStatus(t *testing.T) {
	h := newRouter(newTestEnv(t))

	rr := doJSON(t, h, http.MethodPost, "/api/billing/u2/pack", map[string]any{"credits": 50})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var ledger billing.Ledger
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ledger))
	assert.Equal(t, 50, ledger.Pack)

	rr = doJSON(t, h, http.MethodGet, "/api/billing/u2", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var status struct {
		Quota billing.Quota `json:"quota"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.True(t, status.Quota.OK)
	assert.Equal(t, billing.ModePack, status.Quota.Mode)
}

func TestRouterBillingSubscribe(t *testing.T) {
	h := newRouter(newTestEnv(t))

	rr := doJSON(t, h, http.MethodPost, "/api/billing/u3/subscribe", map[string]any{"plan": "monthly"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var ledger billing.Ledger
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ledger))
	assert.True(t, ledger.SubActive(timeNow()))
}

func TestRouterShopLink(t *testing.T) {
	h := newRouter(newTestEnv(t))

	rr := doJSON(t, h, http.MethodGet, "/api/shoplink?shop=jumia&country=ci&q=casque+bluetooth", nil)

	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		URL   string   `json:"url"`
		Shops []string `json:"shops"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Contains(t, body.URL, "jumia.ci")
	assert.Contains(t, body.Shops, "aliexpress")
}

func TestRouterShopLinkMissingQuery(t *testing.T) {
	h := newRouter(newTestEnv(t))

	rr := doJSON(t, h, http.MethodGet, "/api/shoplink", nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
