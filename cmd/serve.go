package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aliscan/aliscan-cli/internal/billing"
	"github.com/aliscan/aliscan-cli/internal/cost"
	"github.com/aliscan/aliscan-cli/internal/model"
	"github.com/aliscan/aliscan-cli/internal/pipeline"
	"github.com/aliscan/aliscan-cli/internal/shoplink"
	"github.com/aliscan/aliscan-cli/internal/store"
	"github.com/aliscan/aliscan-cli/internal/track"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func newRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: env.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", env.handleAnalyze)
		r.Get("/history", env.handleHistoryList)
		r.Get("/history/{id}", env.handleHistoryGet)
		r.Delete("/history/{id}", env.handleHistoryDelete)
		r.Post("/track/{number}", env.handleTrack)
		r.Post("/cost", env.handleCost)
		r.Post("/margin", env.handleMargin)
		r.Get("/billing/{user}", env.handleBillingStatus)
		r.Post("/billing/{user}/pack", env.handleBillingPack)
		r.Post("/billing/{user}/subscribe", env.handleBillingSubscribe)
		r.Get("/shoplink", env.handleShopLink)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (e *appEnv) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Blocks []string `json:"blocks"`
		User   string   `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Blocks) == 0 {
		writeError(w, http.StatusBadRequest, "blocks is required")
		return
	}
	if req.User == "" {
		req.User = defaultUser
	}

	ctx := r.Context()
	ledger, err := e.ledger(ctx, req.User)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	mode, err := ledger.Consume(timeNow())
	if err != nil {
		if eris.Is(err, billing.ErrQuotaExhausted) {
			writeError(w, http.StatusPaymentRequired, "quota exhausted")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	analysis, err := e.pipeline.Analyze(ctx, model.RawCapture{Blocks: req.Blocks})
	if err != nil {
		ledger.Refund(mode)
		_ = e.saveLedger(ctx, req.User, ledger)
		if eris.Is(err, pipeline.ErrMixedVendors) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":    "capture mixes several vendors",
				"analysis": analysis,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := e.saveLedger(ctx, req.User, ledger); err != nil {
		zap.L().Warn("ledger not persisted", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, analysis)
}

func (e *appEnv) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	filter := store.HistoryFilter{
		Status: model.AnalysisStatus(r.URL.Query().Get("status")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	analyses, err := e.store.ListAnalyses(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if analyses == nil {
		analyses = []model.Analysis{}
	}
	writeJSON(w, http.StatusOK, analyses)
}

func (e *appEnv) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	a, err := e.store.GetAnalysis(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (e *appEnv) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	if err := e.store.DeleteAnalysis(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (e *appEnv) handleTrack(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	if err := track.ValidateNumber(number); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if cached, err := e.store.GetCachedTracking(ctx, number); err == nil && cached != nil {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	t, err := e.tracker.Track(ctx, number)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if err := e.store.SetCachedTracking(ctx, t, e.trackingTTL()); err != nil {
		zap.L().Warn("tracking not cached", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, t)
}

func (e *appEnv) handleCost(w http.ResponseWriter, r *http.Request) {
	var in cost.Inputs
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	breakdown, err := e.calc.Landed(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (e *appEnv) handleMargin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UnitCost    float64 `json:"unit_cost"`
		ResalePrice float64 `json:"resale_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	margin, err := e.calc.ResaleMargin(req.UnitCost, req.ResalePrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, margin)
}

func (e *appEnv) handleBillingStatus(w http.ResponseWriter, r *http.Request) {
	ledger, err := e.ledger(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ledger": ledger,
		"quota":  ledger.CanUse(timeNow()),
	})
}

func (e *appEnv) handleBillingPack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Credits int `json:"credits"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	user := chi.URLParam(r, "user")
	ledger, err := e.ledger(ctx, user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := ledger.AddPack(req.Credits); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := e.saveLedger(ctx, user, ledger); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ledger)
}

func (e *appEnv) handleBillingSubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Plan   string `json:"plan"`
		Months int    `json:"months"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Months == 0 {
		req.Months = 1
	}

	ctx := r.Context()
	user := chi.URLParam(r, "user")
	ledger, err := e.ledger(ctx, user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := ledger.Subscribe(req.Plan, timeNow(), req.Months); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := e.saveLedger(ctx, user, ledger); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ledger)
}

func (e *appEnv) handleShopLink(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":   shoplink.Build(q.Get("shop"), q.Get("country"), query),
		"shops": shoplink.Known(),
	})
}
