// Package admin exposes the HTTP API backing the web dashboard: stats,
// user and withdrawal management, settings, and broadcasts.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marketbet/referral-bot/internal/domain"
	"github.com/marketbet/referral-bot/internal/health"
	"github.com/marketbet/referral-bot/internal/repository"
	"github.com/marketbet/referral-bot/internal/reward"
	"github.com/marketbet/referral-bot/pkg/logger"
)

// RewardEngine is the slice of the ledger engine the admin API drives.
type RewardEngine interface {
	RequestWithdrawal(ctx context.Context, userID int64, amount domain.Cents, method string, details json.RawMessage) (*reward.WithdrawalResult, error)
	ResolveWithdrawal(ctx context.Context, withdrawalID int64, decision domain.WithdrawalStatus, notes string) error
}

// Broadcaster sends a message to every broadcastable user.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string) (sent, failed int, err error)
}

// Queries bundles the read-side stores the API serves from.
type Queries struct {
	Users       repository.UserRepository
	Referrals   repository.ReferralRepository
	Withdrawals repository.WithdrawalRepository
	Codes       repository.CodeRepository
	Settings    repository.SettingsRepository
	Activity    repository.ActivityRepository
	Stats       repository.StatsRepository
}

// Server is the admin HTTP API.
type Server struct {
	engine      RewardEngine
	broadcaster Broadcaster
	queries     Queries
	checker     *health.Checker
	log         *slog.Logger
}

// NewServer assembles the admin API.
func NewServer(engine RewardEngine, broadcaster Broadcaster, queries Queries, checker *health.Checker, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		engine:      engine,
		broadcaster: broadcaster,
		queries:     queries,
		checker:     checker,
		log:         log,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(logger.Middleware)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/users", s.handleListUsers)
		r.Get("/users/{id}", s.handleGetUser)
		r.Get("/users/{id}/referrals", s.handleUserReferrals)
		r.Get("/withdrawals", s.handleListWithdrawals)
		r.Post("/withdrawals", s.handleCreateWithdrawal)
		r.Patch("/withdrawals/{id}", s.handleResolveWithdrawal)
		r.Get("/codes", s.handleListCodes)
		r.Get("/activity", s.handleActivity)
		r.Get("/settings", s.handleGetSettings)
		r.Post("/settings", s.handleUpdateSettings)
		r.Post("/broadcast", s.handleBroadcast)
		r.Get("/referrers/top", s.handleTopReferrers)
	})

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("correlation_id", logger.CorrelationIDFromContext(r.Context())),
		)
	})
}
