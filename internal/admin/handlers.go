package admin

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/marketbet/referral-bot/internal/domain"
	"github.com/marketbet/referral-bot/internal/httputil"
)

const (
	defaultActivityLimit = 50
	defaultTopLimit      = 10
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.queries.Stats.Stats(r.Context())
	if err != nil {
		s.serveError(w, r, "fetch stats", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.queries.Users.ListAll(r.Context())
	if err != nil {
		s.serveError(w, r, "list users", err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	user, err := s.queries.Users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.WriteError(w, http.StatusNotFound, "user not found")
			return
		}
		s.serveError(w, r, "fetch user", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleUserReferrals(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	referrals, err := s.queries.Referrals.ListByReferrer(r.Context(), id)
	if err != nil {
		s.serveError(w, r, "list referrals", err)
		return
	}

	resp := make([]referralResponse, 0, len(referrals))
	for _, ref := range referrals {
		resp = append(resp, toReferralResponse(ref))
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListWithdrawals(w http.ResponseWriter, r *http.Request) {
	withdrawals, err := s.queries.Withdrawals.ListAllWithUser(r.Context())
	if err != nil {
		s.serveError(w, r, "list withdrawals", err)
		return
	}

	resp := make([]withdrawalResponse, 0, len(withdrawals))
	for _, wd := range withdrawals {
		resp = append(resp, toWithdrawalResponse(&wd.Withdrawal, wd.User))
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

type createWithdrawalRequest struct {
	UserID         int64           `json:"userId"`
	Amount         domain.Cents    `json:"amount"`
	PaymentMethod  string          `json:"paymentMethod"`
	PaymentDetails json.RawMessage `json:"paymentDetails"`
}

func (s *Server) handleCreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req createWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	method := req.PaymentMethod
	if method == "" {
		method = domain.MethodOther
	}

	result, err := s.engine.RequestWithdrawal(r.Context(), req.UserID, req.Amount, method, req.PaymentDetails)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	resp := struct {
		withdrawalResponse
		Code string `json:"code"`
	}{
		withdrawalResponse: toWithdrawalResponse(result.Withdrawal, nil),
		Code:               result.Code.Code,
	}

	httputil.WriteJSON(w, http.StatusCreated, resp)
}

type resolveWithdrawalRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (s *Server) handleResolveWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req resolveWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	decision := domain.WithdrawalStatus(strings.ToLower(req.Status))
	if err := s.engine.ResolveWithdrawal(r.Context(), id, decision, req.Notes); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": string(decision)})
}

func (s *Server) handleListCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := s.queries.Codes.ListAllWithUser(r.Context())
	if err != nil {
		s.serveError(w, r, "list codes", err)
		return
	}

	resp := make([]codeResponse, 0, len(codes))
	for _, c := range codes {
		resp = append(resp, toCodeResponse(c))
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultActivityLimit)

	entries, err := s.queries.Activity.Recent(r.Context(), limit)
	if err != nil {
		s.serveError(w, r, "fetch activity", err)
		return
	}

	resp := make([]activityResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, toActivityResponse(entry))
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.queries.Settings.GetActive(r.Context())
	if err != nil {
		s.serveError(w, r, "fetch settings", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toSettingsResponse(settings))
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.NewUserBonus < 0 || req.ReferralReward < 0 || req.MinWithdrawal < 0 || req.ReferralsForCode < 0 {
		httputil.WriteError(w, http.StatusBadRequest, "settings values must not be negative")
		return
	}

	stored, err := s.queries.Settings.Replace(r.Context(), &domain.BotSettings{
		WelcomeMessage:   req.WelcomeMessage,
		WelcomePhotoURL:  req.WelcomePhotoURL,
		PlayButtonURL:    req.PlayButtonURL,
		NewUserBonus:     req.NewUserBonus,
		ReferralReward:   req.ReferralReward,
		MinWithdrawal:    req.MinWithdrawal,
		ReferralsForCode: req.ReferralsForCode,
	})
	if err != nil {
		s.serveError(w, r, "update settings", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toSettingsResponse(stored))
}

type broadcastRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		httputil.WriteError(w, http.StatusBadRequest, "message must not be empty")
		return
	}

	sent, failed, err := s.broadcaster.Broadcast(r.Context(), req.Message)
	if err != nil {
		s.serveError(w, r, "broadcast", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]int{"sent": sent, "failed": failed})
}

func (s *Server) handleTopReferrers(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultTopLimit)

	referrers, err := s.queries.Stats.TopReferrers(r.Context(), limit)
	if err != nil {
		s.serveError(w, r, "fetch top referrers", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, referrers)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.checker.Check(r.Context())

	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}

	httputil.WriteJSON(w, status, report)
}

func (s *Server) serveError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.log.Error("admin api request failed",
		slog.String("op", op),
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)
	httputil.WriteAppError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
