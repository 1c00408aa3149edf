// Package httpserver contains the Admin API server and HTTP adapters.
package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/promo-harvester/internal/adapter/notify"
	"github.com/fairyhunter13/promo-harvester/internal/adapter/notify/asynqnotify"
	"github.com/fairyhunter13/promo-harvester/internal/adapter/observability"
	"github.com/fairyhunter13/promo-harvester/internal/config"
	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// AdminServer handles the operator console's HTTP routes: dashboard
// counters, per-user lookups, flag mutation, and notification fan-out.
type AdminServer struct {
	cfg            config.Config
	sessionManager *SessionManager
	server         *Server
	notify         *asynqnotify.Queue
	correlator     *notify.ForwardCorrelator
	games          []string
}

// NewAdminServer constructs an AdminServer. games lists the catalog names
// the dashboard snapshot reports inventory depth for.
func NewAdminServer(cfg config.Config, server *Server, notifyQueue *asynqnotify.Queue, correlator *notify.ForwardCorrelator, games []string) (*AdminServer, error) {
	sessionManager := NewSessionManager(cfg)
	return &AdminServer{
		cfg:            cfg,
		sessionManager: sessionManager,
		server:         server,
		notify:         notifyQueue,
		correlator:     correlator,
		games:          games,
	}, nil
}

// AdminTokenHandler issues a JWT for admin APIs given username/password.
func (a *AdminServer) AdminTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("http.admin")
		_, span := tracer.Start(r.Context(), "AdminServer.AdminTokenHandler")
		defer span.End()

		lg := LoggerFrom(r)
		var username, password string
		ct := r.Header.Get("Content-Type")
		if strings.HasPrefix(strings.ToLower(ct), "application/json") {
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			username = strings.TrimSpace(body["username"])
			password = strings.TrimSpace(body["password"])
		} else {
			username = strings.TrimSpace(r.FormValue("username"))
			password = strings.TrimSpace(r.FormValue("password"))
		}

		if username != a.cfg.AdminUsername || !checkAdminPassword(password, a.cfg.AdminPassword) {
			span.SetAttributes(attribute.Bool("auth.success", false))
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			lg.Warn("invalid admin credentials", slog.String("username", username))
			return
		}

		token, err := a.sessionManager.GenerateJWT(username, 24*time.Hour)
		if err != nil {
			http.Error(w, "Failed to issue token", http.StatusInternalServerError)
			lg.Error("failed to issue token", slog.Any("error", err))
			return
		}
		span.SetAttributes(attribute.Bool("auth.success", true), attribute.String("admin.username", username))
		writeJSON(w, http.StatusOK, map[string]any{
			"token":    token,
			"username": username,
			"expires":  time.Now().Add(24 * time.Hour).Unix(),
		})
	}
}

// AdminStatusHandler reports the caller's authenticated identity.
func (a *AdminServer) AdminStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("http.admin")
		_, span := tracer.Start(r.Context(), "AdminServer.AdminStatusHandler")
		defer span.End()

		username, ok := a.authenticate(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "authenticated", "username": username})
	}
}

// authenticate accepts either a trusted SSO header or a Bearer JWT.
func (a *AdminServer) authenticate(r *http.Request) (string, bool) {
	if username := getSSOUsernameFromHeaders(r); username != "" {
		return username, true
	}
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(authz[len("Bearer "):])
	sub, err := a.sessionManager.ValidateJWT(token)
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}

// AdminStatsHandler reports the operator dashboard snapshot: per-game
// inventory depth and the total known user count.
func (a *AdminServer) AdminStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("http.admin")
		ctx, span := tracer.Start(r.Context(), "AdminServer.AdminStatsHandler")
		defer span.End()

		if _, ok := a.authenticate(r); !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		snap, err := a.server.Dashboard.Snapshot(ctx, a.games)
		if err != nil {
			http.Error(w, "Failed to compute dashboard snapshot", http.StatusInternalServerError)
			LoggerFrom(r).Error("dashboard snapshot failed", slog.Any("error", err))
			return
		}
		for game, n := range snap.InventoryByGame {
			observability.SetInventoryDepth(game, n)
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// AdminUsersListHandler returns one page of users for the operator console,
// filtered by optional status and search-term query parameters.
func (a *AdminServer) AdminUsersListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("http.admin")
		ctx, span := tracer.Start(r.Context(), "AdminServer.AdminUsersListHandler")
		defer span.End()

		if _, ok := a.authenticate(r); !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		q := r.URL.Query()
		page, limit, result := ValidatePagination(q.Get("page"), q.Get("limit"))
		if !result.Valid() {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "invalid pagination", Details: result.Errors}})
			return
		}
		status := strings.ToLower(strings.TrimSpace(q.Get("status")))
		if err := ValidateStatus(status); err != nil {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: err.Error()}})
			return
		}
		search := SanitizeString(q.Get("q"), 200)
		if err := ValidateSearchQuery(search); err != nil {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: err.Error()}})
			return
		}
		span.SetAttributes(attribute.Int("page", page), attribute.Int("limit", limit))

		users, err := a.server.Users.ListUsers(ctx, (page-1)*limit, limit, domain.UserStatus(status), search)
		if err != nil {
			http.Error(w, "Failed to list users", http.StatusInternalServerError)
			LoggerFrom(r).Error("list users failed", slog.Any("error", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users, "page": page, "limit": limit})
	}
}

// userDetailResponse is UserRecord plus the derived fields an operator
// console needs.
type userDetailResponse struct {
	domain.UserRecord
	NeedsDailyReset bool `json:"needs_daily_reset"`
}

// AdminUserDetailHandler returns a single user's full record for operator
// lookups.
func (a *AdminServer) AdminUserDetailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("http.admin")
		ctx, span := tracer.Start(r.Context(), "AdminServer.AdminUserDetailHandler")
		defer span.End()

		if _, ok := a.authenticate(r); !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		userID := SanitizeUserID(chi.URLParam(r, "id"))
		span.SetAttributes(attribute.String("user.id", userID))
		if err := ValidateUserID(userID); err != nil {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: err.Error()}})
			return
		}

		user, err := a.server.Users.GetUser(ctx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, errorEnvelope{Error: apiError{Code: "NOT_FOUND", Message: "user not found"}})
				return
			}
			http.Error(w, "Failed to fetch user", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, userDetailResponse{UserRecord: user, NeedsDailyReset: user.NeedsDailyReset(time.Now())})
	}
}

var adminSettableFields = map[string]bool{
	"is_banned": true, "role": true, "status": true, "notes": true,
}

type setFlagRequest struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// AdminSetFlagHandler mutates one of a user's operator-controlled fields:
// is_banned, role, status, or notes.
func (a *AdminServer) AdminSetFlagHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("http.admin")
		ctx, span := tracer.Start(r.Context(), "AdminServer.AdminSetFlagHandler")
		defer span.End()

		if _, ok := a.authenticate(r); !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		userID := SanitizeUserID(chi.URLParam(r, "id"))
		if err := ValidateUserID(userID); err != nil {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: err.Error()}})
			return
		}

		var req setFlagRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "malformed request body"}})
			return
		}
		if !adminSettableFields[req.Field] {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "unknown field"}})
			return
		}
		if s, ok := req.Value.(string); ok {
			req.Value = SanitizeString(s, 1000)
		}
		span.SetAttributes(attribute.String("user.id", userID), attribute.String("field", req.Field))

		if err := a.server.Users.SetFlag(ctx, userID, req.Field, req.Value); err != nil {
			http.Error(w, "Failed to set flag", http.StatusInternalServerError)
			LoggerFrom(r).Error("set flag failed", slog.String("user_id", userID), slog.String("field", req.Field), slog.Any("error", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type notifyUserRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// AdminNotifyUserHandler enqueues a single-recipient notification.
func (a *AdminServer) AdminNotifyUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("http.admin")
		ctx, span := tracer.Start(r.Context(), "AdminServer.AdminNotifyUserHandler")
		defer span.End()

		if _, ok := a.authenticate(r); !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var req notifyUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "malformed request body"}})
			return
		}
		userID := SanitizeUserID(req.UserID)
		message := SanitizeString(req.Message, 2000)
		if err := ValidateUserID(userID); err != nil || message == "" {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "user_id and message are required"}})
			return
		}
		span.SetAttributes(attribute.String("user.id", userID))

		taskID, err := a.notify.EnqueueNotifyUser(ctx, userID, message)
		if err != nil {
			http.Error(w, "Failed to enqueue notification", http.StatusInternalServerError)
			LoggerFrom(r).Error("enqueue notify user failed", slog.Any("error", err))
			return
		}
		observability.RecordNotificationSent("user")
		writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
	}
}

type broadcastRequest struct {
	Message string `json:"message"`
}

// AdminBroadcastHandler enqueues a broadcast to every subscribed user.
func (a *AdminServer) AdminBroadcastHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("http.admin")
		ctx, span := tracer.Start(r.Context(), "AdminServer.AdminBroadcastHandler")
		defer span.End()

		if _, ok := a.authenticate(r); !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var req broadcastRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "malformed request body"}})
			return
		}
		message := SanitizeString(req.Message, 2000)
		if message == "" {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "message is required"}})
			return
		}

		userIDs, err := a.server.Users.ListSubscribed(ctx)
		if err != nil {
			http.Error(w, "Failed to list subscribed users", http.StatusInternalServerError)
			return
		}
		span.SetAttributes(attribute.Int("recipients", len(userIDs)))

		taskID, err := a.notify.EnqueueBroadcast(ctx, userIDs, message)
		if err != nil {
			http.Error(w, "Failed to enqueue broadcast", http.StatusInternalServerError)
			LoggerFrom(r).Error("enqueue broadcast failed", slog.Any("error", err))
			return
		}
		observability.RecordNotificationSent("broadcast")
		writeJSON(w, http.StatusAccepted, map[string]any{"task_id": taskID, "recipients": len(userIDs)})
	}
}

type correlateRequest struct {
	AdminMessageID string `json:"admin_message_id"`
	UserID         string `json:"user_id"`
}

// AdminCorrelateHandler records that an outbound admin-forwarded message
// corresponds to a user, so a later reply can be routed back.
func (a *AdminServer) AdminCorrelateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := a.authenticate(r); !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		var req correlateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AdminMessageID == "" || req.UserID == "" {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "admin_message_id and user_id are required"}})
			return
		}
		a.correlator.Put(req.AdminMessageID, SanitizeUserID(req.UserID))
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type replyRequest struct {
	AdminMessageID string `json:"admin_message_id"`
	Message        string `json:"message"`
}

// AdminReplyHandler resolves an admin-forwarded message back to its
// originating user via the correlation table and enqueues the reply.
func (a *AdminServer) AdminReplyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("http.admin")
		ctx, span := tracer.Start(r.Context(), "AdminServer.AdminReplyHandler")
		defer span.End()

		if _, ok := a.authenticate(r); !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		var req replyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "malformed request body"}})
			return
		}
		userID, ok := a.correlator.Get(req.AdminMessageID)
		if !ok {
			writeJSON(w, http.StatusNotFound, errorEnvelope{Error: apiError{Code: "NOT_FOUND", Message: "no user correlated with that message id"}})
			return
		}
		span.SetAttributes(attribute.String("user.id", userID))

		message := SanitizeString(req.Message, 2000)
		taskID, err := a.notify.EnqueueNotifyUser(ctx, userID, message)
		if err != nil {
			http.Error(w, "Failed to enqueue reply", http.StatusInternalServerError)
			return
		}
		observability.RecordNotificationSent("user")
		writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
	}
}
