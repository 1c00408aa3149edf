// Package httpserver contains HTTP handlers and middleware.
//
// It exposes the Distributor's public surface: the issuance endpoint that
// wraps internal/issuance.Engine, and liveness/readiness checks against the
// durable and warm tiers.
package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/promo-harvester/internal/adapter/observability"
	"github.com/fairyhunter13/promo-harvester/internal/config"
	"github.com/fairyhunter13/promo-harvester/internal/domain"
	"github.com/fairyhunter13/promo-harvester/internal/issuance"
)

// Server holds the Distributor's HTTP-facing dependencies.
type Server struct {
	Cfg       config.Config
	Engine    *issuance.Engine
	Dashboard *issuance.Dashboard
	Users     domain.UserRepository
	DB        *pgxpool.Pool
	Redis     *redis.Client

	validate *validator.Validate
}

// NewServer constructs a Server.
func NewServer(cfg config.Config, engine *issuance.Engine, dashboard *issuance.Dashboard, users domain.UserRepository, db *pgxpool.Pool, rdb *redis.Client) *Server {
	return &Server{
		Cfg:       cfg,
		Engine:    engine,
		Dashboard: dashboard,
		Users:     users,
		DB:        db,
		Redis:     rdb,
		validate:  validator.New(),
	}
}

type issueRequest struct {
	UserID string   `json:"user_id" validate:"required"`
	Games  []string `json:"games" validate:"required,min=1,dive,required"`
}

type drawResponse struct {
	Game  string   `json:"game"`
	Codes []string `json:"codes"`
}

type issueResponse struct {
	Draws []drawResponse `json:"draws"`
}

// IssueHandler implements the issuance endpoint: decode, validate,
// run the Issuance Engine's decision procedure, and report the outcome.
func (s *Server) IssueHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("http.issuance")
		ctx, span := tracer.Start(r.Context(), "Server.IssueHandler")
		defer span.End()

		lg := LoggerFrom(r)

		var req issueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, domain.ErrInvalidArgument, "malformed request body")
			return
		}
		if err := s.validate.Struct(req); err != nil {
			writeError(w, r, domain.ErrInvalidArgument, err.Error())
			return
		}
		span.SetAttributes(attribute.String("user.id", req.UserID), attribute.Int("games.count", len(req.Games)))

		result, err := s.Engine.Issue(ctx, req.UserID, req.Games, time.Now())
		if err != nil {
			observability.RecordIssuanceOutcome(outcomeLabel(err))
			writeError(w, r, err, nil)
			return
		}
		observability.RecordIssuanceOutcome("issued")

		resp := issueResponse{Draws: make([]drawResponse, 0, len(result.Draws))}
		for _, d := range result.Draws {
			observability.RecordCodesIssued(d.Game, len(d.Codes))
			resp.Draws = append(resp.Draws, drawResponse{Game: d.Game, Codes: d.Codes})
		}

		if err := s.Users.LogAction(ctx, req.UserID, "issue_request"); err != nil {
			lg.Warn("failed to log user action", slog.String("user_id", req.UserID), slog.Any("error", err))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func outcomeLabel(err error) string {
	if !issuance.IsRejection(err) {
		return "error"
	}
	switch {
	case errors.Is(err, domain.ErrBanned):
		return "banned"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, domain.ErrIntervalNotElapsed):
		return "interval_not_elapsed"
	default:
		return "rejected"
	}
}

// HealthzHandler is an unconditional liveness probe.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler checks the durable tier and warm tier are reachable.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		checks := map[string]string{}
		ready := true

		if s.DB != nil {
			if err := s.DB.Ping(ctx); err != nil {
				checks["postgres"] = err.Error()
				ready = false
			} else {
				checks["postgres"] = "ok"
			}
		}
		if s.Redis != nil {
			if err := s.Redis.Ping(ctx).Err(); err != nil {
				checks["redis"] = err.Error()
				ready = false
			} else {
				checks["redis"] = "ok"
			}
		}

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]any{"ready": ready, "checks": checks})
	}
}
