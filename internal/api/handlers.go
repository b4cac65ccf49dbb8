package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	errorvalues "github.com/limbo/campusflow/internal/error_values"
	"github.com/limbo/campusflow/internal/service"
	"github.com/limbo/campusflow/pkg/entity"
	"github.com/limbo/campusflow/pkg/httputil"
)

const (
	handlerTimeout = 10 * time.Second

	cooldownMessage = "You can only submit once every 30 minutes. Please try again later."
)

type SubmitSurveyRequest struct {
	UserID         int64    `json:"user_id"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	OccupancyLevel string   `json:"occupancy_level"`
}

type SubmitSurveyResponse struct {
	Success  bool `json:"success"`
	NewCoins int  `json:"newCoins"`
}

type GetHabitsResponse struct {
	Habits []entity.AreaVisits `json:"habits"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	httputil.WriteErrorResponse(w, status, message)
}

func (s *Server) SubmitSurvey(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	var req SubmitSurveyRequest
	defer r.Body.Close()
	dec := sonic.ConfigDefault.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logger.Warn("submitting survey error: invalid body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()
	coins, err := s.surveyService.Submit(ctx, &service.SubmitSurveyRequest{
		UserID:         req.UserID,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		OccupancyLevel: req.OccupancyLevel,
	})
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrValidation):
			logger.Warn("submitting survey error: invalid data", slog.String("error", err.Error()))
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, errorvalues.ErrCooldown):
			logger.Info("submitting survey rejected: cooldown", slog.Int64("uid", req.UserID))
			writeError(w, http.StatusTooManyRequests, cooldownMessage)
		default:
			logger.Error("submitting survey error: service error", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "database error")
		}
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, SubmitSurveyResponse{
		Success:  true,
		NewCoins: coins,
	})
	logger.Info("survey submitted", slog.Int64("uid", req.UserID), slog.Int("coins", coins))
}

func parseCoords(r *http.Request) (float64, float64, error) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		return 0, 0, err
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

func (s *Server) QueryOccupancy(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	lat, lon, err := parseCoords(r)
	if err != nil {
		logger.Warn("occupancy query error: invalid coords", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "lat and lon must be numbers")
		return
	}
	// missing or malformed radius falls back to the default
	radius, _ := strconv.ParseFloat(r.URL.Query().Get("radius"), 64)

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()
	est, err := s.occupancyService.Estimate(ctx, lat, lon, radius)
	if err != nil {
		if errors.Is(err, errorvalues.ErrValidation) {
			logger.Warn("occupancy query error: invalid data", slog.String("error", err.Error()))
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("occupancy query error: service error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, est)
}

func (s *Server) GetHabits(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		logger.Warn("getting habits error: invalid user_id")
		writeError(w, http.StatusBadRequest, "user_id must be an integer")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()
	habits, err := s.habitsService.TopAreas(ctx, uid)
	if err != nil {
		if errors.Is(err, errorvalues.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("getting habits error: service error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if habits == nil {
		habits = []entity.AreaVisits{}
	}
	httputil.WriteJSONResponse(w, http.StatusOK, GetHabitsResponse{Habits: habits})
}

func (s *Server) GetRanking(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()
	ranking, err := s.userService.Ranking(ctx)
	if err != nil {
		logger.Error("getting ranking error: service error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if ranking == nil {
		ranking = []entity.RankingEntry{}
	}
	httputil.WriteJSONResponse(w, http.StatusOK, ranking)
}

func (s *Server) GetNearbyUsers(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	lat, lon, err := parseCoords(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lat and lon must be numbers")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()
	users, err := s.userService.Nearby(ctx, lat, lon)
	if err != nil {
		if errors.Is(err, errorvalues.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("getting nearby users error: service error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if users == nil {
		users = []entity.NearbyUser{}
	}
	httputil.WriteJSONResponse(w, http.StatusOK, users)
}

func (s *Server) GetUser(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()
	user, err := s.userService.GetByID(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, errorvalues.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			logger.Error("getting user error: service error", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "database error")
		}
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, user)
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			GetLoggerFromCtx(r.Context()).Error("health check failed", slog.String("error", err.Error()))
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	httputil.WriteJSONResponse(w, http.StatusOK, HealthResponse{Status: "ok"})
}
