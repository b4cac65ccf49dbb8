// @title CampusFlow API
// @description Crowd-sensing backend: survey submissions, occupancy estimates, rankings and visit habits
// @BasePath /
// @schemes http
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/limbo/campusflow/docs"
	"github.com/limbo/campusflow/internal/api"
	"github.com/limbo/campusflow/internal/repository"
	"github.com/limbo/campusflow/internal/service"
	"github.com/limbo/campusflow/pkg/cleanup"
	"github.com/limbo/campusflow/pkg/config"
)

func init() {
	service.InitValidator()
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	cfg := config.New()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.GetStringOr("LOG_LEVEL", "info")),
	})))
	defer cleanup.CleanUp()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbCfg := repository.PGCfg{
		Address:  cfg.GetString("POSTGRES_DB_ADDRESS"),
		Username: cfg.GetString("POSTGRES_USER"),
		Password: cfg.GetString("POSTGRES_PASSWORD"),
		DB:       cfg.GetString("POSTGRES_DB"),
	}
	pool, err := repository.NewPool(ctx, &dbCfg)
	if err != nil {
		slog.Error("database connection error", slog.String("error", err.Error()))
		return
	}

	usersRepo := repository.NewUsersRepo(pool)
	surveysRepo := repository.NewSurveysRepo(pool)
	habitsRepo := repository.NewHabitsRepo(pool)

	serv := api.New(&api.ServicesList{
		SurveyService: service.NewSurveyService(usersRepo, surveysRepo,
			service.WithStrictCooldown(cfg.GetBool("STRICT_COOLDOWN", false))),
		OccupancyService: service.NewOccupancyService(surveysRepo, time.Now),
		UserService:      service.NewUserService(usersRepo, cfg.GetInt("RANKING_LIMIT", service.DefaultRankingLimit)),
		HabitsService:    service.NewHabitsService(habitsRepo),
		DB:               pool,
	}, &api.Options{
		CORSAllowedOrigins: cfg.GetList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRequests:  cfg.GetInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:    cfg.GetDuration("RATE_LIMIT_WINDOW", time.Minute),
	})
	if err = serv.Run(ctx, cfg.GetStringOr("API_ADDRESS", ":3000")); err != nil {
		slog.Error("server error", slog.String("error", err.Error()))
	}
}
