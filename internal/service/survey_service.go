package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	errorvalues "github.com/limbo/campusflow/internal/error_values"
	"github.com/limbo/campusflow/internal/metrics"
	"github.com/limbo/campusflow/internal/repository"
	"github.com/limbo/campusflow/pkg/entity"
	"github.com/limbo/campusflow/pkg/geo"
)

// SurveyService is the write side of the ledger.
//
// The cooldown is a read followed by a conditional write, so two concurrent
// submissions of the same user may both pass it and both get credited once the
// ledger retries the conflicting transaction. Strict mode re-checks it inside
// the transaction under a lock on the user row, so the retried loser gets ErrCooldown.
type SurveyService struct {
	users   repository.UsersRepositoryI
	surveys repository.SurveysRepositoryI
	now     func() time.Time
	strict  bool
}

type SurveyOption func(*SurveyService)

func WithClock(now func() time.Time) SurveyOption {
	return func(ss *SurveyService) {
		ss.now = now
	}
}

func WithStrictCooldown(strict bool) SurveyOption {
	return func(ss *SurveyService) {
		ss.strict = strict
	}
}

func NewSurveyService(usersRepo repository.UsersRepositoryI, surveysRepo repository.SurveysRepositoryI, opts ...SurveyOption) *SurveyService {
	if usersRepo == nil || surveysRepo == nil {
		log.Fatal("on survey service provided nil repos")
	}
	ss := &SurveyService{
		users:   usersRepo,
		surveys: surveysRepo,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(ss)
	}
	return ss
}

func (ss *SurveyService) Submit(ctx context.Context, req *SubmitSurveyRequest) (int, error) {
	coins, err := ss.submit(ctx, req)
	switch {
	case err == nil:
		metrics.RecordSubmission(metrics.ResultAccepted)
	case errors.Is(err, errorvalues.ErrValidation):
		metrics.RecordSubmission(metrics.ResultInvalid)
	case errors.Is(err, errorvalues.ErrCooldown):
		metrics.RecordSubmission(metrics.ResultCooldown)
	default:
		metrics.RecordSubmission(metrics.ResultError)
	}
	return coins, err
}

func (ss *SurveyService) submit(ctx context.Context, req *SubmitSurveyRequest) (int, error) {
	if req == nil {
		return 0, fmt.Errorf("%w: empty request", errorvalues.ErrValidation)
	}
	if err := validateStruct(req); err != nil {
		return 0, err
	}
	if _, err := ss.users.FindByID(ctx, req.UserID); err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			return 0, fmt.Errorf("%w: %w", errorvalues.ErrValidation, err)
		}
		return 0, errors.New("users repository error: " + err.Error())
	}
	now := ss.now()
	last, err := ss.surveys.GetLastSubmittedAt(ctx, req.UserID)
	if err != nil {
		return 0, errors.New("surveys repository error: " + err.Error())
	}
	if last != nil && now.Sub(*last) < entity.SurveyCooldown {
		return 0, errorvalues.ErrCooldown
	}
	survey := &entity.Survey{
		UserID:         req.UserID,
		Latitude:       *req.Latitude,
		Longitude:      *req.Longitude,
		OccupancyLevel: entity.OccupancyLabel(req.OccupancyLevel),
		AreaID:         geo.AreaID(*req.Latitude, *req.Longitude),
		SubmittedAt:    now,
	}
	var guard *repository.CooldownGuard
	if ss.strict {
		guard = &repository.CooldownGuard{Interval: entity.SurveyCooldown}
	}
	coins, err := ss.surveys.Record(ctx, survey, guard)
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrCooldown):
			return 0, err
		case errors.Is(err, errorvalues.ErrUserNotFound):
			return 0, fmt.Errorf("%w: %w", errorvalues.ErrValidation, err)
		}
		return 0, errors.New("surveys repository error: " + err.Error())
	}
	return coins, nil
}
