package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	errorvalues "github.com/limbo/campusflow/internal/error_values"
	"github.com/limbo/campusflow/internal/repository"
	"github.com/limbo/campusflow/pkg/entity"
)

const topAreasLimit = 3

type HabitsService struct {
	repo repository.HabitsRepositoryI
}

func NewHabitsService(habitsRepo repository.HabitsRepositoryI) *HabitsService {
	if habitsRepo == nil {
		log.Fatal("provided nil habitsRepo")
	}
	return &HabitsService{
		repo: habitsRepo,
	}
}

// TopAreas returns an empty list for users without visits, unknown users included.
func (hs *HabitsService) TopAreas(ctx context.Context, uid int64) ([]entity.AreaVisits, error) {
	if uid <= 0 {
		return nil, fmt.Errorf("%w: invalid user id", errorvalues.ErrValidation)
	}
	habits, err := hs.repo.TopAreas(ctx, uid, topAreasLimit)
	if err != nil {
		return nil, errors.New("habits repository error: " + err.Error())
	}
	return habits, nil
}
