package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	errorvalues "github.com/limbo/campusflow/internal/error_values"
	"github.com/limbo/campusflow/internal/repository"
	"github.com/limbo/campusflow/pkg/entity"
	"github.com/limbo/campusflow/pkg/geo"
)

const (
	DefaultRankingLimit = 100
	nearbyLimit         = 50
)

type UserService struct {
	repo         repository.UsersRepositoryI
	rankingLimit int
}

func NewUserService(usersRepo repository.UsersRepositoryI, rankingLimit int) *UserService {
	if usersRepo == nil {
		log.Fatal("provided nil usersRepo")
	}
	if rankingLimit <= 0 {
		rankingLimit = DefaultRankingLimit
	}
	return &UserService{
		repo:         usersRepo,
		rankingLimit: rankingLimit,
	}
}

func (us *UserService) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: invalid user id", errorvalues.ErrValidation)
	}
	user, err := us.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			return nil, err
		}
		return nil, errors.New("repository searching error: " + err.Error())
	}
	return user, nil
}

func (us *UserService) Ranking(ctx context.Context) ([]entity.RankingEntry, error) {
	ranking, err := us.repo.Ranking(ctx, us.rankingLimit)
	if err != nil {
		return nil, errors.New("repository ranking error: " + err.Error())
	}
	return ranking, nil
}

func (us *UserService) Nearby(ctx context.Context, lat, lon float64) ([]entity.NearbyUser, error) {
	if !geo.ValidCoordinate(lat, lon) {
		return nil, fmt.Errorf("%w: invalid coords", errorvalues.ErrValidation)
	}
	users, err := us.repo.FindNearby(ctx, geo.AreaID(lat, lon), nearbyLimit)
	if err != nil {
		return nil, errors.New("repository nearby error: " + err.Error())
	}
	return users, nil
}
