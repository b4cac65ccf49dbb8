package service

import (
	"context"

	"github.com/limbo/campusflow/pkg/entity"
)

type SubmitSurveyRequest struct {
	UserID         int64    `validate:"required,gt=0"`
	Latitude       *float64 `validate:"required,latitude"`
	Longitude      *float64 `validate:"required,longitude"`
	OccupancyLevel string   `validate:"required,occupancy_level"`
}

type SurveyServiceI interface {
	// Validates the report, enforces the cooldown and records it. Returns user's new coin balance
	Submit(ctx context.Context, req *SubmitSurveyRequest) (int, error)
}

type OccupancyServiceI interface {
	// Aggregates recent surveys around the point into a single estimate. Radius is in degrees
	Estimate(ctx context.Context, lat, lon, radius float64) (*entity.OccupancyEstimate, error)
}

type UserServiceI interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	Ranking(ctx context.Context) ([]entity.RankingEntry, error)
	// Lists users who reported from the same area cell as the point
	Nearby(ctx context.Context, lat, lon float64) ([]entity.NearbyUser, error)
}

type HabitsServiceI interface {
	// Returns up to three most visited areas of the user
	TopAreas(ctx context.Context, uid int64) ([]entity.AreaVisits, error)
}
