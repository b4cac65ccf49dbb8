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

var recencyWeights = map[geo.TimeBucket]float64{
	geo.BucketRecent: 0.6,
	geo.BucketMid:    0.3,
	geo.BucketOld:    0.1,
}

type OccupancyService struct {
	surveys repository.SurveysRepositoryI
	now     func() time.Time
}

func NewOccupancyService(surveysRepo repository.SurveysRepositoryI, now func() time.Time) *OccupancyService {
	if surveysRepo == nil {
		log.Fatal("provided nil surveysRepo")
	}
	if now == nil {
		now = time.Now
	}
	return &OccupancyService{
		surveys: surveysRepo,
		now:     now,
	}
}

// Estimate recomputes the estimate from every matching survey on each call.
func (occ *OccupancyService) Estimate(ctx context.Context, lat, lon, radius float64) (*entity.OccupancyEstimate, error) {
	if !geo.ValidCoordinate(lat, lon) {
		return nil, fmt.Errorf("%w: invalid coords", errorvalues.ErrValidation)
	}
	box := geo.NewBoundingBox(lat, lon, geo.NormalizeRadius(radius))
	now := occ.now()
	samples, err := occ.surveys.ListInBox(ctx, box, now.Add(-geo.RecencyWindow))
	if err != nil {
		return nil, errors.New("surveys repository error: " + err.Error())
	}
	estimate := Aggregate(samples, now)
	metrics.RecordOccupancyQuery(estimate.Score, estimate.Samples)
	return &estimate, nil
}

// Aggregate computes the recency weighted mean of label scores.
// Without any sample in the window the score is 0 and the level Sparse;
// Samples tells that case apart from a genuinely sparse area.
func Aggregate(samples []entity.SurveySample, now time.Time) entity.OccupancyEstimate {
	type groupKey struct {
		bucket geo.TimeBucket
		label  entity.OccupancyLabel
	}
	counts := make(map[groupKey]int)
	for _, s := range samples {
		bucket := geo.Bucket(s.SubmittedAt, now)
		if bucket == geo.BucketNone || !s.OccupancyLevel.Valid() {
			continue
		}
		counts[groupKey{bucket, s.OccupancyLevel}]++
	}

	var weightedSum, totalWeight float64
	used := 0
	// Fixed iteration order keeps the float sum reproducible
	for _, bucket := range []geo.TimeBucket{geo.BucketRecent, geo.BucketMid, geo.BucketOld} {
		w := recencyWeights[bucket]
		for _, label := range entity.Labels() {
			cnt := counts[groupKey{bucket, label}]
			if cnt == 0 {
				continue
			}
			weightedSum += label.Score() * float64(cnt) * w
			totalWeight += float64(cnt) * w
			used += cnt
		}
	}
	score := 0.0
	if totalWeight > 0 {
		score = weightedSum / totalWeight
	}
	return entity.OccupancyEstimate{
		Score:   score,
		Level:   entity.LevelForScore(score),
		Samples: used,
	}
}
