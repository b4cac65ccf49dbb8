package entity

import (
	"time"
)

// Minimal time between two accepted surveys of the same user
const SurveyCooldown = 30 * time.Minute

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Coins int    `json:"coins"`
}

type Survey struct {
	ID             int64          `json:"id"`
	UserID         int64          `json:"user_id"`
	Latitude       float64        `json:"latitude"`
	Longitude      float64        `json:"longitude"`
	OccupancyLevel OccupancyLabel `json:"occupancy_level"`
	AreaID         string         `json:"area_id"`
	SubmittedAt    time.Time      `json:"submitted_at"`
}

// SurveySample is a survey row as seen by the occupancy estimator.
type SurveySample struct {
	OccupancyLevel OccupancyLabel
	SubmittedAt    time.Time
}

type RankingEntry struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Coins    int    `json:"coins"`
}

type AreaVisits struct {
	AreaID     string `json:"area_id"`
	VisitCount int    `json:"visit_count"`
}

type NearbyUser struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	LastSeen time.Time `json:"lastSeen"`
}

type OccupancyEstimate struct {
	Score   float64 `json:"score"`
	Level   string  `json:"level"`
	Samples int     `json:"samples"`
}
