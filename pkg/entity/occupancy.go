package entity

// OccupancyLabel is the crowd level a user picks when submitting a survey.
type OccupancyLabel string

const (
	LabelSparse      OccupancyLabel = "Sparse (>0%)"
	LabelModerate    OccupancyLabel = "Moderate (>25%)"
	LabelCrowded     OccupancyLabel = "Crowded (>50%)"
	LabelVeryCrowded OccupancyLabel = "Very Crowded (>75%)"
)

// Aggregate levels returned by occupancy queries
const (
	LevelSparse      = "Sparse"
	LevelModerate    = "Moderate"
	LevelCrowded     = "Crowded"
	LevelVeryCrowded = "Very Crowded"
)

var labelScores = map[OccupancyLabel]float64{
	LabelSparse:      0,
	LabelModerate:    33,
	LabelCrowded:     66,
	LabelVeryCrowded: 100,
}

// Labels lists every label in ascending crowd order.
func Labels() []OccupancyLabel {
	return []OccupancyLabel{LabelSparse, LabelModerate, LabelCrowded, LabelVeryCrowded}
}

func (l OccupancyLabel) Valid() bool {
	_, ok := labelScores[l]
	return ok
}

// Score returns the numeric value used for aggregation. Unknown labels score 0.
func (l OccupancyLabel) Score() float64 {
	return labelScores[l]
}

// LevelForScore maps an aggregate score back to a level. Boundaries belong to the lower level.
func LevelForScore(score float64) string {
	switch {
	case score > 75:
		return LevelVeryCrowded
	case score > 50:
		return LevelCrowded
	case score > 25:
		return LevelModerate
	default:
		return LevelSparse
	}
}
