package reputation

import (
	"math"

	"anoa.com/unimarket/internal/entity"
	"github.com/google/uuid"
)

// ComputeScore maps the received stars to a 0..100 score: avg*20 rounded half-up.
// The arithmetic stays in integers, (40*sum + count) / (2*count) == floor(20*sum/count + 0.5).
func ComputeScore(sum, count int64) int {
	if count <= 0 {
		return entity.MinReputationScore
	}
	score := int((40*sum + count) / (2 * count))
	if score < entity.MinReputationScore {
		return entity.MinReputationScore
	}
	if score > entity.MaxReputationScore {
		return entity.MaxReputationScore
	}
	return score
}

// Average is the unrounded mean star value, 0 when there are no ratings.
func Average(sum, count int64) float64 {
	if count <= 0 {
		return 0
	}
	return float64(sum) / float64(count)
}

// DisplayAverage rounds an average to one decimal place for presentation.
func DisplayAverage(avg float64) float64 {
	return math.Round(avg*10) / 10
}

// FillDistribution returns a copy of counts with every star value from 1 to 5 present.
func FillDistribution(counts map[int]int64) map[int]int64 {
	dist := make(map[int]int64, entity.MaxStars)
	for stars := entity.MinStars; stars <= entity.MaxStars; stars++ {
		dist[stars] = counts[stars]
	}
	return dist
}

// CanRate is the rating eligibility rule. A student may rate anyone but themselves.
func CanRate(rater, candidate uuid.UUID) bool {
	return rater != candidate
}
