package income

import (
	"math"
	"time"

	"github.com/Dan9191/gigcredit/internal/models"
	"github.com/shopspring/decimal"
)

var demoPlatforms = []string{"Uber", "Rappi", "DiDi"}

type demoProfile struct {
	base     float64
	variance float64
}

// high, medium and low earner
var demoProfiles = []demoProfile{
	{base: 500, variance: 50},
	{base: 370, variance: 70},
	{base: 140, variance: 40},
}

const demoWeeks = 4

// Demo generates four weeks of deterministic sample income for a subject.
// The same subject always yields the same series. Demo data is for display
// only and must never feed an eligibility decision.
func Demo(subjectID string, now time.Time) models.IncomeHistory {
	seed := subjectSeed(subjectID)
	rng := &seededRandom{seed: seed}
	profile := demoProfiles[seed%int64(len(demoProfiles))]

	series := make([]models.PlatformSeries, len(demoPlatforms))
	for i, p := range demoPlatforms {
		series[i].Platform = p
	}
	for week := 0; week < demoWeeks; week++ {
		date := now.AddDate(0, 0, -7*week).Truncate(24 * time.Hour)
		for i := range demoPlatforms {
			spread := profile.variance / 3
			amount := math.Round(profile.base/3 + rng.between(-spread, spread))
			if amount < 0 {
				amount = 0
			}
			series[i].Earnings = append(series[i].Earnings, models.PeriodEarning{
				Period: demoWeeks - week,
				Amount: decimal.NewFromFloat(amount),
				Date:   date,
			})
		}
	}

	// Inputs are well-formed, Aggregate cannot fail here.
	history, _ := Aggregate(subjectID, models.GranularityWeekly, series)
	return history
}

// subjectSeed is a 31-bit string hash, stable across runs.
func subjectSeed(s string) int64 {
	var h int32
	for _, c := range s {
		h = (h << 5) - h + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}

// seededRandom is a linear congruential generator
type seededRandom struct {
	seed int64
}

func (r *seededRandom) next() float64 {
	r.seed = (r.seed*9301 + 49297) % 233280
	return float64(r.seed) / 233280
}

func (r *seededRandom) between(min, max float64) float64 {
	return min + r.next()*(max-min)
}
