// Package income merges per-platform earnings into a normalized history.
package income

import (
	"fmt"
	"sort"

	"github.com/Dan9191/gigcredit/internal/models"
	"github.com/shopspring/decimal"
)

// Aggregate aligns platform series on the union of their periods. A platform
// that did not report a period contributes zero to it.
func Aggregate(subjectID string, granularity models.Granularity, series []models.PlatformSeries) (models.IncomeHistory, error) {
	history := models.IncomeHistory{
		SubjectID:     subjectID,
		Granularity:   granularity,
		Records:       []models.IncomeRecord{},
		PeriodTotals:  []models.PeriodTotal{},
		TotalIncome:   decimal.Zero,
		PeriodAverage: decimal.Zero,
		Platforms:     []string{},
	}

	totals := make(map[int]decimal.Decimal)
	platforms := make(map[string]struct{})
	for _, s := range series {
		if s.Platform == "" {
			return models.IncomeHistory{}, fmt.Errorf("platform name is required")
		}
		platforms[s.Platform] = struct{}{}
		for _, e := range s.Earnings {
			if e.Amount.IsNegative() {
				return models.IncomeHistory{}, fmt.Errorf("negative amount for %s period %d", s.Platform, e.Period)
			}
			history.Records = append(history.Records, models.IncomeRecord{
				Period:   e.Period,
				Platform: s.Platform,
				Amount:   e.Amount,
				Date:     e.Date,
			})
			totals[e.Period] = totals[e.Period].Add(e.Amount)
			history.TotalIncome = history.TotalIncome.Add(e.Amount)
		}
	}

	sort.SliceStable(history.Records, func(i, j int) bool {
		a, b := history.Records[i], history.Records[j]
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		return a.Platform < b.Platform
	})

	for p := range platforms {
		history.Platforms = append(history.Platforms, p)
	}
	sort.Strings(history.Platforms)

	if len(totals) == 0 {
		return history, nil
	}

	periods := make([]int, 0, len(totals))
	for p := range totals {
		periods = append(periods, p)
	}
	sort.Ints(periods)
	for _, p := range periods {
		history.PeriodTotals = append(history.PeriodTotals, models.PeriodTotal{
			Period: p,
			Amount: totals[p],
		})
	}

	history.PeriodAverage = history.TotalIncome.Div(decimal.NewFromInt(int64(len(history.PeriodTotals))))
	return history, nil
}
