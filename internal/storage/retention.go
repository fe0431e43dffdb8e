// ABOUTME: Monthly retention policy shared by both storage backends.
// ABOUTME: Plan is a pure function; each backend applies the eviction list itself.
package storage

import (
	"time"

	"github.com/harperreed/afterwod/internal/models"
)

// DefaultMonthlyLimit is how many current-month records are kept.
const DefaultMonthlyLimit = 100

// DefaultRetentionPolicy keeps the newest 100 records of the current month.
var DefaultRetentionPolicy = RetentionPolicy{MonthlyLimit: DefaultMonthlyLimit}

// RetentionPolicy bounds stored history.
type RetentionPolicy struct {
	MonthlyLimit int
}

// RetentionPlan is the outcome of Plan. The counters describe the
// partition before eviction.
type RetentionPlan struct {
	Evict       []int64 `json:"evict"`
	Current     int     `json:"current"`
	Past        int     `json:"past"`
	Future      int     `json:"future"`
	OverLimit   int     `json:"over_limit"`
	Unparseable int     `json:"unparseable"`
}

// Empty reports whether the plan evicts nothing.
func (p RetentionPlan) Empty() bool {
	return len(p.Evict) == 0
}

// Plan decides which records to evict, given every stored record and the
// current time. A record's month comes from its Date, compared against the
// calendar month of now in now's location:
//   - earlier months are evicted
//   - the current month keeps the newest MonthlyLimit by CreatedAt (ties by ID)
//   - later months are never evicted
//
// Records with an unparseable Date are kept.
func (p RetentionPolicy) Plan(records []models.StoredRecord, now time.Time) RetentionPlan {
	limit := p.MonthlyLimit
	if limit <= 0 {
		limit = DefaultMonthlyLimit
	}

	curYear, curMonth, _ := now.Date()
	current := monthIndex(curYear, curMonth)

	var plan RetentionPlan
	var inMonth []models.StoredRecord
	for _, r := range records {
		year, month, err := models.MonthOf(r.Date)
		if err != nil {
			plan.Unparseable++
			continue
		}
		switch m := monthIndex(year, month); {
		case m < current:
			plan.Past++
			plan.Evict = append(plan.Evict, r.ID)
		case m > current:
			plan.Future++
		default:
			inMonth = append(inMonth, r)
		}
	}

	plan.Current = len(inMonth)
	if len(inMonth) > limit {
		sortRecords(inMonth)
		for _, r := range inMonth[limit:] {
			plan.Evict = append(plan.Evict, r.ID)
		}
		plan.OverLimit = len(inMonth) - limit
	}
	return plan
}

func monthIndex(year int, month time.Month) int {
	return year*12 + int(month) - 1
}
