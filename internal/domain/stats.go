package domain

import "time"

// DayStats accumulates review counters for one calendar day (local time).
// Counters only ever increase, except through a full reset.
type DayStats struct {
	Day     string `json:"day"`
	Done    int    `json:"done"`
	Correct int    `json:"correct"`
	Wrong   int    `json:"wrong"`
	Again   int    `json:"again"`
	Hard    int    `json:"hard"`
	Good    int    `json:"good"`
	Easy    int    `json:"easy"`
}

// DayKey formats t as the YYYY-MM-DD key used for stats records.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// NewDayStats returns an empty record for the given day.
func NewDayStats(day string) DayStats {
	return DayStats{Day: day}
}

// Record counts one completed review into the day's totals.
func (d *DayStats) Record(rate Rating, wasCorrect bool) {
	d.Done++
	if wasCorrect {
		d.Correct++
	} else {
		d.Wrong++
	}
	switch rate {
	case Again:
		d.Again++
	case Hard:
		d.Hard++
	case Good:
		d.Good++
	case Easy:
		d.Easy++
	}
}

// Accuracy returns the percentage of correct answers, 0 when nothing was done.
func (d DayStats) Accuracy() int {
	if d.Done == 0 {
		return 0
	}
	return int(float64(d.Correct)/float64(d.Done)*100 + 0.5)
}
