package visibility

import (
	"sort"
	"time"

	"github.com/splitlabs/max-visibility/internal/model"
)

// DefaultChartDays is the trailing window covered by the trend chart.
const DefaultChartDays = 30

const (
	dateLabelLayout = "Jan 2"
	timeLabelLayout = "3:04 PM"
)

// BuildChart turns the completed runs inside the trailing window ending on
// now's calendar date into chart points.
//
// When every run in the window falls on a single date, one point per run is
// emitted for that date only. Otherwise each day of the window, oldest
// first, contributes one point per run, or a single zero-score point when it
// had none. Runs that share a day carry a time label truncated to the
// minute, so the label never crosses into the next day.
//
// Calendar dates are evaluated in loc (UTC when nil); this is a fixed
// reporting zone, not the viewer's zone.
func BuildChart(runs []model.AssessmentRun, now time.Time, loc *time.Location, days int) []model.ChartPoint {
	if loc == nil {
		loc = time.UTC
	}
	if days < 1 {
		days = DefaultChartDays
	}

	now = now.In(loc)
	today := midnight(now)
	start := today.AddDate(0, 0, -(days - 1))
	end := today.AddDate(0, 0, 1)

	byDay := make(map[string][]model.AssessmentRun)
	for _, r := range runs {
		if !r.Completed() {
			continue
		}
		t := r.CreatedAt.In(loc)
		if t.Before(start) || !t.Before(end) {
			continue
		}
		key := dayKey(t)
		byDay[key] = append(byDay[key], r)
	}
	for _, dayRuns := range byDay {
		sort.SliceStable(dayRuns, func(i, j int) bool {
			if !dayRuns[i].CreatedAt.Equal(dayRuns[j].CreatedAt) {
				return dayRuns[i].CreatedAt.Before(dayRuns[j].CreatedAt)
			}
			return dayRuns[i].ID < dayRuns[j].ID
		})
	}

	todayKey := dayKey(today)
	points := make([]model.ChartPoint, 0, days)

	if len(byDay) == 1 {
		for key, dayRuns := range byDay {
			points = appendRunPoints(points, dayRuns, loc, key == todayKey)
		}
		return points
	}
	if len(byDay) == 0 {
		return points
	}

	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		key := dayKey(day)
		dayRuns, ok := byDay[key]
		if !ok {
			points = append(points, model.ChartPoint{
				DateLabel:       day.Format(dateLabelLayout),
				FullTimestamp:   day,
				IsCurrentPeriod: key == todayKey,
			})
			continue
		}
		points = appendRunPoints(points, dayRuns, loc, key == todayKey)
	}
	return points
}

func appendRunPoints(points []model.ChartPoint, dayRuns []model.AssessmentRun, loc *time.Location, current bool) []model.ChartPoint {
	labelled := len(dayRuns) > 1
	for _, r := range dayRuns {
		t := r.CreatedAt.In(loc)
		p := model.ChartPoint{
			DateLabel:       t.Format(dateLabelLayout),
			Score:           r.TotalScore,
			FullTimestamp:   t,
			IsCurrentPeriod: current,
			RunID:           r.ID,
		}
		if labelled {
			p.TimeLabel = t.Format(timeLabelLayout)
		}
		points = append(points, p)
	}
	return points
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
