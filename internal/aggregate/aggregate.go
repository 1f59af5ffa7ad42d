// Package aggregate derives the per-nest daily tables from normalized
// detections and the breeding metadata.
package aggregate

import (
	"cmp"
	"maps"
	"slices"
	"time"

	"github.com/nilomr/majorvocal/internal/breeding"
	"github.com/nilomr/majorvocal/internal/conf"
	"github.com/nilomr/majorvocal/internal/detection"
)

// songActivityWindow is the trailing window of the song activity rolling
// mean, in rows of the day-of-year index shared by all years.
const songActivityWindow = 5

// DailyCount is the number of positive detections of one nest on one day.
type DailyCount struct {
	PNum  string
	Date  time.Time
	Count int
}

// Day is a DailyCount joined with its breeding attempt.
type Day struct {
	DailyCount
	Attempt     breeding.Attempt
	LayDate     *time.Time // nil when the nest has no lay date
	DaysFromLay *int
	DateFirst   time.Time // earliest date recorded for the nest
	DateLast    time.Time // latest date recorded for the nest
}

// Peak is the first day with the most detections for a nest.
type Peak struct {
	PNum        string
	Date        time.Time
	Count       int
	LayDate     *time.Time
	DaysFromLay *int
}

// Sampling compares automated detections with the manual annotation count.
type Sampling struct {
	PNum           string
	Count          int
	NVocalisations *int
}

// LayWindowNest is a nest whose recordings span the lay date.
type LayWindowNest struct {
	PNum     string
	Days     int // number of recorded days
	FirstDay int // smallest days_from_lay
	LastDay  int // largest days_from_lay
}

// Activity is the number of detections on one day of one year with its
// trailing rolling mean. Count is nil on days another year observed but this
// one did not.
type Activity struct {
	Year        int
	DayOfYear   int
	Count       *int
	RollingMean float64
}

// Result holds every derived table.
type Result struct {
	Days         []Day
	Peaks        []Peak
	Sampling     []Sampling
	LayWindow    []LayWindowNest
	SongActivity []Activity
}

// Run derives all tables from records and the breeding table.
func Run(records []detection.NormalizedDetection, table *breeding.Table, window conf.LayWindow) Result {
	days := EnsureDateRange(JoinBrood(DailyCounts(records), table))
	return Result{
		Days:         days,
		Peaks:        PeakDays(days),
		Sampling:     SamplingSummary(days),
		LayWindow:    LayWindowSubset(days, window),
		SongActivity: SongActivity(records),
	}
}

// DailyCounts counts positive detections per nest and date. Null records
// still create their (pnum, date) group with a zero count. Groups are sorted
// by pnum, then date.
func DailyCounts(records []detection.NormalizedDetection) []DailyCount {
	type key struct {
		pnum string
		date time.Time
	}
	index := make(map[key]int)
	var out []DailyCount

	for i := range records {
		r := &records[i]
		k := key{r.PNum, r.Date}
		pos, ok := index[k]
		if !ok {
			pos = len(out)
			index[k] = pos
			out = append(out, DailyCount{PNum: r.PNum, Date: r.Date})
		}
		out[pos].Count += r.Count()
	}

	slices.SortFunc(out, func(a, b DailyCount) int {
		if c := cmp.Compare(a.PNum, b.PNum); c != 0 {
			return c
		}
		return a.Date.Compare(b.Date)
	})
	return out
}

// JoinBrood inner-joins counts with the breeding table on pnum. Counts for
// unknown nests are dropped. Nests without a lay date are kept with a nil
// LayDate and DaysFromLay.
func JoinBrood(counts []DailyCount, table *breeding.Table) []Day {
	out := make([]Day, 0, len(counts))
	for _, c := range counts {
		attempt, ok := table.Lookup(c.PNum)
		if !ok {
			continue
		}
		d := Day{DailyCount: c, Attempt: attempt}
		if attempt.LayDate != nil {
			lay := *attempt.LayDate
			dfl := daysBetween(lay, c.Date)
			d.LayDate, d.DaysFromLay = &lay, &dfl
		}
		out = append(out, d)
	}
	return out
}

// EnsureDateRange sets DateFirst and DateLast per nest and keeps the days
// inside that range.
func EnsureDateRange(days []Day) []Day {
	type span struct{ first, last time.Time }
	spans := make(map[string]span)
	for _, d := range days {
		s, ok := spans[d.PNum]
		if !ok {
			spans[d.PNum] = span{d.Date, d.Date}
			continue
		}
		if d.Date.Before(s.first) {
			s.first = d.Date
		}
		if d.Date.After(s.last) {
			s.last = d.Date
		}
		spans[d.PNum] = s
	}

	out := make([]Day, 0, len(days))
	for _, d := range days {
		s := spans[d.PNum]
		if d.Date.Before(s.first) || d.Date.After(s.last) {
			continue
		}
		d.DateFirst, d.DateLast = s.first, s.last
		out = append(out, d)
	}
	return out
}

// PeakDays returns, per nest in order of first appearance, the first day
// with the highest count.
func PeakDays(days []Day) []Peak {
	var out []Peak
	index := make(map[string]int)
	for _, d := range days {
		i, ok := index[d.PNum]
		if !ok {
			index[d.PNum] = len(out)
			out = append(out, peakOf(d))
			continue
		}
		if d.Count > out[i].Count {
			out[i] = peakOf(d)
		}
	}
	return out
}

func peakOf(d Day) Peak {
	return Peak{
		PNum:        d.PNum,
		Date:        d.Date,
		Count:       d.Count,
		LayDate:     d.LayDate,
		DaysFromLay: d.DaysFromLay,
	}
}

// SamplingSummary sums the counts per nest and pairs them with the manual
// vocalisation count of the nest's first row.
func SamplingSummary(days []Day) []Sampling {
	var out []Sampling
	index := make(map[string]int)
	for _, d := range days {
		i, ok := index[d.PNum]
		if !ok {
			index[d.PNum] = len(out)
			out = append(out, Sampling{PNum: d.PNum, NVocalisations: d.Attempt.NVocalisations})
			i = len(out) - 1
		}
		out[i].Count += d.Count
	}
	return out
}

// LayWindowSubset keeps the nests whose first recorded day falls in
// [MinFirst, MaxFirst] and whose last falls in [MinLast, MaxLast], both in
// days from lay. Days without a lay date never match.
func LayWindowSubset(days []Day, w conf.LayWindow) []LayWindowNest {
	var nests []LayWindowNest
	index := make(map[string]int)
	for _, d := range days {
		if d.DaysFromLay == nil {
			continue
		}
		dfl := *d.DaysFromLay
		i, ok := index[d.PNum]
		if !ok {
			index[d.PNum] = len(nests)
			nests = append(nests, LayWindowNest{PNum: d.PNum, FirstDay: dfl, LastDay: dfl})
			i = len(nests) - 1
		}
		n := &nests[i]
		n.Days++
		n.FirstDay = min(n.FirstDay, dfl)
		n.LastDay = max(n.LastDay, dfl)
	}

	out := nests[:0]
	for _, n := range nests {
		if w.MinFirst <= n.FirstDay && n.FirstDay <= w.MaxFirst &&
			w.MinLast <= n.LastDay && n.LastDay <= w.MaxLast {
			out = append(out, n)
		}
	}
	return out
}

// SongActivity counts detections per year and day of year and adds a
// trailing mean over the last five rows of the sorted union of days observed
// in any year. A year's missing days occupy window slots but are skipped by
// the mean. Rows are emitted, sorted by year then day, wherever the window
// holds at least one count.
func SongActivity(records []detection.NormalizedDetection) []Activity {
	counts := make(map[int]map[int]int)
	seen := make(map[int]bool)
	for i := range records {
		r := &records[i]
		if r.Year == nil || r.DayOfYear == nil {
			continue
		}
		byDay, ok := counts[*r.Year]
		if !ok {
			byDay = make(map[int]int)
			counts[*r.Year] = byDay
		}
		byDay[*r.DayOfYear]++
		seen[*r.DayOfYear] = true
	}

	days := slices.Sorted(maps.Keys(seen))
	years := slices.Sorted(maps.Keys(counts))

	var out []Activity
	for _, year := range years {
		byDay := counts[year]
		for i, doy := range days {
			sum, n := 0, 0
			for _, d := range days[max(0, i-songActivityWindow+1) : i+1] {
				if c, ok := byDay[d]; ok {
					sum += c
					n++
				}
			}
			if n == 0 {
				continue
			}
			a := Activity{Year: year, DayOfYear: doy, RollingMean: float64(sum) / float64(n)}
			if c, ok := byDay[doy]; ok {
				a.Count = &c
			}
			out = append(out, a)
		}
	}
	return out
}

// daysBetween returns the number of calendar days from a to b.
func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
