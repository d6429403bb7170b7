// Package dataset stacks JobRecords into a filterable table and derives the
// summary rollups shown on the dashboard. Tables are ephemeral: rebuilt on
// every upload and refiltered on every filter change.
package dataset

import (
	"sort"
	"time"

	"fleetpulse/internal/extract"
)

// DateLayout is the DD-MM-YYYY format shared by filename extraction, date
// coercion and display.
const DateLayout = "02-01-2006"

// Row is one JobRecord with its coerced date. Date is nil when the extracted
// string did not parse as a real calendar date; such rows are silently
// excluded from any specified date range instead of raising an error.
type Row struct {
	extract.JobRecord
	Date *time.Time
}

// Table holds one row per processed file, in upload order until sorted.
type Table struct {
	Rows []Row
}

// BuildTable coerces each record's extracted date and stacks the records.
// Coercion failures become nil dates, never errors; later filtering depends
// on exactly this behavior.
func BuildTable(records []extract.JobRecord) *Table {
	t := &Table{Rows: make([]Row, 0, len(records))}
	for _, rec := range records {
		t.Rows = append(t.Rows, Row{JobRecord: rec, Date: CoerceDate(rec.ExtractedDate)})
	}
	return t
}

// CoerceDate parses a DD-MM-YYYY display string into a date, returning nil
// for sentinel or out-of-calendar values such as "Unknown" or "99-99-9999".
func CoerceDate(s string) *time.Time {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil
	}
	return &d
}

// Filter returns the rows passing the vessel membership test AND the
// inclusive date range test. An empty vessel set skips the membership test;
// a range missing either endpoint skips the range test. Rows with a nil date
// fail whenever a range is specified.
func (t *Table) Filter(vessels []string, from, to *time.Time) *Table {
	keep := make(map[string]struct{}, len(vessels))
	for _, v := range vessels {
		keep[v] = struct{}{}
	}

	out := &Table{}
	for _, row := range t.Rows {
		if len(keep) > 0 {
			if _, ok := keep[row.VesselName]; !ok {
				continue
			}
		}
		if from != nil && to != nil {
			if row.Date == nil || row.Date.Before(*from) || row.Date.After(*to) {
				continue
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// SortForDisplay orders rows by vessel name ascending, then by date
// descending within each vessel, dateless rows last.
func (t *Table) SortForDisplay() {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		a, b := t.Rows[i], t.Rows[j]
		if a.VesselName != b.VesselName {
			return a.VesselName < b.VesselName
		}
		switch {
		case a.Date == nil:
			return false
		case b.Date == nil:
			return true
		default:
			return a.Date.After(*b.Date)
		}
	})
}

// Vessels returns the distinct vessel names in the table, sorted ascending.
func (t *Table) Vessels() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, row := range t.Rows {
		if _, ok := seen[row.VesselName]; !ok {
			seen[row.VesselName] = struct{}{}
			names = append(names, row.VesselName)
		}
	}
	sort.Strings(names)
	return names
}

// DateRange returns the minimum and maximum coerced dates in the table, or
// nils when no row has a parseable date.
func (t *Table) DateRange() (min, max *time.Time) {
	for _, row := range t.Rows {
		if row.Date == nil {
			continue
		}
		if min == nil || row.Date.Before(*min) {
			d := *row.Date
			min = &d
		}
		if max == nil || row.Date.After(*max) {
			d := *row.Date
			max = &d
		}
	}
	return min, max
}
