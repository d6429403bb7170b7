package dataset

import (
	"sort"
	"time"
)

// VesselSummary aggregates every file belonging to one vessel.
type VesselSummary struct {
	VesselName string `json:"vessel_name"`
	FileCount  int    `json:"file_count"`
	TotalJobs  int    `json:"total_jobs"`
	NewJobs    int    `json:"new_jobs"`
}

// DateBucket aggregates every file sharing one coerced date.
type DateBucket struct {
	Date      time.Time `json:"-"`
	Label     string    `json:"date"`
	TotalJobs int       `json:"total_jobs"`
	NewJobs   int       `json:"new_jobs"`
}

// Rollup carries the derived aggregates for a filtered table.
type Rollup struct {
	Vessels      []VesselSummary `json:"vessels"`
	Dates        []DateBucket    `json:"dates"`
	FileCount    int             `json:"file_count"`
	VesselCount  int             `json:"vessel_count"`
	TotalJobs    int             `json:"total_jobs"`
	NewJobs      int             `json:"new_jobs"`
	ExistingJobs int             `json:"existing_jobs"`
}

// Rollup groups the table by vessel and, independently, by coerced date, and
// computes the global totals. Bucket key equality uses the coerced date, not
// the display string; rows without a parseable date are left out of the date
// buckets but still count toward vessel and global sums. Failed records carry
// zero counts so they contribute nothing beyond their file-count presence.
func (t *Table) Rollup() *Rollup {
	r := &Rollup{FileCount: len(t.Rows)}

	byVessel := make(map[string]*VesselSummary)
	byDate := make(map[time.Time]*DateBucket)

	for _, row := range t.Rows {
		vs, ok := byVessel[row.VesselName]
		if !ok {
			vs = &VesselSummary{VesselName: row.VesselName}
			byVessel[row.VesselName] = vs
		}
		vs.FileCount++
		vs.TotalJobs += row.TotalJobCount
		vs.NewJobs += row.NewJobCount

		if row.Date != nil {
			db, ok := byDate[*row.Date]
			if !ok {
				db = &DateBucket{Date: *row.Date, Label: row.Date.Format(DateLayout)}
				byDate[*row.Date] = db
			}
			db.TotalJobs += row.TotalJobCount
			db.NewJobs += row.NewJobCount
		}

		r.TotalJobs += row.TotalJobCount
		r.NewJobs += row.NewJobCount
	}

	r.VesselCount = len(byVessel)
	r.ExistingJobs = r.TotalJobs - r.NewJobs

	r.Vessels = make([]VesselSummary, 0, len(byVessel))
	for _, vs := range byVessel {
		r.Vessels = append(r.Vessels, *vs)
	}
	sort.Slice(r.Vessels, func(i, j int) bool {
		return r.Vessels[i].VesselName < r.Vessels[j].VesselName
	})

	r.Dates = make([]DateBucket, 0, len(byDate))
	for _, db := range byDate {
		r.Dates = append(r.Dates, *db)
	}
	sort.Slice(r.Dates, func(i, j int) bool {
		return r.Dates[i].Date.Before(r.Dates[j].Date)
	})

	return r
}
