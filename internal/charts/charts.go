// Package charts builds the JSON payloads behind the dashboard's three
// visualizations. The frontend charting library consumes these as-is; no
// rendering happens server-side.
package charts

import (
	"sort"

	"fleetpulse/internal/dataset"
)

// Series colors shared with the report palette.
const (
	ColorPrimary = "#1F4E78"
	ColorAccent  = "#F63366"
)

// Series is one named value sequence within a chart.
type Series struct {
	Name   string `json:"name"`
	Color  string `json:"color"`
	Values []int  `json:"values"`
}

// GroupedBar is the per-file total-vs-new distribution chart.
type GroupedBar struct {
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
	Series []Series `json:"series"`
}

// Line is the per-date-bucket trend chart.
type Line struct {
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
	Series []Series `json:"series"`
}

// Donut is the global new-vs-existing breakdown.
type Donut struct {
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
	Colors []string `json:"colors"`
	Hole   float64  `json:"hole"`
}

// VesselJobDistribution builds the grouped bar chart of total and new jobs
// per file, x axis ordered chronologically with dateless files last. Labels
// pair the vessel with its source file so repeat uploads stay tellable apart.
func VesselJobDistribution(t *dataset.Table) GroupedBar {
	rows := make([]dataset.Row, len(t.Rows))
	copy(rows, t.Rows)
	sort.SliceStable(rows, func(i, j int) bool {
		switch {
		case rows[i].Date == nil:
			return false
		case rows[j].Date == nil:
			return true
		default:
			return rows[i].Date.Before(*rows[j].Date)
		}
	})

	chart := GroupedBar{
		Title:  "Job Distribution by Vessel and File",
		Labels: make([]string, 0, len(rows)),
		Series: []Series{
			{Name: "Total Jobs", Color: ColorPrimary, Values: make([]int, 0, len(rows))},
			{Name: "New Jobs", Color: ColorAccent, Values: make([]int, 0, len(rows))},
		},
	}
	for _, row := range rows {
		chart.Labels = append(chart.Labels, row.VesselName+" - "+row.FileName)
		chart.Series[0].Values = append(chart.Series[0].Values, row.TotalJobCount)
		chart.Series[1].Values = append(chart.Series[1].Values, row.NewJobCount)
	}
	return chart
}

// JobsTimeline builds the line chart of job sums per date bucket.
func JobsTimeline(r *dataset.Rollup) Line {
	chart := Line{
		Title:  "Job Trends Over Time",
		Labels: make([]string, 0, len(r.Dates)),
		Series: []Series{
			{Name: "Total Jobs", Color: ColorPrimary, Values: make([]int, 0, len(r.Dates))},
			{Name: "New Jobs", Color: ColorAccent, Values: make([]int, 0, len(r.Dates))},
		},
	}
	for _, bucket := range r.Dates {
		chart.Labels = append(chart.Labels, bucket.Label)
		chart.Series[0].Values = append(chart.Series[0].Values, bucket.TotalJobs)
		chart.Series[1].Values = append(chart.Series[1].Values, bucket.NewJobs)
	}
	return chart
}

// NewVsExisting builds the donut of global new versus existing job counts.
func NewVsExisting(r *dataset.Rollup) Donut {
	return Donut{
		Title:  "New vs. Existing Jobs Distribution",
		Labels: []string{"New Jobs", "Existing Jobs"},
		Values: []int{r.NewJobs, r.ExistingJobs},
		Colors: []string{ColorAccent, ColorPrimary},
		Hole:   0.4,
	}
}
