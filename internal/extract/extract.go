// Package extract turns raw vessel job CSV files into normalized JobRecords.
// Each uploaded file yields exactly one record; records are never merged
// across files, and a failure in one file never aborts a batch.
package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// Sentinel values surfaced when real data cannot be derived.
const (
	// VesselColumnMissing is reported when no header contains "vessel".
	VesselColumnMissing = "Vessel column not found"
	// ErrorValue replaces fields lost to a parse failure.
	ErrorValue = "Error"
	// UnknownDate is reported when the filename carries no DDMMYYYY run.
	UnknownDate = "Unknown"
)

// StatusNew is the exact status value (after trimming) that counts a job as new.
const StatusNew = "New"

// filenameDatePattern matches the first boundary-delimited 8-digit run in a
// filename, split as DD MM YYYY. No calendar validation happens here;
// "99999999" extracts as 99-99-9999 and is left for date coercion to reject.
var filenameDatePattern = regexp.MustCompile(`\b(\d{2})(\d{2})(\d{4})\b`)

// JobRecord summarizes one uploaded CSV file.
type JobRecord struct {
	FileName      string `json:"file_name"`
	VesselName    string `json:"vessel_name"`
	TotalJobCount int    `json:"total_job_count"`
	NewJobCount   int    `json:"new_job_count"`
	// ExtractedDate is the DD-MM-YYYY string pulled from the filename, or
	// UnknownDate when no 8-digit run was found.
	ExtractedDate string `json:"extracted_date"`
	// Failed marks a record whose file could not be parsed. Counts are zero
	// and display cells render ErrorValue.
	Failed bool `json:"failed"`
}

// TotalJobsCell returns the display value for the total jobs column.
func (r JobRecord) TotalJobsCell() string {
	if r.Failed {
		return ErrorValue
	}
	return strconv.Itoa(r.TotalJobCount)
}

// NewJobsCell returns the display value for the new jobs column.
func (r JobRecord) NewJobsCell() string {
	if r.Failed {
		return ErrorValue
	}
	return strconv.Itoa(r.NewJobCount)
}

// ProcessFile parses a single CSV buffer and its original filename into a
// JobRecord. The filename date is derived first so it survives parse
// failures; every other failure mode collapses into sentinel values on the
// returned record rather than an error.
func ProcessFile(fileName string, raw []byte) JobRecord {
	rec := JobRecord{FileName: fileName, ExtractedDate: ExtractDate(fileName)}

	header, rows, err := readTable(raw)
	if err != nil {
		return failed(rec)
	}

	vesselCol := SniffColumn(header, "vessel")
	statusCol := SniffColumn(header, "status")

	if vesselCol < 0 {
		rec.VesselName = VesselColumnMissing
	} else {
		if len(rows) == 0 {
			// A vessel column with no data rows means the first-row lookup
			// has nothing to read; treated as a processing failure.
			return failed(rec)
		}
		rec.VesselName = cellAt(rows[0], vesselCol)
	}

	rec.TotalJobCount = len(rows)
	if statusCol >= 0 {
		for _, row := range rows {
			if strings.TrimSpace(cellAt(row, statusCol)) == StatusNew {
				rec.NewJobCount++
			}
		}
	}

	return rec
}

// ExtractDate scans a filename for the first 8-digit DDMMYYYY run and formats
// it as DD-MM-YYYY. Returns UnknownDate when no run is present.
func ExtractDate(fileName string) string {
	m := filenameDatePattern.FindStringSubmatch(fileName)
	if m == nil {
		return UnknownDate
	}
	return m[1] + "-" + m[2] + "-" + m[3]
}

// SniffColumn returns the index of the leftmost header whose name contains
// needle, case-insensitive, or -1 when no header matches. Header order is the
// declared CSV order, so the result is deterministic.
func SniffColumn(header []string, needle string) int {
	for i, name := range header {
		if strings.Contains(strings.ToLower(name), needle) {
			return i
		}
	}
	return -1
}

// readTable splits raw CSV bytes into a header row and data rows. Field
// counts are not enforced; short rows are tolerated and handled by cellAt.
func readTable(raw []byte) (header []string, rows [][]string, err error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, errors.New("empty csv")
	}
	return records[0], records[1:], nil
}

func cellAt(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func failed(rec JobRecord) JobRecord {
	rec.VesselName = ErrorValue
	rec.TotalJobCount = 0
	rec.NewJobCount = 0
	rec.Failed = true
	return rec
}
