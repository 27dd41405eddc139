package tabular

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"medicopro/pkg/domain"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var errEmptyTimestamp = errors.New("empty timestamp")

// Migrate maps a header and its rows onto the current schema. Legacy header
// spellings are resolved, columns added after the file's revision are filled
// with their declared defaults and unknown columns are dropped.
func Migrate(rows [][]string, loc *time.Location) (Table, error) {
	if loc == nil {
		loc = time.Local
	}
	if len(rows) == 0 {
		return Table{Version: domain.CurrentSchemaVersion}, nil
	}
	index := make(map[string]int, len(domain.Schema))
	for i, cell := range rows[0] {
		col, ok := domain.LookupColumn(cell)
		if !ok {
			continue
		}
		if _, dup := index[col.Name]; !dup {
			index[col.Name] = i
		}
	}

	table := Table{Version: detectVersion(index)}
	for _, col := range domain.Schema {
		if _, ok := index[col.Name]; !ok {
			table.Missing = append(table.Missing, col.Name)
		}
	}

	value := func(row []string, col domain.Column) string {
		i, ok := index[col.Name]
		if !ok || i >= len(row) {
			return col.Default
		}
		return row[i]
	}

	records := make([]domain.PatientRecord, 0, len(rows)-1)
	for n, row := range rows[1:] {
		line := n + 1
		var rec domain.PatientRecord
		for _, col := range domain.Schema {
			raw := value(row, col)
			switch col.Name {
			case domain.ColumnFirstName:
				rec.FirstName = raw
			case domain.ColumnLastName:
				rec.LastName = raw
			case domain.ColumnIDNumber:
				rec.IDNumber = strings.TrimSpace(raw)
			case domain.ColumnAge:
				age, err := parseAge(raw)
				if err != nil {
					return Table{}, &domain.ParseError{Row: line, Field: col.Name, Value: raw, Err: err}
				}
				rec.Age = age
			case domain.ColumnSex:
				rec.Sex = parseStoredSex(raw, col.Default)
			case domain.ColumnFamilyGroup:
				rec.FamilyGroup = raw
			case domain.ColumnStreet:
				rec.Street = raw
			case domain.ColumnHouseNumber:
				rec.HouseNumber = raw
			case domain.ColumnPathology:
				rec.Pathology = raw
			case domain.ColumnMedications:
				rec.Medications = raw
			case domain.ColumnRegisteredAt:
				// Files without the column predate registration stamps and
				// load with the zero time. A present cell must parse.
				if _, ok := index[col.Name]; !ok {
					continue
				}
				ts, err := ParseTimestamp(raw, loc)
				if err != nil {
					return Table{}, &domain.ParseError{Row: line, Field: col.Name, Value: raw, Err: err}
				}
				rec.RegisteredAt = ts
			}
		}
		records = append(records, rec)
	}
	table.Records = records
	return table, nil
}

// detectVersion returns the newest revision whose columns are all present.
func detectVersion(index map[string]int) int {
	version := 0
	for v := domain.SchemaV1; v <= domain.CurrentSchemaVersion; v++ {
		for _, col := range domain.Schema {
			if col.Since > v {
				continue
			}
			if _, ok := index[col.Name]; !ok {
				return version
			}
		}
		version = v
	}
	return version
}

func parseAge(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("age %v is not a whole number", f)
	}
	return int(f), nil
}

func parseStoredSex(raw, fallback string) domain.Sex {
	if sex, ok := domain.ParseSex(raw); ok {
		return sex
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Sex(fallback)
	}
	return domain.Sex(raw)
}

// ParseTimestamp accepts RFC 3339 and the naive ISO-like layouts older files
// were written with. Naive values are interpreted in loc.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errEmptyTimestamp
	}
	if loc == nil {
		loc = time.Local
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts, nil
	}
	var lastErr error
	for _, layout := range timestampLayouts[1:] {
		ts, err := time.ParseInLocation(layout, raw, loc)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// FormatTimestamp renders ts the way Encode writes registered_at. The zero time
// is written out in full so it parses back.
func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format(TimestampLayout)
}
