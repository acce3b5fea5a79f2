package importer

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xolan/wogger/internal/apperr"
	"github.com/xolan/wogger/internal/entry"
)

// Column names required in a Wogger CSV export (matched case-insensitively).
const (
	colDate     = "date"
	colStart    = "start time"
	colEnd      = "end time"
	colDuration = "duration (min)"
	colTask     = "task"
)

var requiredColumns = []string{colDate, colDuration, colEnd, colStart, colTask}

var (
	dateLayouts = []string{"2006-01-02", "01/02/2006", "02/01/2006"}
	timeLayouts = []string{"15:04", "15:04:05"}
)

// ParseFile parses path according to its extension: .csv is a Wogger CSV
// export, .json a JF LoggR export.
func ParseFile(path string) ([]entry.Entry, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ParseWoggerCSV(path)
	case ".json":
		return ParseJFLoggrJSON(path)
	default:
		return nil, apperr.Validation("importer.parse", "unsupported file type %q: expected .csv or .json", filepath.Ext(path))
	}
}

// ParseWoggerCSV reads a Wogger CSV export. Entries are returned sorted.
func ParseWoggerCSV(path string) ([]entry.Entry, error) {
	const op = "importer.parse_csv"
	f, err := openImport(op, path, ".csv")
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadWoggerCSV(f)
}

// ReadWoggerCSV parses CSV rows with the columns date, start time, end time,
// duration (min) and task. The duration is authoritative: the end time must
// agree with it within a minute unless it wraps past midnight.
func ReadWoggerCSV(r io.Reader) ([]entry.Entry, error) {
	const op = "importer.parse_csv"
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperr.Validation(op, "CSV file is missing a header row")
		}
		return nil, apperr.Validation(op, "unable to read CSV file: %v", err)
	}
	index := map[string]int{}
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.Validation(op, "CSV file is missing required columns: %s", strings.Join(missing, ", "))
	}

	var entries []entry.Entry
	for row := 2; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Validation(op, "row %d: %v", row, err)
		}
		cell := func(col string) string {
			if i := index[col]; i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}
		e, err := csvRowToEntry(cell)
		if err != nil {
			return nil, apperr.Validation(op, "row %d: %v", row, err)
		}
		entries = append(entries, e)
	}

	if len(entries) == 0 {
		return nil, apperr.Validation(op, "the CSV file does not contain any entries to import")
	}
	sortEntries(entries)
	return entries, nil
}

func csvRowToEntry(cell func(string) string) (entry.Entry, error) {
	task := cell(colTask)
	if task == "" {
		return entry.Entry{}, errors.New("task cannot be empty")
	}
	day, err := parseDate(cell(colDate))
	if err != nil {
		return entry.Entry{}, err
	}
	start, err := parseClock(day, cell(colStart))
	if err != nil {
		return entry.Entry{}, err
	}
	minutes, err := strconv.Atoi(cell(colDuration))
	if err != nil {
		return entry.Entry{}, errors.New("duration (min) must be an integer")
	}
	if minutes <= 0 {
		return entry.Entry{}, errors.New("duration (min) must be positive")
	}
	end, err := parseClock(day, cell(colEnd))
	if err != nil {
		return entry.Entry{}, err
	}

	if end.After(start) {
		delta := int(end.Sub(start) / time.Minute)
		if abs(delta-minutes) > 1 {
			return entry.Entry{}, errors.New("end time does not match duration")
		}
	}
	end = start.Add(time.Duration(minutes) * time.Minute)
	return entry.New(task, start, end, minutes), nil
}

// ParseJFLoggrJSON reads a JF LoggR JSON export. Entries are returned sorted.
func ParseJFLoggrJSON(path string) ([]entry.Entry, error) {
	const op = "importer.parse_json"
	f, err := openImport(op, path, ".json")
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadJFLoggrJSON(f)
}

// ReadJFLoggrJSON parses {"entries": [{day, start, end, description, category}]}.
// Durations must be whole minutes.
func ReadJFLoggrJSON(r io.Reader) ([]entry.Entry, error) {
	const op = "importer.parse_json"
	var doc struct {
		Entries []json.RawMessage `json:"entries"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, apperr.Validation(op, "invalid JSON format: %v", err)
	}
	if doc.Entries == nil {
		return nil, apperr.Validation(op, "JSON file is missing an 'entries' list")
	}

	entries := make([]entry.Entry, 0, len(doc.Entries))
	for i, raw := range doc.Entries {
		var item map[string]any
		if err := json.Unmarshal(raw, &item); err != nil || item == nil {
			return nil, apperr.Validation(op, "entry %d: expected an object", i+1)
		}
		e, err := jfLoggrItemToEntry(item)
		if err != nil {
			return nil, apperr.Validation(op, "entry %d: %v", i+1, err)
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil, apperr.Validation(op, "the JSON file does not contain any entries to import")
	}
	sortEntries(entries)
	return entries, nil
}

func jfLoggrItemToEntry(item map[string]any) (entry.Entry, error) {
	field := func(name string) (string, error) {
		v, ok := item[name]
		if !ok || v == nil {
			return "", fmt.Errorf("missing '%s' field", name)
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		if s == "" {
			return "", fmt.Errorf("'%s' cannot be empty", name)
		}
		return s, nil
	}

	dayValue, err := field("day")
	if err != nil {
		return entry.Entry{}, err
	}
	startValue, err := field("start")
	if err != nil {
		return entry.Entry{}, err
	}
	endValue, err := field("end")
	if err != nil {
		return entry.Entry{}, err
	}
	task, err := field("description")
	if err != nil {
		return entry.Entry{}, err
	}

	day, err := parseDate(dayValue)
	if err != nil {
		return entry.Entry{}, err
	}
	start, err := parseClock(day, startValue)
	if err != nil {
		return entry.Entry{}, err
	}
	end, err := parseClock(day, endValue)
	if err != nil {
		return entry.Entry{}, err
	}
	if !end.After(start) {
		return entry.Entry{}, errors.New("end time must be after start time")
	}
	delta := end.Sub(start)
	if delta%time.Minute != 0 {
		return entry.Entry{}, errors.New("entry duration must be in whole minutes")
	}

	e := entry.New(task, start, end, int(delta/time.Minute))
	if c, ok := item["category"]; ok && c != nil {
		e.Category = strings.TrimSpace(fmt.Sprint(c))
	}
	return e, nil
}

func openImport(op, path, ext string) (*os.File, error) {
	if !strings.EqualFold(filepath.Ext(path), ext) {
		return nil, apperr.Validation(op, "selected file is not a %s document", strings.ToUpper(ext[1:]))
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.NotFound(op, "file does not exist: %s", path)
		}
		return nil, apperr.Persistence(op, err, "unable to open %s", path)
	}
	return f, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date value: %q", value)
}

// parseClock combines day with a wall-clock time of day.
func parseClock(day time.Time, value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.Local), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time value: %q", value)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
