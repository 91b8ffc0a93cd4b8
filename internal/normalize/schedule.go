package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// WindowLayout is the format the upload templates expect for price windows.
const WindowLayout = "2006-01-02 15:04:05"

// compactDateLayout is tried before serials: 20240501 is a date, not day
// 20,240,501 of the Excel epoch.
const compactDateLayout = "20060102"

// Excel serial dates run from 1900-01-01 (1) to 9999-12-31 (2958465).
const (
	minDateSerial = 1
	maxDateSerial = 2958465
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"01-02-06",
	"1-2-06",
	"01/02/2006",
	"1/2/2006",
	"1/2/06",
	"02-Jan-2006",
	"2-Jan-2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

var clockLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04:05 PM",
	"3:04 PM",
	"03:04:05 PM",
	"03:04 PM",
	"3:04PM",
	"2006-01-02 15:04:05",
}

// FormatWindow combines a schedule date and time-of-day cell into a single
// timestamp rendered with WindowLayout. Either value may be text or an
// Excel serial number.
func FormatWindow(date, clock string) (string, error) {
	day, err := parseDate(date)
	if err != nil {
		return "", err
	}
	offset, err := parseClock(clock)
	if err != nil {
		return "", err
	}
	return day.Add(offset).Format(WindowLayout), nil
}

// parseDate returns midnight of the day held in s.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if len(s) == len(compactDateLayout) {
		if t, err := time.Parse(compactDateLayout, s); err == nil {
			return midnight(t), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial < minDateSerial || serial >= maxDateSerial+1 {
			return time.Time{}, fmt.Errorf("date serial %q out of range", s)
		}
		t, err := excelize.ExcelDateToTime(math.Floor(serial), false)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date serial %q: %w", s, err)
		}
		return midnight(t), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return midnight(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// parseClock returns the time of day held in s as an offset from midnight.
// An empty cell is midnight.
func parseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		frac := serial - math.Floor(serial)
		secs := math.Round(frac * 86400)
		if secs >= 86400 {
			secs = 0
		}
		return time.Duration(secs) * time.Second, nil
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, strings.ToUpper(s)); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("unrecognised time %q", s)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
