// Package analytics holds the calendar and rounding rules shared by the
// rating and view-count aggregations.
package analytics

import (
	"errors"
	"math"
	"strconv"
	"time"
)

// ErrInvalidMonth is returned for month numbers outside 1-12.
var ErrInvalidMonth = errors.New("invalid month number")

// ErrInvalidYear is returned for years outside the supported range.
var ErrInvalidYear = errors.New("invalid year")

// Month is a canonical calendar month name.
type Month string

const (
	January   Month = "JANUARY"
	February  Month = "FEBRUARY"
	March     Month = "MARCH"
	April     Month = "APRIL"
	May       Month = "MAY"
	June      Month = "JUNE"
	July      Month = "JULY"
	August    Month = "AUGUST"
	September Month = "SEPTEMBER"
	October   Month = "OCTOBER"
	November  Month = "NOVEMBER"
	December  Month = "DECEMBER"
)

var months = [...]Month{
	January, February, March, April, May, June,
	July, August, September, October, November, December,
}

// MonthName maps 1-12 to the canonical month name.
func MonthName(n int) (Month, error) {
	if n < 1 || n > len(months) {
		return "", ErrInvalidMonth
	}
	return months[n-1], nil
}

// Supported year range for view reports.
const (
	MinYear = 1970
	MaxYear = 9999
)

// Period is a half-open UTC time range [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// YearPeriod returns the UTC bounds of a calendar year.
func YearPeriod(year int) (Period, error) {
	if year < MinYear || year > MaxYear {
		return Period{}, ErrInvalidYear
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(1, 0, 0)}, nil
}

// MonthPeriod returns the UTC bounds of one month of a year. The month
// is validated before the year.
func MonthPeriod(year, month int) (Period, error) {
	if _, err := MonthName(month); err != nil {
		return Period{}, err
	}
	if year < MinYear || year > MaxYear {
		return Period{}, ErrInvalidYear
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}, nil
}

// RoundRating rounds an average rating to one decimal place. The exact
// binary value is rounded, so 1.05 (stored just above) becomes 1.1 and 1.15
// (stored just below) becomes 1.1. An average of zero ratings is reported
// as 0.
func RoundRating(avg float64) float64 {
	if math.IsNaN(avg) || math.IsInf(avg, 0) {
		return 0
	}
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(avg, 'f', 1, 64), 64)
	if err != nil {
		return 0
	}
	return rounded
}

// AverageRating is the rounded arithmetic mean of values, or 0 when
// values is empty.
func AverageRating(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return RoundRating(float64(sum) / float64(len(values)))
}
