package core

import "time"

// LastDayOfMonth returns the number of days in the given month.
func LastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// IsMonthEnd reports whether d falls on the last day of its month.
func (d Date) IsMonthEnd() bool {
	return d.Day() == LastDayOfMonth(d.Year(), d.Time.Month())
}

// AddMonths moves d forward n calendar months. The day of month is kept and
// clamped to the target month's length; a date on the last day of its month
// stays on the last day, so 30 Nov + 1 month is 31 Dec.
func (d Date) AddMonths(n int) Date {
	y, m := d.Year(), d.Time.Month()
	total := int(m) - 1 + n
	ty := y + total/12
	tm := total % 12
	if tm < 0 {
		tm += 12
		ty--
	}
	month := time.Month(tm + 1)
	last := LastDayOfMonth(ty, month)

	day := d.Day()
	if d.IsMonthEnd() || day > last {
		day = last
	}
	return NewDate(ty, int(month), day)
}
