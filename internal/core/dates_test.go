package core

import "testing"

func TestAddMonths(t *testing.T) {
	cases := []struct {
		start Date
		n     int
		want  Date
	}{
		{NewDate(2024, 1, 15), 1, NewDate(2024, 2, 15)},
		{NewDate(2024, 1, 31), 1, NewDate(2024, 2, 29)},
		{NewDate(2023, 1, 31), 1, NewDate(2023, 2, 28)},
		{NewDate(2024, 1, 31), 2, NewDate(2024, 3, 31)},
		{NewDate(2024, 1, 30), 1, NewDate(2024, 2, 29)},
		{NewDate(2024, 1, 30), 2, NewDate(2024, 3, 30)},
		{NewDate(2024, 11, 30), 1, NewDate(2024, 12, 31)},
		{NewDate(2024, 11, 30), 3, NewDate(2025, 2, 28)},
		{NewDate(2024, 11, 15), 2, NewDate(2025, 1, 15)},
		{NewDate(2024, 2, 29), 12, NewDate(2025, 2, 28)},
		{NewDate(2024, 3, 10), -3, NewDate(2023, 12, 10)},
		{NewDate(2024, 5, 1), 0, NewDate(2024, 5, 1)},
	}
	for _, tc := range cases {
		got := tc.start.AddMonths(tc.n)
		if !got.Equal(tc.want.Time) {
			t.Errorf("%s + %d months = %s, want %s", tc.start, tc.n, got, tc.want)
		}
	}
}
