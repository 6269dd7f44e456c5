package model

import (
	"fmt"
	"time"
)

var epoch = time.Date(2200, time.January, 1, 0, 0, 0, 0, time.UTC)

// Date is a calendar day counted from 2200-01-01.
type Date int64

func (d Date) DaysSinceEpoch() int64 { return int64(d) }

func (d Date) AddDays(n int64) Date { return d + Date(n) }

func (d Date) String() string {
	return epoch.AddDate(0, 0, int(d)).Format("2006-01-02")
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("date %q: %w", s, err)
	}
	days := t.Sub(epoch).Hours() / 24
	return Date(int64(days)), nil
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	v, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
