package domain

// DayKey identifies a daily record. Components are compared as text exactly
// as read, so a day-of-year of "05" and "5" are different days.
type DayKey struct {
	Year string
	DOY  string
}

// HourKey identifies an hourly record.
type HourKey struct {
	DayKey
	Hour string
}

// Day returns the daily key the hour belongs to.
func (k HourKey) Day() DayKey { return k.DayKey }

func (k DayKey) String() string { return k.Year + "." + k.DOY }

func (k HourKey) String() string { return k.DayKey.String() + "." + k.Hour }
