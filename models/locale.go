package models

import "strings"

// Locale selects the language of generated recommendations
type Locale string

const (
	LocaleUkrainian Locale = "uk"
	LocaleEnglish   Locale = "en"
	// LocaleAuto asks the caller to detect the language from the analyzed posts
	LocaleAuto Locale = "auto"
)

var dayNames = map[Locale][7]string{
	LocaleEnglish:   {"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"},
	LocaleUkrainian: {"понеділок", "вівторок", "середа", "четвер", "п'ятниця", "субота", "неділя"},
}

var unknownDay = map[Locale]string{
	LocaleEnglish:   "unknown",
	LocaleUkrainian: "невідомо",
}

// ParseLocale resolves a user supplied language tag; anything unrecognized means auto detection
func ParseLocale(s string) Locale {
	switch Locale(strings.ToLower(strings.TrimSpace(s))) {
	case LocaleEnglish:
		return LocaleEnglish
	case LocaleUkrainian:
		return LocaleUkrainian
	default:
		return LocaleAuto
	}
}

// Concrete returns the locale itself, or Ukrainian for auto
func (l Locale) Concrete() Locale {
	if l == LocaleEnglish {
		return LocaleEnglish
	}
	return LocaleUkrainian
}

// DayName maps a Monday-based day index (0..6) to its localized name
func (l Locale) DayName(day int) string {
	loc := l.Concrete()
	if day < 0 || day > 6 {
		return unknownDay[loc]
	}
	return dayNames[loc][day]
}
