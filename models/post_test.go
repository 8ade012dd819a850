package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostCanTransitionTo(t *testing.T) {
	tests := []struct {
		from     PostStatus
		to       PostStatus
		expected bool
	}{
		{PostStatusDraft, PostStatusScheduled, true},
		{PostStatusDraft, PostStatusPublished, true},
		{PostStatusScheduled, PostStatusPublished, true},
		{PostStatusScheduled, PostStatusFailed, true},
		{PostStatusScheduled, PostStatusDraft, false},
		{PostStatusPublished, PostStatusScheduled, false},
		{PostStatusPublished, PostStatusFailed, false},
		{PostStatusFailed, PostStatusPublished, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			p := &Post{Status: tt.from}
			assert.Equal(t, tt.expected, p.CanTransitionTo(tt.to))
		})
	}
}

func TestPostStatusValue(t *testing.T) {
	v, err := PostStatusScheduled.Value()
	assert.NoError(t, err)
	assert.Equal(t, "scheduled", v)

	_, err = PostStatus("archived").Value()
	assert.Error(t, err)

	var s PostStatus
	assert.NoError(t, s.Scan([]byte("published")))
	assert.Equal(t, PostStatusPublished, s)
	assert.True(t, s.Terminal())
}

func TestLocaleDayName(t *testing.T) {
	assert.Equal(t, "Monday", LocaleEnglish.DayName(0))
	assert.Equal(t, "Sunday", LocaleEnglish.DayName(6))
	assert.Equal(t, "середа", LocaleUkrainian.DayName(2))
	assert.Equal(t, "unknown", LocaleEnglish.DayName(7))
	assert.Equal(t, "невідомо", LocaleUkrainian.DayName(-1))
	assert.Equal(t, "понеділок", LocaleAuto.DayName(0))

	assert.Equal(t, LocaleEnglish, ParseLocale(" EN "))
	assert.Equal(t, LocaleUkrainian, ParseLocale("uk"))
	assert.Equal(t, LocaleAuto, ParseLocale("de"))
}
