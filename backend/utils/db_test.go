package utils

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSQLTime(t *testing.T) {
	want := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	for _, value := range []string{
		"2026-03-14 09:26:53+00:00",
		"2026-03-14 09:26:53.000000000+00:00",
		"2026-03-14T09:26:53+00:00",
		"2026-03-14 09:26:53",
		"2026-03-14T09:26:53Z",
	} {
		got := ParseSQLTime(sql.NullString{String: value, Valid: true})
		require.NotNil(t, got, "value %q", value)
		assert.True(t, got.Equal(want), "value %q parsed to %v", value, got)
	}

	assert.Nil(t, ParseSQLTime(sql.NullString{}))
	assert.Nil(t, ParseSQLTime(sql.NullString{String: "", Valid: true}))
	assert.Nil(t, ParseSQLTime(sql.NullString{String: "not a time", Valid: true}))
}
