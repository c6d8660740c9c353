package backend

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeClock(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{in: "08:00", want: "08:00"},
		{in: "8:05", want: "08:05"},
		{in: " 23:00 ", want: "23:00"},
		{in: "1899-12-30T08:00:00.000Z", want: "08:00"},
		{in: "1899-12-30T22:15:00+01:00", want: "21:15"},
		{in: 0.5, want: "12:00"},
		{in: 0.0, want: "00:00"},
		{in: 1.5, want: ""},
		{in: "", want: ""},
		{in: "noon", want: ""},
		{in: nil, want: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeClock(tt.in), "input %v", tt.in)
	}
}

func TestFlexBool(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{raw: `true`, want: true},
		{raw: `"TRUE"`, want: true},
		{raw: `"true"`, want: true},
		{raw: `1`, want: true},
		{raw: `false`, want: false},
		{raw: `"FALSE"`, want: false},
		{raw: `"yes"`, want: false},
		{raw: `null`, want: false},
	}

	for _, tt := range tests {
		var b FlexBool
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &b))
		assert.Equal(t, tt.want, bool(b), tt.raw)
	}
}

func TestFlexInt(t *testing.T) {
	var user User
	require.NoError(t, json.Unmarshal([]byte(`{"uid":"U1","tokens":{"LAUNDRY":"4","DRYER":2,"GYM":""}}`), &user))

	assert.Equal(t, 4, user.Balance("LAUNDRY"))
	assert.Equal(t, 2, user.Balance("DRYER"))
	assert.Equal(t, 0, user.Balance("GYM"))
	assert.Equal(t, 0, user.Balance("MISSING"))

	var n FlexInt
	require.Error(t, json.Unmarshal([]byte(`"abc"`), &n))
}

func TestParseTimestamp(t *testing.T) {
	ts, ok := ParseTimestamp("2026-10-19T10:11:12.000Z")
	require.True(t, ok)
	assert.Equal(t, 10, ts.Hour())

	ts, ok = ParseTimestamp("2026-10-19 10:11:12")
	require.True(t, ok)
	assert.Equal(t, 11, ts.Minute())

	_, ok = ParseTimestamp("yesterday")
	assert.False(t, ok)
}
