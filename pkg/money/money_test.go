package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0.005", "0.01"},
		{"0.004", "0"},
		{"14.9985", "15"},
		{"1.115", "1.12"},
		{"2.675", "2.68"},
		{"-0.005", "-0.01"},
		{"99.99", "99.99"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Round2(MustParse(tt.in))
			assert.True(t, got.Equal(MustParse(tt.want)), "Round2(%s) = %s, want %s", tt.in, got, tt.want)
		})
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "15.00", Format(Percent(MustParse("99.99"), MustParse("15"))))
	assert.Equal(t, "0.00", Format(Percent(MustParse("100"), Zero)))
	assert.Equal(t, "12.35", Format(Percent(MustParse("123.45"), MustParse("10"))))
}

func TestMinorRoundTrip(t *testing.T) {
	minor, err := ToMinor(MustParse("114.99"))
	require.NoError(t, err)
	assert.Equal(t, int64(11499), minor)
	assert.True(t, FromMinor(minor).Equal(MustParse("114.99")))

	_, err = ToMinor(MustParse("1.005"))
	assert.Error(t, err)

	minor, err = ToMinor(MustParse("-20"))
	require.NoError(t, err)
	assert.Equal(t, int64(-2000), minor)
}

func TestToMinorRejectsOutOfRange(t *testing.T) {
	minor, err := ToMinor(MustParse("999999999999999.99"))
	require.NoError(t, err)
	assert.Equal(t, int64(99999999999999999), minor)

	for _, amount := range []string{"1000000000000000", "-1000000000000000", "184467440737095517.16"} {
		_, err := ToMinor(MustParse(amount))
		assert.Error(t, err, amount)
		assert.False(t, InRange(MustParse(amount)), amount)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("12,5")
	assert.Error(t, err)
}

func TestSum(t *testing.T) {
	got := Sum(MustParse("0.1"), MustParse("0.2"), MustParse("0.3"))
	assert.True(t, got.Equal(MustParse("0.6")))
}
