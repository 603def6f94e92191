package aplog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCubeMatcherDefaults(t *testing.T) {
	m, err := newCubeMatcher(nil)
	require.NoError(t, err)

	cases := []struct {
		text string
		want string
	}{
		{"CarbonixCubeOrange 0031002E", "0031002E"},
		{"CubeOrange 12345", "12345"},
		{"CubeOrangePlus CX-007", "CX-007"},
		{"CubeOrangePlus-Volanti V-22 rev3", "V-22 rev3"},
		{"APM:Copter V4.3.0", ""},
		{"RCOut: PWM:1-12", ""},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, m.extract(c.text), c.text)
	}
}

func TestCubeMatcherExtraPatterns(t *testing.T) {
	m, err := newCubeMatcher([]string{`FlightBoard\s+(\S+)`})
	require.NoError(t, err)
	assert.Equal(t, "FB-9", m.extract("FlightBoard FB-9"))
	// Defaults still apply alongside extras.
	assert.Equal(t, "CX-007", m.extract("CubeOrangePlus CX-007"))
}

func TestCubeMatcherRejectsBadPattern(t *testing.T) {
	_, err := newCubeMatcher([]string{`([`})
	assert.Error(t, err)
}

func TestMetadataComplete(t *testing.T) {
	m := &Metadata{}
	assert.False(t, m.complete())
	m.CubeID = "CX-007"
	m.BootNumber = 42
	assert.False(t, m.complete())
	m.StartUnix = 1.7e9
	assert.True(t, m.complete())
}
