package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionalFloat(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		sentinel bool
		want     *float64
	}{
		{name: "empty", in: "", sentinel: false, want: nil},
		{name: "whitespace", in: "   ", sentinel: false, want: nil},
		{name: "unparseable", in: "N/A", sentinel: false, want: nil},
		{name: "plain value", in: "42.5", sentinel: false, want: f(42.5)},
		{name: "zero kept", in: "0", sentinel: true, want: f(0)},
		{name: "sentinel stripped", in: "-6666666666", sentinel: true, want: nil},
		{name: "floor itself kept", in: "-999999", sentinel: true, want: f(-999999)},
		{name: "just below floor stripped", in: "-1000000", sentinel: true, want: nil},
		{name: "sentinel ignored without flag", in: "-6666666666", sentinel: false, want: f(-6666666666)},
		{name: "small negative kept", in: "-5", sentinel: true, want: f(-5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseOptionalFloat(tt.in, tt.sentinel)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestZip5(t *testing.T) {
	assert.Equal(t, "40422", Zip5("40422-1234"))
	assert.Equal(t, "40422", Zip5(" 40422 "))
	assert.Equal(t, "601", Zip5("601"))
	assert.Equal(t, "", Zip5(""))
}

func f(v float64) *float64 { return &v }
