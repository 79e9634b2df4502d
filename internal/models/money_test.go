package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFitsMoney(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"0", true},
		{"0.01", true},
		{"-0.01", true},
		{"12.50", true},
		{"1.0000000000", true},
		{"999999999999999999.99", true},
		{"-999999999999999999.99", true},
		{"0.005", false},
		{"-0.005", false},
		{"1000000000000000000", false},
		{"1e1000000", false},
		{"1e-1000000", false},
		{"1e2000000000", false},
		{"1.00000000000000000000000000000000000", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FitsMoney(decimal.RequireFromString(c.in)), c.in)
	}
}
