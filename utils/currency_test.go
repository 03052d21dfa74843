package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatCurrencyIDR(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "Rp 0"},
		{"999", "Rp 999"},
		{"85237", "Rp 85.237"},
		{"1000000", "Rp 1.000.000"},
		{"15000.5", "Rp 15.000,50"},
		{"-5000", "-Rp 5.000"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCurrencyIDR(decimal.RequireFromString(tt.in)))
		})
	}
}
