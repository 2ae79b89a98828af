package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		page, size       int
		wantPage, wantSz int
	}{
		{0, 0, 0, DefaultPageSize},
		{-3, 5, 0, 5},
		{2, 500, 2, MaxPageSize},
		{1, 20, 1, 20},
		{1 << 62, 100, MaxPage, 100},
	}
	for _, tt := range tests {
		p, s := Calculate(tt.page, tt.size, DefaultPageSize)
		assert.Equal(t, tt.wantPage, p)
		assert.Equal(t, tt.wantSz, s)
	}
}

func TestParse(t *testing.T) {
	assert.Equal(t, 7, ParseIntDefault("7", 1))
	assert.Equal(t, 1, ParseIntDefault("x", 1))
	assert.Equal(t, 1, ParseIntDefault("", 1))

	id, err := ParseID("42")
	assert.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = ParseID("0")
	assert.Error(t, err)
	_, err = ParseID("abc")
	assert.Error(t, err)
}
