package util

import "strconv"

const (
	DefaultPageSize  = 10
	DefaultOrderSize = 20
	MaxPageSize      = 100
	MaxPage          = 10000
)

// Calculate normalises a 0-based page number and page size from query input.
func Calculate(page, size, defSize int) (int, int) {
	if page < 0 {
		page = 0
	}
	if page > MaxPage {
		page = MaxPage
	}
	if size <= 0 {
		size = defSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}
