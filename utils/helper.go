package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func DereferencePtr[T any](ptr *T) T {
	var zero T
	if ptr == nil {
		return zero
	}
	return *ptr
}

func UniqueSlice[T comparable](input []T) []T {
	seen := make(map[T]struct{}, len(input))
	out := make([]T, 0, len(input))
	for _, v := range input {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func NewDocumentId() string {
	return uuid.NewString()
}

// Sales order numbers look like SO-000123 once a serial is assigned.
func FormatSalesOrderNo(serial int64) string {
	return fmt.Sprintf("SO-%06d", serial)
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
