package utilities

import (
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// IsKSUID reports whether s parses as a KSUID.
func IsKSUID(s string) bool {
	_, err := ksuid.Parse(s)
	return err == nil
}
