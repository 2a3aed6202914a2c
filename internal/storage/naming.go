package storage

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ImageName builds the crop file name, e.g.
// 20250310_093000_123456_Alice_Smith.jpg.
func ImageName(t time.Time, label string) string {
	return fmt.Sprintf("%s_%06d_%s.jpg", t.Format("20060102_150405"), t.Nanosecond()/1000, safeLabel(label))
}

func safeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "Unknown"
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			return r
		}
		return '_'
	}, label)
}
