package utils

import (
	"fmt"
	"strings"
	"time"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02", "2006"}

// ParseDate converts RFC 3339, YYYY-MM-DD or a bare year to time.Time.
func ParseDate(strDate string) (time.Time, error) {
	s := strings.TrimSpace(strDate)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("ParseDate: unrecognised date %q", strDate)
}
