package workflow

import (
	"fmt"
	"strconv"
	"strings"
)

// DisplayEntity selects a tenant-scoped display number sequence
type DisplayEntity string

const (
	EntityInstance DisplayEntity = "workflow_instance"
	EntityStep     DisplayEntity = "workflow_step"
)

var displayPrefixes = map[DisplayEntity]string{
	EntityInstance: "WF",
	EntityStep:     "STEP",
}

// FormatDisplayID renders a display number with its entity prefix
func FormatDisplayID(entity DisplayEntity, number int64) string {
	return fmt.Sprintf("%s-%d", displayPrefixes[entity], number)
}

// ParseDisplayNumber accepts either the bare number ("42") or the prefixed
// form ("WF-42", case-insensitive) and returns the number
func ParseDisplayNumber(entity DisplayEntity, s string) (int64, error) {
	raw := strings.TrimSpace(s)
	prefix := displayPrefixes[entity] + "-"
	if len(raw) > len(prefix) && strings.EqualFold(raw[:len(prefix)], prefix) {
		raw = raw[len(prefix):]
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, Validationf("invalid %s display id %q", displayPrefixes[entity], s)
	}
	return n, nil
}
