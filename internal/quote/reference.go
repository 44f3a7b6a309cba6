package quote

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewReference builds the human-facing quote number, e.g. DEV-202610-3F9A1C.
func NewReference(prefix string, id uuid.UUID, at time.Time) string {
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = "DEV"
	}
	hex := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return prefix + "-" + at.UTC().Format("200601") + "-" + hex[:6]
}
