package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateReference creates a unique reference string with the given
// prefix, e.g. "WDL-20260831-1A2B3C4D".
func GenerateReference(prefix string) string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().Format("20060102"), token)
}
