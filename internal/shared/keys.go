package shared

import (
	"fmt"
	"time"
)

// ReplenishmentRunKey builds the idempotency key guarding one automatic
// ordering run per UTC day.
func ReplenishmentRunKey(day time.Time) string {
	return fmt.Sprintf("replenishment:auto-order:%s", day.UTC().Format("2006-01-02"))
}
