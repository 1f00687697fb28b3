package order

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"time"
)

var orderNumberPattern = regexp.MustCompile(`^ORD-\d{6}-\d{4}$`)

// NewOrderNumber returns a human-facing number of the form ORD-YYMMDD-NNNN.
// Uniqueness is enforced by the database, not here.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%04d", now.Format("060102"), rand.IntN(10000))
}

func ValidOrderNumber(number string) bool {
	return orderNumberPattern.MatchString(number)
}
