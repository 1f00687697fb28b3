package order

import "time"

// NewServiceWithClock pins time and order numbers for tests.
func NewServiceWithClock(repo Repository, products ProductLookup, shippingFee float64, now func() time.Time, numbers func(time.Time) string) Service {
	s := NewService(repo, products, shippingFee).(*service)
	s.now = now
	s.newNumber = numbers
	return s
}

var CategoryShares = categoryShares
