// Package docid generates and validates the 24-character hex document
// identifiers used for products, orders and site settings.
package docid

import "go.mongodb.org/mongo-driver/bson/primitive"

// Length of a hex encoded identifier.
const Length = 24

func New() string {
	return primitive.NewObjectID().Hex()
}

// Valid reports whether id is a 24-character hex identifier.
func Valid(id string) bool {
	if len(id) != Length {
		return false
	}
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}
