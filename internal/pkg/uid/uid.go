// Package uid generates opaque string identifiers for records and requests.
package uid

// StringID generates unique string identifiers.
type StringID interface {
	Generate() string
}
