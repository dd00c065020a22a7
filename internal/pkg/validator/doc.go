// Package validator checks request inputs and module dependencies.
//
// The go-playground backed implementation reports failures as
// V10ValidationError, keyed by the snake_case JSON field name, which the
// router returns verbatim in the error envelope. The custom "label" tag
// guards credential names and issuers that end up in otpauth:// URIs.
package validator
