// Package otp implements the HMAC-based (RFC 4226) and time-based (RFC 6238)
// one-time password primitives used by the keyring.
//
// Everything in this package is pure: no I/O, no shared state. Secrets move
// between raw bytes and their base32 text form with DecodeSecret and
// EncodeSecret, credentials travel as otpauth:// URIs through BuildURI and
// ParseURI, and codes are produced by ComputeCode for a given moving factor.
// MatchTOTP and MatchHOTP apply the drift and look-ahead windows on top.
package otp
