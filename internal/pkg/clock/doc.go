// Package clock supplies the time source for TOTP step calculation.
//
// Usecases read time only through Clocker. Tests pin it with Fixed so code
// generation and window checks land on known RFC 6238 steps.
package clock
