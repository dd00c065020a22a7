// Package qrcode renders otpauth URIs as QR images and reads them back.
//
// Encode wraps github.com/skip2/go-qrcode and returns PNG bytes. Decode
// accepts PNG, JPEG, GIF, BMP and WebP uploads and uses
// github.com/makiuchi-d/gozxing to locate the symbol. Screenshots often
// carry a QR code in one corner of a larger frame, so when the full image
// yields nothing Decode scans overlapping crops before giving up.
package qrcode
