package main

import (
	"context"

	"github.com/shandysiswandi/authhelper/internal/app"
)

// @title           AuthHelper API
// @version         1.0
// @description     AuthHelper issues, stores and validates TOTP and HOTP keys.
// @license.name    MIT
// @license.url     https://mit-license.org/
// @server          http://localhost:8080
func main() {
	a := app.New()
	<-a.Start()

	ctx, cancel := context.WithTimeout(context.Background(), a.ShutdownTimeout())
	defer cancel()

	a.Stop(ctx)
}
