package code

import (
	"log/slog"
	"math/rand"
	"strconv"
)

// New returns a 6-digit numeric verification code in [100000, 999999].
// The codes gate low-stakes, email-confirmed account actions, so a plain
// uniform source is sufficient here.
func New() string {
	c := strconv.Itoa(100000 + rand.Intn(900000))
	slog.Debug("generated verification code", "code", c)
	return c
}
