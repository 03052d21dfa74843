package middlewares

import "errors"

var errTooManyAttempts = errors.New("too many attempts, please wait a moment")
