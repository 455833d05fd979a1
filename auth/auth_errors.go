package auth

import "errors"

var (
	UserBlockedErr        = errors.New("user blocked")
	InvalidAccessTokenErr = errors.New("invalid access token")
)
