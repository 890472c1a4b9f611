package domain

import "errors"

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidAmount    = errors.New("amount must be a whole number of DOGE")
	ErrBidTooLow        = errors.New("bid is below the minimum next bid")
	ErrVideoTooLarge    = errors.New("video exceeds the upload size limit")
	ErrSessionNotFound  = errors.New("session not found")
)
