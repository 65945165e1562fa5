package service

import "time"

const (
	// DefaultNTPTimeout bounds a single NTP query.
	DefaultNTPTimeout = 2 * time.Second
)
