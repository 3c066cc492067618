package store

import "errors"

var (
	ErrSessionNotFound    = errors.New("ticket session not found")
	ErrTranscriptNotFound = errors.New("transcript not found")
	ErrDuplicateSession   = errors.New("session already exists for thread")
)
