package database

import "errors"

// Journal errors; callers log them and carry on
var (
	ErrJournalClosed = errors.New("journal is closed")
	ErrQueueFull     = errors.New("journal queue is full")
	ErrNilEntry      = errors.New("journal entry cannot be nil")
)
