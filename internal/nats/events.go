package nats

import "time"

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamMemory = "FUTUREECHO_MEMORY"
	StreamEvents = "FUTUREECHO_EVENTS"
)

// Subject constants.
const (
	SubjectMemoryIndex   = "futureecho.memory.index"
	SubjectActivityEvent = "futureecho.events.activity"
)
