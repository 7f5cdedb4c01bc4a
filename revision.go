package billing

// StreamState is the concurrency requirement applied when appending to a
// stream. Stores check it atomically with the append.
type StreamState interface {
	streamState()
}

// Any appends without checking the current revision.
type Any struct{}

func (Any) streamState() {}

// NoStream requires that the stream does not exist yet.
type NoStream struct{}

func (NoStream) streamState() {}

// StreamExists requires that the stream already exists.
type StreamExists struct{}

func (StreamExists) streamState() {}

// Revision requires the stream to be at exactly this version.
type Revision uint64

func (Revision) streamState() {}
