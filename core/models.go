package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ContentHash returns the hex-encoded BLAKE2b-256 digest of text.
// Identical text always yields the same hash; it is the identity used for
// deduplication and index upserts.
func ContentHash(text string) string {
	h, _ := blake2b.New(32, nil)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Role identifies the author of a conversation message.
type Role int

const (
	// RoleHuman represents the person asking questions.
	RoleHuman Role = iota + 1
	// RoleAssistant represents the answering bot.
	RoleAssistant
)

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleHuman:
		return "human"
	case RoleAssistant:
		return "ai"
	default:
		return "unknown"
	}
}

// ParseRole maps a wire name ("human" or "ai") to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "human":
		return RoleHuman, nil
	case "ai":
		return RoleAssistant, nil
	}
	return 0, ErrInvalidRole
}

// SourceMetadata describes where a piece of content came from.
// Link and Name are always present. PublicationDate is UnknownDate when the
// date could not be determined.
type SourceMetadata struct {
	Link            string
	Name            string
	Author          string
	PublicationDate time.Time
}

// Date returns the publication date rendered as YYYY-MM-DD.
func (m SourceMetadata) Date() string {
	return FormatDate(m.PublicationDate)
}

// Merge returns m with every field overridden by the non-empty fields of other.
func (m SourceMetadata) Merge(other SourceMetadata) SourceMetadata {
	if other.Link != "" {
		m.Link = other.Link
	}
	if other.Name != "" {
		m.Name = other.Name
	}
	if other.Author != "" {
		m.Author = other.Author
	}
	if !other.PublicationDate.IsZero() && !IsUnknownDate(other.PublicationDate) {
		m.PublicationDate = other.PublicationDate
	}
	if m.PublicationDate.IsZero() {
		m.PublicationDate = UnknownDate
	}
	return m
}

// Document is the cleaned text of one source plus its metadata.
// Documents are never mutated after a parser produces them.
type Document struct {
	Content  string
	Metadata SourceMetadata
}

// Chunk is a bounded window of a Document's text ready for embedding.
type Chunk struct {
	Text        string
	Metadata    SourceMetadata
	ChunkIndex  int
	ContentHash string
}

// IndexedChunk is a Chunk together with its embedding as stored in the vector index.
type IndexedChunk struct {
	Chunk
	Vector     []float32
	InsertedAt time.Time
}

// Passage is a chunk returned from a similarity query.
type Passage struct {
	Text        string
	Metadata    SourceMetadata
	ContentHash string
	Score       float32
}

// ConversationMessage is one persisted turn of a conversation.
// Timestamp is milliseconds since the Unix epoch.
type ConversationMessage struct {
	MessageID         string
	PreviousMessageID string
	Role              Role
	Content           string
	Sources           []SourceMetadata
	Timestamp         int64
}

// Time returns the message timestamp as a time.Time.
func (m *ConversationMessage) Time() time.Time {
	return time.UnixMilli(m.Timestamp).UTC()
}

// Turn is one prior exchange passed along with a question.
type Turn struct {
	Role Role
	Text string
}

// SourceFailure records a source that could not be ingested.
type SourceFailure struct {
	Source string
	Reason string
}

// IngestionReport summarizes one ingestion run over a source directory.
type IngestionReport struct {
	Collection      string
	StartedAt       time.Time
	FinishedAt      time.Time
	Processed       int
	Skipped         int
	Failed          int
	ChunksStaged    int
	DuplicateChunks int
	ChunksUnchanged int
	ChunksWritten   int
	Failures        []SourceFailure
}

// Duration returns how long the run took.
func (r *IngestionReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
