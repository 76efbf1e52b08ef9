package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Kind definition message kind
type Kind string

const (
	// KindText plain text note
	KindText Kind = "text"
	// KindImage inline data-URI image
	KindImage Kind = "image"
	// KindFile JSON file envelope with embedded data-URI
	KindFile Kind = "file"
	// KindLink text that is exactly one URL, derived, never sent by clients
	KindLink Kind = "link"
)

// Submission limits. Enforced when a message is submitted, never by the store.
const (
	// MaxTextLen max characters for a text payload
	MaxTextLen = 30000
	// MaxBinaryLen max bytes for an image/file content string (base64 data-URI)
	MaxBinaryLen = 5 * 1024 * 1024
	// RetentionWindow period after which a message becomes invisible and deletable
	RetentionWindow = 24 * time.Hour
	// DefaultListLimit max messages returned by a room read
	DefaultListLimit = 50
)

// Message durable unit of a room. ID and CreatedAt are store assigned;
// ID is monotonically ordered and breaks ties for equal timestamps.
type Message struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	RoomCode  string    `bson:"room_code" json:"room_code"`
	Kind      Kind      `bson:"kind" json:"kind"`
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Expired report whether the message is outside the retention window at now.
func (m *Message) Expired(now time.Time) bool {
	return now.Sub(m.CreatedAt) > RetentionWindow
}

// urlOnlyPattern matches content that is a single bare URL and nothing else.
var urlOnlyPattern = regexp.MustCompile(`^(https?://\S+)$`)

// DetectKind resolve the final kind of a submission. Text that is exactly
// one URL becomes a link; URLs embedded in longer text stay text.
func DetectKind(kind Kind, content string) Kind {
	if kind == KindText && urlOnlyPattern.MatchString(strings.TrimSpace(content)) {
		return KindLink
	}
	return kind
}

// ValidationError rejected submission, nothing was written.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// IsValidationError report whether err is a rejected submission.
func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// ValidateContent check the size bound for the kind before submission.
func ValidateContent(kind Kind, content string) error {
	if strings.TrimSpace(content) == "" {
		return &ValidationError{Reason: "empty content"}
	}
	switch kind {
	case KindText, KindLink:
		if len([]rune(content)) > MaxTextLen {
			return &ValidationError{Reason: fmt.Sprintf("text exceeds %d characters", MaxTextLen)}
		}
	case KindImage, KindFile:
		if len(content) > MaxBinaryLen {
			return &ValidationError{Reason: fmt.Sprintf("payload exceeds %d bytes", MaxBinaryLen)}
		}
	default:
		return &ValidationError{Reason: "unknown kind " + string(kind)}
	}
	return nil
}

// PayloadKind definition parsed payload variant
type PayloadKind string

const (
	// PayloadText raw text
	PayloadText PayloadKind = "text"
	// PayloadImage image data-URI
	PayloadImage PayloadKind = "image"
	// PayloadFile named file with embedded data-URI
	PayloadFile PayloadKind = "file"
	// PayloadLink single URL
	PayloadLink PayloadKind = "link"
	// PayloadUnparseable stored content did not match its kind
	PayloadUnparseable PayloadKind = "unparseable"
)

// FileEnvelope content of a file message: {name, size, data}.
type FileEnvelope struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Data string `json:"data"`
}

// Payload tagged view of message content, parsed once at the store
// boundary. Exactly the fields for its Kind are set.
type Payload struct {
	Kind    PayloadKind
	Text    string
	DataURI string
	URL     string
	File    *FileEnvelope
}

// ParsePayload decode message content into its tagged variant. Malformed
// content degrades to PayloadUnparseable, it never fails.
func ParsePayload(m *Message) Payload {
	switch m.Kind {
	case KindText:
		return Payload{Kind: PayloadText, Text: m.Content}
	case KindLink:
		return Payload{Kind: PayloadLink, URL: m.Content}
	case KindImage:
		if !strings.HasPrefix(m.Content, "data:") {
			return Payload{Kind: PayloadUnparseable}
		}
		return Payload{Kind: PayloadImage, DataURI: m.Content}
	case KindFile:
		var env FileEnvelope
		if err := json.Unmarshal([]byte(m.Content), &env); err != nil || env.Name == "" || !strings.HasPrefix(env.Data, "data:") {
			return Payload{Kind: PayloadUnparseable}
		}
		return Payload{Kind: PayloadFile, File: &env}
	default:
		return Payload{Kind: PayloadUnparseable}
	}
}
