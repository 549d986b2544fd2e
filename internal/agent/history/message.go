package history

import "strings"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartType tags one content part of a message.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// ContentPart is one piece of a message payload: either text or a
// reference to an image (data URL or remote URL).
type ContentPart struct {
	Type     PartType `json:"type"`
	Text     string   `json:"text,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
}

// Message is one conversation entry exchanged between the runtime and
// the policy.
type Message struct {
	Role  Role          `json:"role"`
	Parts []ContentPart `json:"parts"`
}

// Text builds a single-part text message.
func Text(role Role, text string) Message {
	return Message{Role: role, Parts: []ContentPart{{Type: PartText, Text: text}}}
}

// JoinedText concatenates all text parts of the message.
func (m Message) JoinedText() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// IsEmpty reports whether the message carries no content at all.
func (m Message) IsEmpty() bool {
	for _, p := range m.Parts {
		if p.Type == PartImage || p.Text != "" {
			return false
		}
	}
	return true
}

// clone returns a deep copy of the message so transforms never alias the
// caller's part slice.
func (m Message) clone() Message {
	out := Message{Role: m.Role, Parts: make([]ContentPart, len(m.Parts))}
	copy(out.Parts, m.Parts)
	return out
}

// Class partitions messages for trim and consolidation purposes. Init
// and memory messages are exempt from consolidation and are never the
// trim target.
type Class string

const (
	ClassInit    Class = "init"
	ClassTask    Class = "task"
	ClassMemory  Class = "memory"
	ClassRegular Class = "regular"
)

// Protected reports whether the class is exempt from consolidation and
// trimming.
func (c Class) Protected() bool {
	return c == ClassInit || c == ClassMemory
}

// Metadata is the per-message bookkeeping the manager maintains.
type Metadata struct {
	Tokens int   `json:"tokens"`
	Class  Class `json:"class"`
}

// ManagedMessage pairs a message with its metadata. Instances are owned
// by the Manager: created on append, rewritten only by redaction, trim,
// or window replacement.
type ManagedMessage struct {
	Message  Message  `json:"message"`
	Metadata Metadata `json:"metadata"`
}
