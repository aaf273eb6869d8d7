// Package message defines the Unified Message value record that the
// pipeline owns for the duration of one inbound request.
package message

import "time"

// ContentType enumerates the supported payload shapes of a Unified Message.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentVideo    ContentType = "video"
	ContentAudio    ContentType = "audio"
	ContentVoice    ContentType = "voice"
	ContentDocument ContentType = "document"
	ContentSticker  ContentType = "sticker"
	ContentLocation ContentType = "location"
	ContentContact  ContentType = "contact"
	ContentCallLog  ContentType = "call_log"
)

// Sender describes the originator of a message.
type Sender struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Unified is the platform-agnostic message record that flows through the
// pipeline. It is owned by the pipeline for the duration of one request;
// only media enrichers may mutate Content in place, and only while also
// appending to Metadata["analysis"].
type Unified struct {
	ID             string                 `json:"id"`
	Platform       string                 `json:"platform"`
	ExternalID     string                 `json:"externalId"`
	ConversationID string                 `json:"conversationId"`
	From           string                 `json:"from"`
	To             string                 `json:"to"`
	Content        string                 `json:"content"`
	ContentType    ContentType            `json:"contentType"`
	MediaURL       string                 `json:"mediaUrl,omitempty"`
	MimeType       string                 `json:"mimeType,omitempty"`
	SenderInfo     Sender                 `json:"sender"`
	IsGroup        bool                   `json:"isGroup"`
	GroupID        string                 `json:"groupId,omitempty"`
	GroupName      string                 `json:"groupName,omitempty"`
	FromMe         bool                   `json:"fromMe"`
	IsReplyToBot   bool                   `json:"isReplyToBot"`
	Timestamp      time.Time              `json:"timestamp"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// AppendAnalysis records what a media enricher did to the message. Content
// mutation by an enricher must always be paired with an analysis note.
func (m *Unified) AppendAnalysis(entry map[string]interface{}) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]interface{})
	}
	existing, _ := m.Metadata["analysis"].([]map[string]interface{})
	m.Metadata["analysis"] = append(existing, entry)
}

// Fingerprint returns the deduplication key for this message: (platform, from, id).
func (m *Unified) Fingerprint() string {
	return m.Platform + "\x00" + m.From + "\x00" + m.ID
}

// RequestContext carries the per-call routing information threaded through
// one request: userId, agentId, accountId, conversationId, mode, and the
// reply callback.
type RequestContext struct {
	UserID         string
	AgentID        string
	AccountID      string
	ConversationID string
	SessionID      string
	Mode           string
	Reply          ReplyFunc
}

// ReplyFunc delivers a message back to the originating conversation,
// independent of the delivery-queue path used for asynchronous recall.
type ReplyFunc func(content string, contentType ContentType) error
