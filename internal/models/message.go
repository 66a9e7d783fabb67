package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// AttachmentType classifies user-supplied binary content. The catalog checks
// these against the selected model's capabilities before any vendor call.
type AttachmentType string

const (
	AttachmentImage    AttachmentType = "image"
	AttachmentAudio    AttachmentType = "audio"
	AttachmentVideo    AttachmentType = "video"
	AttachmentDocument AttachmentType = "document"
)

// Attachment describes content already uploaded elsewhere. Only the URL and
// metadata travel through the core; the bytes never do.
type Attachment struct {
	Type     AttachmentType `json:"type"`
	URL      string         `json:"url"`
	MimeType string         `json:"mime_type"`
	Size     int64          `json:"size"`
}

// ToolInvocation records one tool call the model issued during a turn.
type ToolInvocation struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Usage carries the vendor-reported token counts for a completed turn.
// Fields the vendor omitted stay zero; they are never inferred.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Message is one entry of a conversation. The assistant message for a turn is
// created empty and mutated in place until finalized; its content only ever
// grows during streaming.
type Message struct {
	ID             int64            `json:"id"`
	ConversationID int64            `json:"conversation_id"`
	UserID         int64            `json:"user_id"`
	Role           Role             `json:"role"`
	Content        string           `json:"content"`
	Reasoning      string           `json:"reasoning,omitempty"`
	ToolCalls      []ToolInvocation `json:"tool_calls,omitempty"`
	Attachments    []Attachment     `json:"attachments,omitempty"`
	Vendor         Vendor           `json:"vendor,omitempty"`
	Model          string           `json:"model,omitempty"`
	Usage          Usage            `json:"usage"`
	FinishReason   string           `json:"finish_reason,omitempty"`
	ErrorKind      string           `json:"error_kind,omitempty"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}
