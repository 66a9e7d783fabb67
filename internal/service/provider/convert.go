package provider

import (
	"omnichat/internal/models"

	"github.com/cloudwego/eino/schema"
)

// toEinoMessages converts a transcript into eino's message shape. The system
// prompt, when present, becomes the leading system message; the rule block
// goes after the whole history as its own system message, never interleaved;
// attachments ride as multi-content parts next to the user text.
func toEinoMessages(req Request) []*schema.Message {
	out := make([]*schema.Message, 0, len(req.Messages)+2)
	if req.SystemPrompt != "" {
		out = append(out, schema.SystemMessage(req.SystemPrompt))
	}
	for _, msg := range req.Messages {
		out = append(out, toEinoMessage(msg))
	}
	if req.RulesPrompt != "" {
		out = append(out, schema.SystemMessage(req.RulesPrompt))
	}
	return out
}

func toEinoMessage(msg *models.Message) *schema.Message {
	em := &schema.Message{
		Role:    toEinoRole(msg.Role),
		Content: msg.Content,
	}
	if len(msg.Attachments) > 0 {
		em.MultiContent = toMultiContent(msg.Content, msg.Attachments)
		em.Content = ""
	}
	return em
}

func toEinoRole(r models.Role) schema.RoleType {
	switch r {
	case models.RoleAssistant:
		return schema.Assistant
	case models.RoleSystem:
		return schema.System
	case models.RoleTool:
		return schema.Tool
	default:
		return schema.User
	}
}

func toMultiContent(text string, attachments []models.Attachment) []schema.ChatMessagePart {
	parts := make([]schema.ChatMessagePart, 0, len(attachments)+1)
	if text != "" {
		parts = append(parts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeText,
			Text: text,
		})
	}
	for _, att := range attachments {
		switch att.Type {
		case models.AttachmentImage:
			parts = append(parts, schema.ChatMessagePart{
				Type: schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{
					URL:      att.URL,
					MIMEType: att.MimeType,
				},
			})
		case models.AttachmentAudio:
			parts = append(parts, schema.ChatMessagePart{
				Type: schema.ChatMessagePartTypeAudioURL,
				AudioURL: &schema.ChatMessageAudioURL{
					URL:      att.URL,
					MIMEType: att.MimeType,
				},
			})
		case models.AttachmentVideo:
			parts = append(parts, schema.ChatMessagePart{
				Type: schema.ChatMessagePartTypeVideoURL,
				VideoURL: &schema.ChatMessageVideoURL{
					URL:      att.URL,
					MIMEType: att.MimeType,
				},
			})
		case models.AttachmentDocument:
			parts = append(parts, schema.ChatMessagePart{
				Type: schema.ChatMessagePartTypeFileURL,
				FileURL: &schema.ChatMessageFileURL{
					URL:      att.URL,
					MIMEType: att.MimeType,
				},
			})
		}
	}
	return parts
}
