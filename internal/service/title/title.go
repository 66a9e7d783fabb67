// Package title derives short conversation titles from the opening exchange.
// Title synthesis is decoration: it runs after the first assistant turn and
// every failure is logged and swallowed, never surfaced to the user.
package title

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"omnichat/internal/catalog"
	"omnichat/internal/models"
	"omnichat/internal/service/credentials"
	"omnichat/internal/service/provider"
	"omnichat/internal/storage"
)

const (
	synthesisTimeout = 30 * time.Second
	maxTitleLen      = 60
	maxExcerptLen    = 2000
)

const titlePrompt = "Generate a concise title (at most six words) for the conversation below. " +
	"Answer with the title only: no quotes, no punctuation at the end, same language as the conversation."

// Synthesizer generates a conversation title from its first exchange using
// the cheapest model of the conversation's vendor.
type Synthesizer struct {
	store   *storage.Store
	catalog *catalog.Catalog
	creds   *credentials.Service
	factory *provider.Factory
}

func NewSynthesizer(store *storage.Store, cat *catalog.Catalog, creds *credentials.Service, factory *provider.Factory) *Synthesizer {
	return &Synthesizer{store: store, catalog: cat, creds: creds, factory: factory}
}

// Synthesize titles the conversation if it still carries the default title.
// The title is re-read right before writing: a user rename that lands during
// generation always wins.
func (s *Synthesizer) Synthesize(ctx context.Context, conv *models.Conversation, userText, assistantText string) {
	ctx, cancel := context.WithTimeout(ctx, synthesisTimeout)
	defer cancel()

	current, err := s.store.GetTitle(ctx, conv.ID)
	if err != nil {
		log.Printf("title synthesis skipped for conversation %d: %v", conv.ID, err)
		return
	}
	if current != models.DefaultTitle {
		return
	}

	generated, err := s.generate(ctx, conv, userText, assistantText)
	if err != nil {
		log.Printf("title synthesis failed for conversation %d: %v", conv.ID, err)
		return
	}

	updated, err := s.store.UpdateTitleIfDefault(ctx, conv.ID, generated)
	if err != nil {
		log.Printf("title update failed for conversation %d: %v", conv.ID, err)
		return
	}
	if !updated {
		log.Printf("title for conversation %d changed during synthesis, keeping user's", conv.ID)
	}
}

func (s *Synthesizer) generate(ctx context.Context, conv *models.Conversation, userText, assistantText string) (string, error) {
	modelID, err := s.pickModel(conv.Vendor)
	if err != nil {
		return "", err
	}
	secret, err := s.creds.Secret(ctx, conv.UserID, conv.Vendor)
	if err != nil {
		return "", err
	}
	adapter, err := s.factory.Adapter(ctx, modelID, secret)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf("User: %s\n\nAssistant: %s", excerpt(userText), excerpt(assistantText))
	res, err := adapter.GenerateCompletion(ctx, provider.Request{
		ModelID:      modelID,
		SystemPrompt: titlePrompt,
		Messages: []*models.Message{
			{Role: models.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	generated := sanitize(res.Content)
	if generated == "" {
		return "", fmt.Errorf("model returned an empty title")
	}
	return generated, nil
}

// pickModel takes the cheapest model the vendor offers for throwaway work.
func (s *Synthesizer) pickModel(vendor models.Vendor) (string, error) {
	pref := s.catalog.TitlePreference(vendor)
	if len(pref) == 0 {
		return "", fmt.Errorf("no title model for vendor %s", vendor)
	}
	return pref[0].ID, nil
}

func excerpt(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > maxExcerptLen {
		text = text[:maxExcerptLen]
	}
	return text
}

func sanitize(title string) string {
	title = strings.TrimSpace(title)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	title = strings.Trim(title, "\"'“”‘’ ")
	if len(title) > maxTitleLen {
		runes := []rune(title)
		if len(runes) > maxTitleLen {
			title = string(runes[:maxTitleLen])
		}
	}
	return strings.TrimSpace(title)
}
