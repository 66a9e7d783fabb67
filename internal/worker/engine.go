package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"omnichat/internal/catalog"
	"omnichat/internal/config"
	"omnichat/internal/models"
	"omnichat/internal/redis"
	"omnichat/internal/service/credentials"
	"omnichat/internal/service/provider"
	"omnichat/internal/service/title"
	"omnichat/internal/storage"
)

// GenerateRequest is the trigger contract for one generation turn. A zero
// ConversationID starts a new conversation; an empty Message regenerates from
// the existing transcript.
type GenerateRequest struct {
	UserID          int64
	ConversationID  int64
	ModelID         string
	Message         string
	Attachments     []models.Attachment
	WebSearch       bool
	ReasoningEffort string
	SystemPrompt    string
}

// AdapterFactory yields a vendor adapter for a model id and decrypted secret.
// Satisfied by provider.Factory; the indirection keeps the streaming loop
// drivable without a live vendor.
type AdapterFactory interface {
	Adapter(ctx context.Context, modelID, secret string) (provider.Adapter, error)
}

// Engine drives generation turns end to end: admission, context assembly,
// streaming accumulation, finalization, and the follow-up title and usage
// jobs. The HTTP layer only ever talks to Submit, Cancel and the read paths.
type Engine struct {
	store      *storage.Store
	catalog    *catalog.Catalog
	creds      *credentials.Service
	factory    AdapterFactory
	titles     *title.Synthesizer
	snapshots  *snapshotCache
	registry   *taskRegistry
	dispatcher *Dispatcher
}

func NewEngine(cfg *config.Config, store *storage.Store, cat *catalog.Catalog, creds *credentials.Service, factory AdapterFactory, titles *title.Synthesizer, cache *redis.Client) *Engine {
	e := &Engine{
		store:     store,
		catalog:   cat,
		creds:     creds,
		factory:   factory,
		titles:    titles,
		snapshots: newSnapshotCache(cache),
		registry:  newTaskRegistry(),
	}
	basic := cfg.BasicConfig
	idle := time.Duration(basic.WorkerIdleTimeout) * time.Minute
	e.dispatcher = NewDispatcher(basic.MinWorkers, basic.MaxWorkers, basic.QueueSize, e, idle)
	return e
}

// Submit admits a generation turn and queues it. Everything that can be
// rejected is rejected here, before the caller gets its 202: model and
// capability checks, conversation ownership, credential lookup, and the
// generating-flag handshake. On return the turn runs detached from the
// caller's request context.
func (e *Engine) Submit(ctx context.Context, req GenerateRequest) (*models.Conversation, error) {
	modelID := req.ModelID
	if req.WebSearch {
		modelID = catalog.SearchVariant(modelID)
	}
	desc, err := e.catalog.Resolve(modelID)
	if err != nil {
		return nil, err
	}
	for _, att := range req.Attachments {
		ok, err := e.catalog.SupportsAttachment(modelID, att.Type)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: model %s does not accept %s attachments", models.ErrUnsupportedCapability, req.ModelID, att.Type)
		}
	}
	if req.ReasoningEffort != "" && !desc.Capabilities.Reasoning {
		return nil, fmt.Errorf("%w: model %s does not support reasoning effort", models.ErrUnsupportedCapability, req.ModelID)
	}

	userText := strings.TrimSpace(req.Message)
	if req.ConversationID == 0 && userText == "" && len(req.Attachments) == 0 {
		return nil, fmt.Errorf("%w: message is required for a new conversation", models.ErrValidation)
	}

	var conv *models.Conversation
	if req.ConversationID == 0 {
		conv, err = e.store.CreateConversation(ctx, req.UserID, desc.Vendor, req.ModelID, req.SystemPrompt)
	} else {
		conv, err = e.store.GetConversation(ctx, req.UserID, req.ConversationID)
	}
	if err != nil {
		return nil, err
	}

	secret, err := e.creds.Secret(ctx, req.UserID, desc.Vendor)
	if err != nil {
		return nil, err
	}

	// Admission point: flag and registry entry are created together and
	// released together by the single cleanup path in handleGenerate.
	if err := e.store.BeginGenerating(ctx, conv.ID); err != nil {
		return nil, err
	}
	fail := func(err error) (*models.Conversation, error) {
		if clearErr := e.store.SetGenerating(context.Background(), conv.ID, false); clearErr != nil {
			log.Printf("clear generating flag for conversation %d failed: %v", conv.ID, clearErr)
		}
		return nil, err
	}

	if userText != "" || len(req.Attachments) > 0 {
		if _, err := e.store.AppendUserMessage(ctx, &models.Message{
			ConversationID: conv.ID,
			UserID:         req.UserID,
			Role:           models.RoleUser,
			Content:        userText,
			Attachments:    req.Attachments,
		}); err != nil {
			return fail(err)
		}
	}
	assistant, err := e.store.CreateAssistantMessage(ctx, conv.ID, req.UserID, desc.Vendor, modelID)
	if err != nil {
		return fail(err)
	}

	genCtx, cancel := context.WithCancel(context.Background())
	e.registry.add(conv.ID, cancel)

	job := Job{Type: Generate, GenerateTask: &generateTask{
		ctx:          genCtx,
		conversation: conv,
		assistant:    assistant,
		userText:     userText,
		modelID:      modelID,
		secret:       secret,
	}}
	select {
	case e.dispatcher.JobQueue <- job:
	default:
		e.registry.remove(conv.ID)
		cancel()
		return fail(errors.New("generation queue full"))
	}
	return conv, nil
}

// Cancel requests cooperative cancellation of an in-flight generation.
// Unknown or already-finished conversations are a no-op.
func (e *Engine) Cancel(ctx context.Context, userID, conversationID int64) error {
	if _, err := e.store.GetConversation(ctx, userID, conversationID); err != nil {
		return err
	}
	if e.registry.cancel(conversationID) {
		debugLog("[engine] cancel requested for conversation %d", conversationID)
	}
	return nil
}

// Active reports whether a generation is currently running for the
// conversation.
func (e *Engine) Active(conversationID int64) bool {
	return e.registry.active(conversationID)
}

// LiveSnapshot returns the in-flight partial for a conversation, if any.
func (e *Engine) LiveSnapshot(conversationID int64) (Snapshot, bool) {
	return e.snapshots.load(conversationID)
}

func (e *Engine) handleGenerate(t *generateTask) {
	conv := t.conversation
	defer func() {
		e.registry.remove(conv.ID)
		if err := e.store.SetGenerating(context.Background(), conv.ID, false); err != nil {
			log.Printf("clear generating flag for conversation %d failed: %v", conv.ID, err)
		}
		e.snapshots.invalidate(conv.ID)
	}()

	ctx := t.ctx
	msg := t.assistant

	history, err := e.store.GetMessages(ctx, conv.ID)
	if err != nil {
		e.finalizeFailure(t, msg, err)
		return
	}
	transcript := make([]*models.Message, 0, len(history))
	for _, m := range history {
		if m.ID == msg.ID {
			continue
		}
		transcript = append(transcript, m)
	}
	rules := e.resolveRules(ctx, conv.UserID, transcript)

	adapter, err := e.factory.Adapter(ctx, t.modelID, t.secret)
	if err != nil {
		e.finalizeFailure(t, msg, err)
		return
	}
	stream, err := adapter.StreamCompletion(ctx, provider.Request{
		ModelID:      t.modelID,
		SystemPrompt: conv.SystemPrompt,
		RulesPrompt:  rules,
		Messages:     transcript,
	})
	if err != nil {
		e.finalizeFailure(t, msg, err)
		return
	}
	defer stream.Close()

	var usage models.Usage
	finish := ""
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			msg.Usage = usage
			e.finalizeFailure(t, msg, err)
			return
		}
		// Accumulation only ever concatenates; a persisted prefix is never
		// rewritten.
		msg.Content += chunk.Content
		msg.Reasoning += chunk.Reasoning
		msg.ToolCalls = append(msg.ToolCalls, chunk.ToolCalls...)
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
		if err := e.store.UpsertAssistantMessage(context.Background(), msg); err != nil {
			debugLog("[engine] persist partial for conversation %d failed: %v", conv.ID, err)
		}
		e.snapshots.save(Snapshot{
			ConversationID: conv.ID,
			MessageID:      msg.ID,
			Content:        msg.Content,
			Reasoning:      msg.Reasoning,
			Status:         "streaming",
		})
	}

	if finish == "" {
		finish = "stop"
	}
	msg.Usage = usage
	msg.FinishReason = finish
	if err := e.store.UpsertAssistantMessage(context.Background(), msg); err != nil {
		log.Printf("finalize message %d failed: %v", msg.ID, err)
		return
	}
	debugLog("[engine] conversation %d completed, %d total tokens", conv.ID, usage.TotalTokens)

	e.enqueueUsage(conv, t.modelID, usage)
	e.maybeEnqueueTitle(conv, t.userText, msg.Content)
}

// finalizeFailure persists whatever content accumulated plus the error
// classification. Cancellation is a first-class outcome, not an error: the
// partial is kept and marked cancelled.
func (e *Engine) finalizeFailure(t *generateTask, msg *models.Message, cause error) {
	switch {
	case errors.Is(cause, context.Canceled):
		cause = fmt.Errorf("%w: generation stopped by user", models.ErrCancelled)
	case errors.Is(cause, context.DeadlineExceeded):
		cause = fmt.Errorf("%w: generation exceeded its deadline", models.ErrTimeout)
	}
	kind := models.ErrorKind(cause)

	msg.ErrorKind = kind
	msg.ErrorMessage = cause.Error()
	if kind == "cancelled" {
		msg.FinishReason = "cancelled"
	} else {
		msg.FinishReason = "error"
		log.Printf("generation for conversation %d failed (%s): %v", t.conversation.ID, kind, cause)
	}
	if err := e.store.UpsertAssistantMessage(context.Background(), msg); err != nil {
		log.Printf("persist failed message %d: %v", msg.ID, err)
	}
	if msg.Usage.TotalTokens > 0 || msg.Usage.PromptTokens > 0 || msg.Usage.CompletionTokens > 0 {
		e.enqueueUsage(t.conversation, t.modelID, msg.Usage)
	}
}

// maybeEnqueueTitle queues title synthesis after the first assistant turn.
func (e *Engine) maybeEnqueueTitle(conv *models.Conversation, userText, assistantText string) {
	count, err := e.store.CountAssistantMessages(context.Background(), conv.ID)
	if err != nil {
		log.Printf("count assistant messages for conversation %d failed: %v", conv.ID, err)
		return
	}
	if count != 1 {
		return
	}
	e.enqueue(Job{Type: Title, TitleTask: &titleTask{
		conversation:  conv,
		userText:      userText,
		assistantText: assistantText,
	}})
}

func (e *Engine) enqueueUsage(conv *models.Conversation, modelID string, usage models.Usage) {
	desc, err := e.catalog.Resolve(modelID)
	if err != nil {
		log.Printf("usage for conversation %d dropped, unknown model %s", conv.ID, modelID)
		return
	}
	e.enqueue(Job{Type: Usage, UsageTask: &usageTask{record: models.UsageRecord{
		UserID:           conv.UserID,
		ConversationID:   conv.ID,
		Vendor:           conv.Vendor,
		Model:            modelID,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		CostUSD:          desc.Cost(usage),
	}}})
}

func (e *Engine) enqueue(job Job) {
	select {
	case e.dispatcher.JobQueue <- job:
	default:
		log.Printf("job queue full, dropped %s job for user %d", job.Type, job.userID())
	}
}

func (e *Engine) handleTitle(t *titleTask) {
	e.titles.Synthesize(context.Background(), t.conversation, t.userText, t.assistantText)
}

func (e *Engine) handleUsage(t *usageTask) {
	if err := e.store.RecordUsage(context.Background(), &t.record); err != nil {
		log.Printf("record usage for conversation %d failed: %v", t.record.ConversationID, err)
	}
}
