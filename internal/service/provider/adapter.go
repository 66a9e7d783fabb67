package provider

import (
	"context"
	"errors"
	"io"

	"omnichat/internal/models"

	"github.com/cloudwego/eino/schema"
)

// Request carries one completion turn to a vendor adapter. Messages are the
// full ordered conversation transcript, user and assistant turns alike. The
// conversation's own system prompt leads the transcript; the rule block, when
// present, is emitted as a single system message after the history.
type Request struct {
	ModelID      string
	SystemPrompt string
	RulesPrompt  string
	Messages     []*models.Message
}

// Chunk is one incremental delta from a streaming completion. Any subset of
// the fields may be set; Usage and FinishReason typically arrive on the final
// chunk only.
type Chunk struct {
	Content      string
	Reasoning    string
	ToolCalls    []models.ToolInvocation
	Usage        *models.Usage
	FinishReason string
}

// Result is the outcome of a non-streaming completion.
type Result struct {
	Content      string
	Reasoning    string
	Usage        models.Usage
	FinishReason string
}

// Adapter translates between the conversation transcript and one vendor's
// wire protocol. Implementations hold the caller's decrypted secret and must
// not be shared across users.
type Adapter interface {
	// StreamCompletion starts a streaming completion. The returned stream is
	// finite and cannot be restarted; the caller owns Close.
	StreamCompletion(ctx context.Context, req Request) (*Stream, error)
	// GenerateCompletion runs the completion to the end and returns the
	// whole result at once.
	GenerateCompletion(ctx context.Context, req Request) (Result, error)
}

// Stream adapts an eino stream reader to the chunk model. Recv returns
// io.EOF when the vendor has sent everything; Close tears down the upstream
// connection and is safe to call more than once.
type Stream struct {
	reader *schema.StreamReader[*schema.Message]
	closed bool
}

// NewStream wraps an eino stream reader. Exposed so adapter implementations
// outside this package can hand back the same stream type.
func NewStream(reader *schema.StreamReader[*schema.Message]) *Stream {
	return &Stream{reader: reader}
}

// Recv returns the next delta. Vendor and transport failures surface wrapped
// as provider errors; cancellation keeps its context identity.
func (s *Stream) Recv() (Chunk, error) {
	msg, err := s.reader.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Chunk{}, io.EOF
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Chunk{}, err
		}
		return Chunk{}, errors.Join(models.ErrProvider, err)
	}
	return chunkFromMessage(msg), nil
}

// Close releases the upstream stream.
func (s *Stream) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.reader.Close()
}

func chunkFromMessage(msg *schema.Message) Chunk {
	c := Chunk{
		Content:   msg.Content,
		Reasoning: msg.ReasoningContent,
	}
	for _, tc := range msg.ToolCalls {
		c.ToolCalls = append(c.ToolCalls, models.ToolInvocation{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if meta := msg.ResponseMeta; meta != nil {
		c.FinishReason = meta.FinishReason
		if meta.Usage != nil {
			c.Usage = &models.Usage{
				PromptTokens:     meta.Usage.PromptTokens,
				CompletionTokens: meta.Usage.CompletionTokens,
				TotalTokens:      meta.Usage.TotalTokens,
			}
		}
	}
	return c
}
