package provider

import (
	"context"
	"errors"
	"fmt"

	"omnichat/internal/catalog"
	"omnichat/internal/config"
	"omnichat/internal/models"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

const claudeMaxTokens = 4096

// Factory builds per-request vendor adapters. The search tool chain is
// assembled once and shared; chat models are built per call because each one
// is bound to a caller's decrypted secret.
type Factory struct {
	cfg         *config.Config
	catalog     *catalog.Catalog
	searchTools []tool.BaseTool
}

func NewFactory(cfg *config.Config, cat *catalog.Catalog) *Factory {
	return &Factory{
		cfg:         cfg,
		catalog:     cat,
		searchTools: newSearchTools(cfg.Search),
	}
}

// Adapter builds an adapter for the model id, accepting search variants.
// A search variant wraps the base chat model in a react agent carrying the
// web search tool chain; everything else talks to the model directly.
func (f *Factory) Adapter(ctx context.Context, modelID, secret string) (Adapter, error) {
	desc, err := f.catalog.Resolve(modelID)
	if err != nil {
		return nil, err
	}
	base, augmented := catalog.BaseModel(modelID)

	chatModel, err := f.newChatModel(ctx, desc.Vendor, base, secret)
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", desc.Vendor, err)
	}

	var agent *react.Agent
	if augmented {
		if len(f.searchTools) == 0 {
			return nil, fmt.Errorf("%w: web search unavailable for %s", models.ErrUnsupportedCapability, modelID)
		}
		agent, err = react.NewAgent(ctx, &react.AgentConfig{
			ToolCallingModel: chatModel,
			ToolsConfig: compose.ToolsNodeConfig{
				Tools: f.searchTools,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("init react agent: %w", err)
		}
	}

	return &einoAdapter{chatModel: chatModel, agent: agent}, nil
}

func (f *Factory) newChatModel(ctx context.Context, vendor models.Vendor, modelID, secret string) (model.ToolCallingChatModel, error) {
	switch vendor {
	case models.VendorOpenAI:
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: f.cfg.BaseURL(string(vendor)),
			Model:   modelID,
			APIKey:  secret,
		})
	case models.VendorDeepSeek:
		baseURL := f.cfg.BaseURL(string(vendor))
		if baseURL == "" {
			baseURL = "https://api.deepseek.com/v1"
		}
		// DeepSeek speaks the OpenAI wire protocol.
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: baseURL,
			Model:   modelID,
			APIKey:  secret,
		})
	case models.VendorGemini:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: secret,
		})
		if err != nil {
			return nil, fmt.Errorf("genai client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelID,
			ThinkingConfig: &genai.ThinkingConfig{
				IncludeThoughts: true,
				ThinkingBudget:  nil,
			},
		})
	case models.VendorClaude:
		var baseURLPtr *string
		if baseURL := f.cfg.BaseURL(string(vendor)); baseURL != "" {
			baseURLPtr = &baseURL
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    secret,
			Model:     modelID,
			BaseURL:   baseURLPtr,
			MaxTokens: claudeMaxTokens,
		})
	default:
		return nil, fmt.Errorf("%w: unknown vendor %q", models.ErrValidation, vendor)
	}
}

type einoAdapter struct {
	chatModel model.ToolCallingChatModel
	agent     *react.Agent
}

func (a *einoAdapter) StreamCompletion(ctx context.Context, req Request) (*Stream, error) {
	msgs := toEinoMessages(req)
	var (
		reader *schema.StreamReader[*schema.Message]
		err    error
	)
	if a.agent != nil {
		reader, err = a.agent.Stream(ctx, msgs)
	} else {
		reader, err = a.chatModel.Stream(ctx, msgs)
	}
	if err != nil {
		return nil, errors.Join(models.ErrProvider, err)
	}
	return NewStream(reader), nil
}

func (a *einoAdapter) GenerateCompletion(ctx context.Context, req Request) (Result, error) {
	msgs := toEinoMessages(req)
	var (
		msg *schema.Message
		err error
	)
	if a.agent != nil {
		msg, err = a.agent.Generate(ctx, msgs)
	} else {
		msg, err = a.chatModel.Generate(ctx, msgs)
	}
	if err != nil {
		return Result{}, errors.Join(models.ErrProvider, err)
	}
	chunk := chunkFromMessage(msg)
	res := Result{
		Content:      chunk.Content,
		Reasoning:    chunk.Reasoning,
		FinishReason: chunk.FinishReason,
	}
	if chunk.Usage != nil {
		res.Usage = *chunk.Usage
	}
	return res, nil
}
