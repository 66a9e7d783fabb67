package catalog

import "omnichat/internal/models"

// Hand-maintained model tables. Cost rates are USD per 1,000 tokens and must
// track the vendors' published pricing pages.
var builtinModels = []models.ModelDescriptor{
	// OpenAI
	{
		ID: "gpt-4o", Vendor: models.VendorOpenAI, DisplayName: "GPT-4o",
		ContextWindow: 128000,
		Capabilities: models.Capabilities{
			Vision: true, Tools: true, Documents: true, Streaming: true,
		},
		InputPer1K: 0.0025, OutputPer1K: 0.01,
	},
	{
		ID: "gpt-4o-mini", Vendor: models.VendorOpenAI, DisplayName: "GPT-4o mini",
		ContextWindow: 128000,
		Capabilities: models.Capabilities{
			Vision: true, Tools: true, Documents: true, Streaming: true,
		},
		InputPer1K: 0.00015, OutputPer1K: 0.0006,
	},
	{
		ID: "o3-mini", Vendor: models.VendorOpenAI, DisplayName: "o3-mini",
		ContextWindow: 200000,
		Capabilities: models.Capabilities{
			Tools: true, Reasoning: true, Streaming: true,
		},
		InputPer1K: 0.0011, OutputPer1K: 0.0044,
	},

	// Claude
	{
		ID: "claude-sonnet-4-20250514", Vendor: models.VendorClaude, DisplayName: "Claude Sonnet 4",
		ContextWindow: 200000,
		Capabilities: models.Capabilities{
			Vision: true, Tools: true, Documents: true, Reasoning: true, Streaming: true,
		},
		InputPer1K: 0.003, OutputPer1K: 0.015,
	},
	{
		ID: "claude-3-5-haiku-20241022", Vendor: models.VendorClaude, DisplayName: "Claude 3.5 Haiku",
		ContextWindow: 200000,
		Capabilities: models.Capabilities{
			Vision: true, Tools: true, Documents: true, Streaming: true,
		},
		InputPer1K: 0.0008, OutputPer1K: 0.004,
	},

	// Gemini
	{
		ID: "gemini-2.5-pro", Vendor: models.VendorGemini, DisplayName: "Gemini 2.5 Pro",
		ContextWindow: 1048576,
		Capabilities: models.Capabilities{
			Vision: true, Tools: true, Audio: true, Video: true, Documents: true, Reasoning: true, Streaming: true,
		},
		InputPer1K: 0.00125, OutputPer1K: 0.01,
	},
	{
		ID: "gemini-2.5-flash", Vendor: models.VendorGemini, DisplayName: "Gemini 2.5 Flash",
		ContextWindow: 1048576,
		Capabilities: models.Capabilities{
			Vision: true, Tools: true, Audio: true, Video: true, Documents: true, Reasoning: true, Streaming: true,
		},
		InputPer1K: 0.0003, OutputPer1K: 0.0025,
	},
	{
		ID: "gemini-2.0-flash", Vendor: models.VendorGemini, DisplayName: "Gemini 2.0 Flash",
		ContextWindow: 1048576,
		Capabilities: models.Capabilities{
			Vision: true, Tools: true, Audio: true, Video: true, Documents: true, Streaming: true,
		},
		InputPer1K: 0.0001, OutputPer1K: 0.0004,
	},

	// DeepSeek
	{
		ID: "deepseek-chat", Vendor: models.VendorDeepSeek, DisplayName: "DeepSeek Chat",
		ContextWindow: 65536,
		Capabilities: models.Capabilities{
			Tools: true, Streaming: true,
		},
		InputPer1K: 0.00027, OutputPer1K: 0.0011,
	},
	{
		ID: "deepseek-reasoner", Vendor: models.VendorDeepSeek, DisplayName: "DeepSeek Reasoner",
		ContextWindow: 65536,
		Capabilities: models.Capabilities{
			Reasoning: true, Streaming: true,
		},
		InputPer1K: 0.00055, OutputPer1K: 0.00219,
	},
}

// titlePreference orders each vendor's models cheapest-first for the title
// synthesizer.
var titlePreference = map[models.Vendor][]string{
	models.VendorOpenAI:   {"gpt-4o-mini", "gpt-4o"},
	models.VendorClaude:   {"claude-3-5-haiku-20241022", "claude-sonnet-4-20250514"},
	models.VendorGemini:   {"gemini-2.0-flash", "gemini-2.5-flash", "gemini-2.5-pro"},
	models.VendorDeepSeek: {"deepseek-chat", "deepseek-reasoner"},
}
