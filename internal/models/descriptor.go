package models

// Capabilities flags what a model can accept and emit. Vendors do not expose
// this reliably over the wire, so the catalog hard-codes it per model.
type Capabilities struct {
	Vision    bool `json:"vision"`
	Tools     bool `json:"tools"`
	Audio     bool `json:"audio"`
	Video     bool `json:"video"`
	Documents bool `json:"documents"`
	Reasoning bool `json:"reasoning"`
	Streaming bool `json:"streaming"`
}

// ModelDescriptor is immutable, vendor-supplied catalog data. Cost rates are
// USD per 1,000 tokens.
type ModelDescriptor struct {
	ID            string       `json:"id"`
	Vendor        Vendor       `json:"vendor"`
	DisplayName   string       `json:"display_name"`
	ContextWindow int          `json:"context_window"`
	Capabilities  Capabilities `json:"capabilities"`
	InputPer1K    float64      `json:"input_per_1k"`
	OutputPer1K   float64      `json:"output_per_1k"`
}

// Cost computes the spend for a turn. Token counts the vendor omitted are
// zero, so a missing term simply contributes nothing.
func (d ModelDescriptor) Cost(u Usage) float64 {
	return float64(u.PromptTokens)/1000*d.InputPer1K + float64(u.CompletionTokens)/1000*d.OutputPer1K
}
