package models

import (
	"fmt"
	"strings"
)

// Vendor identifies an external AI provider. The set is closed: adding a
// vendor means adding a catalog table, a probe and an adapter as well.
type Vendor string

const (
	VendorOpenAI   Vendor = "openai"
	VendorClaude   Vendor = "claude"
	VendorGemini   Vendor = "gemini"
	VendorDeepSeek Vendor = "deepseek"
)

// Vendors lists every supported vendor in a stable order.
func Vendors() []Vendor {
	return []Vendor{VendorOpenAI, VendorClaude, VendorGemini, VendorDeepSeek}
}

// ParseVendor normalizes a vendor name coming from a request or a DB row.
func ParseVendor(raw string) (Vendor, error) {
	v := Vendor(strings.ToLower(strings.TrimSpace(raw)))
	switch v {
	case VendorOpenAI, VendorClaude, VendorGemini, VendorDeepSeek:
		return v, nil
	}
	return "", fmt.Errorf("%w: vendor %q", ErrValidation, raw)
}
