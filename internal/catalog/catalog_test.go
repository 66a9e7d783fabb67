package catalog

import (
	"errors"
	"testing"

	"omnichat/internal/models"
)

func TestGetAndList(t *testing.T) {
	c := New()

	if len(c.List()) == 0 {
		t.Fatal("catalog is empty")
	}

	d, err := c.Get("gpt-4o-mini")
	if err != nil {
		t.Fatalf("get gpt-4o-mini: %v", err)
	}
	if d.Vendor != models.VendorOpenAI || !d.Capabilities.Streaming {
		t.Fatalf("descriptor mismatch: %#v", d)
	}

	if _, err := c.Get("no-such-model"); !errors.Is(err, models.ErrModelNotFound) {
		t.Fatalf("unknown model err = %v, want ErrModelNotFound", err)
	}
}

func TestSearchVariantResolution(t *testing.T) {
	c := New()

	id := SearchVariant("gemini-2.0-flash")
	if id != "gemini-2.0-flash:search" {
		t.Fatalf("search variant id = %q", id)
	}
	if again := SearchVariant(id); again != id {
		t.Fatalf("variant of variant changed the id: %q", again)
	}

	base, augmented := BaseModel(id)
	if base != "gemini-2.0-flash" || !augmented {
		t.Fatalf("BaseModel(%q) = %q, %v", id, base, augmented)
	}

	d, err := c.Resolve(id)
	if err != nil {
		t.Fatalf("resolve variant: %v", err)
	}
	if d.ID != id {
		t.Fatalf("resolved id = %q, want augmented id", d.ID)
	}
	if !d.Capabilities.Tools {
		t.Fatal("search variant must carry the tools capability")
	}
	baseDesc, _ := c.Get("gemini-2.0-flash")
	if d.InputPer1K != baseDesc.InputPer1K || d.OutputPer1K != baseDesc.OutputPer1K {
		t.Fatal("variant rates must match the base model")
	}

	if _, err := c.Resolve("missing:search"); !errors.Is(err, models.ErrModelNotFound) {
		t.Fatalf("variant of unknown base err = %v, want ErrModelNotFound", err)
	}
}

func TestSupportsAttachment(t *testing.T) {
	c := New()

	cases := []struct {
		model string
		typ   models.AttachmentType
		want  bool
	}{
		{"gpt-4o", models.AttachmentImage, true},
		{"gpt-4o", models.AttachmentAudio, false},
		{"deepseek-chat", models.AttachmentImage, false},
		{"gemini-2.5-pro", models.AttachmentVideo, true},
		{"claude-sonnet-4-20250514", models.AttachmentDocument, true},
	}
	for _, tc := range cases {
		got, err := c.SupportsAttachment(tc.model, tc.typ)
		if err != nil {
			t.Fatalf("SupportsAttachment(%s, %s): %v", tc.model, tc.typ, err)
		}
		if got != tc.want {
			t.Errorf("SupportsAttachment(%s, %s) = %v, want %v", tc.model, tc.typ, got, tc.want)
		}
	}

	if _, err := c.SupportsAttachment("gpt-4o", "hologram"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("unknown attachment type err = %v, want ErrValidation", err)
	}
}

func TestTitlePreferenceOrder(t *testing.T) {
	c := New()
	for _, vendor := range models.Vendors() {
		pref := c.TitlePreference(vendor)
		if len(pref) == 0 {
			t.Fatalf("no title preference for vendor %s", vendor)
		}
		for i := 1; i < len(pref); i++ {
			if pref[i].InputPer1K < pref[0].InputPer1K {
				t.Errorf("vendor %s preference not cheapest-first: %s before %s", vendor, pref[0].ID, pref[i].ID)
			}
		}
	}
}
