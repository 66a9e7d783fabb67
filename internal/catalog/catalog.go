package catalog

import (
	"fmt"
	"strings"

	"omnichat/internal/models"
)

// SearchSuffix marks the web-search augmented variant of a model id. Callers
// pass the augmented id around like any other model id; only the adapter
// factory looks inside it.
const SearchSuffix = ":search"

// Catalog is the static registry of known models. Vendors publish no reliable
// machine-readable capability or cost metadata, so the tables in
// descriptors.go are maintained by hand against their documentation.
type Catalog struct {
	byID  map[string]models.ModelDescriptor
	order []string
}

// New builds the catalog from the built-in descriptor tables.
func New() *Catalog {
	c := &Catalog{byID: make(map[string]models.ModelDescriptor, len(builtinModels))}
	for _, d := range builtinModels {
		c.byID[d.ID] = d
		c.order = append(c.order, d.ID)
	}
	return c
}

// List returns every known descriptor in registration order.
func (c *Catalog) List() []models.ModelDescriptor {
	out := make([]models.ModelDescriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Get returns the descriptor for an exact model id.
func (c *Catalog) Get(id string) (models.ModelDescriptor, error) {
	d, ok := c.byID[id]
	if !ok {
		return models.ModelDescriptor{}, fmt.Errorf("%w: %s", models.ErrModelNotFound, id)
	}
	return d, nil
}

// SearchVariant returns the web-search augmented id for a model.
func SearchVariant(id string) string {
	if strings.HasSuffix(id, SearchSuffix) {
		return id
	}
	return id + SearchSuffix
}

// BaseModel strips the search suffix, reporting whether it was present.
func BaseModel(id string) (string, bool) {
	if base, ok := strings.CutSuffix(id, SearchSuffix); ok {
		return base, true
	}
	return id, false
}

// Resolve returns the descriptor for a model id, accepting search variants.
// A variant resolves to a derived descriptor with the augmented id and the
// tools capability forced on; rates and every other flag come from the base.
func (c *Catalog) Resolve(id string) (models.ModelDescriptor, error) {
	base, augmented := BaseModel(id)
	d, err := c.Get(base)
	if err != nil {
		return models.ModelDescriptor{}, err
	}
	if augmented {
		d.ID = SearchVariant(base)
		d.Capabilities.Tools = true
	}
	return d, nil
}

// SupportsAttachment reports whether the model accepts the attachment type.
func (c *Catalog) SupportsAttachment(id string, t models.AttachmentType) (bool, error) {
	d, err := c.Resolve(id)
	if err != nil {
		return false, err
	}
	switch t {
	case models.AttachmentImage:
		return d.Capabilities.Vision, nil
	case models.AttachmentAudio:
		return d.Capabilities.Audio, nil
	case models.AttachmentVideo:
		return d.Capabilities.Video, nil
	case models.AttachmentDocument:
		return d.Capabilities.Documents, nil
	}
	return false, fmt.Errorf("%w: attachment type %q", models.ErrValidation, t)
}

// TitlePreference lists a vendor's models from cheapest/fastest to priciest,
// for the title synthesizer to pick from.
func (c *Catalog) TitlePreference(vendor models.Vendor) []models.ModelDescriptor {
	pref, ok := titlePreference[vendor]
	if !ok {
		return nil
	}
	out := make([]models.ModelDescriptor, 0, len(pref))
	for _, id := range pref {
		if d, ok := c.byID[id]; ok {
			out = append(out, d)
		}
	}
	return out
}
