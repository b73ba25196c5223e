package briefs

import (
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/GeorgeStrakhov/briefboarder/pkg/errors"
)

// Brief is a named creative project record containing a canvas of placed
// images and generation settings.
type Brief struct {
	ID          string             `json:"id"`
	Slug        string             `json:"slug"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Canvas      []ImagePlacement   `json:"canvas"`
	Settings    GenerationSettings `json:"settings"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// ImagePlacement positions one image on the brief canvas.
type ImagePlacement struct {
	ID       string  `json:"id"`
	URL      string  `json:"url"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
	ZIndex   int     `json:"zIndex"`
}

// GenerationSettings holds the model configuration a brief generates with.
type GenerationSettings struct {
	Model       string  `json:"model,omitempty"`
	ImageSize   string  `json:"imageSize,omitempty"`
	AspectRatio string  `json:"aspectRatio,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
}

// UpdateParams carries a partial update. Nil fields are left untouched;
// present fields replace the stored value wholesale.
type UpdateParams struct {
	Name        *string             `json:"name,omitempty"`
	Description *string             `json:"description,omitempty"`
	Canvas      *[]ImagePlacement   `json:"canvas,omitempty"`
	Settings    *GenerationSettings `json:"settings,omitempty"`
}

// IsEmpty reports whether the update would change nothing.
func (p UpdateParams) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Canvas == nil && p.Settings == nil
}

// Apply merges the present fields of p into the brief and bumps UpdatedAt.
func (b *Brief) Apply(p UpdateParams, now time.Time) {
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Canvas != nil {
		b.Canvas = *p.Canvas
	}
	if p.Settings != nil {
		b.Settings = *p.Settings
	}
	b.UpdatedAt = now
}

// New creates a brief with a fresh UUID, slug, and timestamps.
func New(name, description string, now time.Time) *Brief {
	return &Brief{
		ID:          uuid.NewString(),
		Slug:        NewSlug(),
		Name:        name,
		Description: description,
		Canvas:      []ImagePlacement{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

var idPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// ValidateID checks that id is a well-formed lowercase UUID.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return errors.WithFields(
			errors.New(errors.InvalidInput, "invalid brief ID"),
			errors.Fields{"id": id})
	}
	return nil
}

// Validate checks the invariants a brief must hold before persistence.
func (b *Brief) Validate() error {
	if err := ValidateID(b.ID); err != nil {
		return err
	}
	if b.Name == "" {
		return errors.New(errors.ValidationFailed, "brief name is required")
	}
	if err := ValidateSlug(b.Slug); err != nil {
		return err
	}
	return nil
}
