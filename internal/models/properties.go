package models

// Paint represents a single fill applied to a design node.
type Paint struct {
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity,omitempty"`
}

// Layout holds auto-layout metrics for a design node.
type Layout struct {
	Mode          string  `json:"mode,omitempty"` // "horizontal", "vertical" or "" for none
	PaddingLeft   float64 `json:"padding_left,omitempty"`
	PaddingRight  float64 `json:"padding_right,omitempty"`
	PaddingTop    float64 `json:"padding_top,omitempty"`
	PaddingBottom float64 `json:"padding_bottom,omitempty"`
	ItemSpacing   float64 `json:"item_spacing,omitempty"`
}

// Typography holds text styling for a design node.
type Typography struct {
	FontFamily    string  `json:"font_family,omitempty"`
	FontSize      float64 `json:"font_size,omitempty"`
	FontWeight    float64 `json:"font_weight,omitempty"`
	LineHeight    float64 `json:"line_height,omitempty"`
	LetterSpacing float64 `json:"letter_spacing,omitempty"`
}

// Size holds the bounding box dimensions of a design node.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PropertySet is the fixed, comparable set of properties extracted from a
// design node. Unrecognized remote fields are dropped during normalization
// and never appear here.
type PropertySet struct {
	Fills           []Paint     `json:"fills,omitempty"`
	BackgroundColor string      `json:"background_color,omitempty"`
	CornerRadius    *float64    `json:"corner_radius,omitempty"`
	Layout          *Layout     `json:"layout,omitempty"`
	Typography      *Typography `json:"typography,omitempty"`
	Size            *Size       `json:"size,omitempty"`
}
