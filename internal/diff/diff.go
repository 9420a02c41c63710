// Package diff compares two normalized property sets and classifies the
// differences. Compare is a pure function with no dependencies on the rest
// of the engine so it can be tested in isolation.
package diff

import (
	"github.com/driftwatchhq/driftwatch/internal/models"
)

// Property category names as reported on changes.
const (
	CategoryFills        = "fills"
	CategoryBackground   = "background_color"
	CategoryCornerRadius = "corner_radius"
	CategoryLayout       = "layout"
	CategoryTypography   = "typography"
	CategorySize         = "size"
)

// categoryOrder fixes the order changes are reported in. Repeated runs on
// identical inputs must produce byte-identical output, so the order is by
// category, never by discovery.
var categoryOrder = []string{
	CategoryFills,
	CategoryBackground,
	CategoryCornerRadius,
	CategoryLayout,
	CategoryTypography,
	CategorySize,
}

// severityFor assigns severity per category. Color, layout and typography
// mismatches read as visual breakage to a reviewer; size and radius are
// usually intentional tweaks. The high tier is reserved.
var severityFor = map[string]models.Severity{
	CategoryFills:        models.SeverityMedium,
	CategoryBackground:   models.SeverityMedium,
	CategoryCornerRadius: models.SeverityLow,
	CategoryLayout:       models.SeverityMedium,
	CategoryTypography:   models.SeverityMedium,
	CategorySize:         models.SeverityLow,
}

// Compare returns the classified changes between two property sets. A nil
// set is treated as empty. A category absent in both sets produces no
// change. The returned list follows the fixed category order.
func Compare(old, current *models.PropertySet) []models.PropertyChange {
	if old == nil {
		old = &models.PropertySet{}
	}
	if current == nil {
		current = &models.PropertySet{}
	}

	var changes []models.PropertyChange
	for _, category := range categoryOrder {
		oldVal, oldSet := categoryValue(old, category)
		newVal, newSet := categoryValue(current, category)

		if !oldSet && !newSet {
			continue
		}
		if equalValue(category, old, current) {
			continue
		}

		changes = append(changes, models.PropertyChange{
			Property: category,
			OldValue: oldVal,
			NewValue: newVal,
			Severity: severityFor[category],
		})
	}
	return changes
}

// categoryValue extracts the value for a category and whether it is present.
func categoryValue(p *models.PropertySet, category string) (any, bool) {
	switch category {
	case CategoryFills:
		if len(p.Fills) == 0 {
			return nil, false
		}
		return p.Fills, true
	case CategoryBackground:
		if p.BackgroundColor == "" {
			return nil, false
		}
		return p.BackgroundColor, true
	case CategoryCornerRadius:
		if p.CornerRadius == nil {
			return nil, false
		}
		return *p.CornerRadius, true
	case CategoryLayout:
		if p.Layout == nil {
			return nil, false
		}
		return *p.Layout, true
	case CategoryTypography:
		if p.Typography == nil {
			return nil, false
		}
		return *p.Typography, true
	case CategorySize:
		if p.Size == nil {
			return nil, false
		}
		return *p.Size, true
	}
	return nil, false
}

// equalValue compares one category across two sets. Composite categories use
// structural equality, scalars use identity.
func equalValue(category string, a, b *models.PropertySet) bool {
	switch category {
	case CategoryFills:
		return equalFills(a.Fills, b.Fills)
	case CategoryBackground:
		return a.BackgroundColor == b.BackgroundColor
	case CategoryCornerRadius:
		return equalFloatPtr(a.CornerRadius, b.CornerRadius)
	case CategoryLayout:
		if a.Layout == nil || b.Layout == nil {
			return a.Layout == b.Layout
		}
		return *a.Layout == *b.Layout
	case CategoryTypography:
		if a.Typography == nil || b.Typography == nil {
			return a.Typography == b.Typography
		}
		return *a.Typography == *b.Typography
	case CategorySize:
		if a.Size == nil || b.Size == nil {
			return a.Size == b.Size
		}
		return *a.Size == *b.Size
	}
	return true
}

func equalFills(a, b []models.Paint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
