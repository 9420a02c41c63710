package figma

import (
	"fmt"
	"math"

	"github.com/driftwatchhq/driftwatch/internal/models"
)

// Normalize extracts the fixed comparable property set from a raw node
// document. This is the one place the loose remote shape is narrowed to
// typed fields; remote schema drift stops here and never reaches the diff
// engine.
func Normalize(node *Node) *models.PropertySet {
	if node == nil {
		return &models.PropertySet{}
	}

	props := &models.PropertySet{
		CornerRadius: copyFloat(node.CornerRadius),
	}

	for _, fill := range node.Fills {
		if fill.Visible != nil && !*fill.Visible {
			continue
		}
		if fill.Type != "SOLID" || fill.Color == nil {
			continue
		}
		paint := models.Paint{Color: colorToHex(*fill.Color)}
		if fill.Opacity != nil {
			paint.Opacity = *fill.Opacity
		}
		props.Fills = append(props.Fills, paint)
	}

	if node.BackgroundColor != nil {
		props.BackgroundColor = colorToHex(*node.BackgroundColor)
	}

	if node.LayoutMode != "" {
		props.Layout = &models.Layout{
			Mode:          layoutMode(node.LayoutMode),
			PaddingLeft:   node.PaddingLeft,
			PaddingRight:  node.PaddingRight,
			PaddingTop:    node.PaddingTop,
			PaddingBottom: node.PaddingBottom,
			ItemSpacing:   node.ItemSpacing,
		}
	}

	if node.Style != nil {
		props.Typography = &models.Typography{
			FontFamily:    node.Style.FontFamily,
			FontSize:      node.Style.FontSize,
			FontWeight:    node.Style.FontWeight,
			LineHeight:    node.Style.LineHeightPx,
			LetterSpacing: node.Style.LetterSpacing,
		}
	}

	if node.AbsoluteBoundingBox != nil {
		props.Size = &models.Size{
			Width:  node.AbsoluteBoundingBox.Width,
			Height: node.AbsoluteBoundingBox.Height,
		}
	}

	return props
}

// colorToHex converts 0..1 RGB channels to an uppercase #RRGGBB string.
func colorToHex(c rawColor) string {
	return fmt.Sprintf("#%02X%02X%02X", channel(c.R), channel(c.G), channel(c.B))
}

func channel(v float64) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(math.Round(v * 255))
}

// layoutMode maps Figma's layout mode enum to the normalized form.
func layoutMode(mode string) string {
	switch mode {
	case "HORIZONTAL":
		return "horizontal"
	case "VERTICAL":
		return "vertical"
	default:
		return ""
	}
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
