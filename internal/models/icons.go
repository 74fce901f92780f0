package models

// DefaultGlyph is rendered for icon names the table does not know.
const DefaultGlyph = "check-circle"

var glyphs = map[string]string{
	"book":             "book",
	"self-improvement": "self-improvement",
	"fitness-center":   "fitness-center",
	"school":           "school",
	"edit":             "edit",
	"alarm":            "alarm",
	"trending-up":      "trending-up",
	"groups":           "groups",
	"lightbulb":        "lightbulb",
	"support-agent":    "support-agent",
	"checklist":        "checklist",
	"rate-review":      "rate-review",
	"local-fire":       "local-fire-department",
	"emoji-events":     "emoji-events",
}

// IconGlyph resolves a logical icon name to a Material glyph name.
// Unknown names map to DefaultGlyph.
func IconGlyph(name string) string {
	if g, ok := glyphs[name]; ok {
		return g
	}
	return DefaultGlyph
}
