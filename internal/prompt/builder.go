// Package prompt maps car rows to generation prompts and output filenames.
// Everything here is pure: same row in, same string out.
package prompt

import (
	"fmt"
	"strings"

	"carstudio/internal/domain"
)

// Background discriminators recognized in the CSV. Anything else renders
// with the plain studio template.
const (
	BackgroundWhite = "white"
	BackgroundHub   = "hub"
)

// DefaultAspectRatio is used when a row omits or mangles the aspect ratio.
const DefaultAspectRatio = "1:1"

var canonicalAspectRatios = map[string]struct{}{
	"1:1":  {},
	"16:9": {},
	"9:16": {},
	"3:4":  {},
	"4:3":  {},
}

// BuildPrompt renders the generation prompt for a row. The background field
// selects between a plain white studio template and a styled showroom
// template; missing attributes substitute to empty strings and the result is
// whitespace-collapsed.
func BuildPrompt(row domain.Row) string {
	subject := strings.Join([]string{row.Color, row.Year, row.Make, row.Model, row.BodyStyle, row.Trim}, " ")
	subject = collapse(subject)
	if subject == "" {
		subject = "car"
	}

	var text string
	if strings.EqualFold(strings.TrimSpace(row.Background), BackgroundHub) {
		text = fmt.Sprintf(
			"Professional automotive photograph of a %s parked inside a modern dealership showroom, polished reflective floor, warm accent lighting, three-quarter front view, photorealistic, sharp focus, high detail",
			subject,
		)
	} else {
		text = fmt.Sprintf(
			"Professional studio photograph of a %s on a seamless pure white background, even diffused lighting, soft contact shadow only, three-quarter front view, photorealistic, sharp focus, high detail",
			subject,
		)
	}
	return collapse(text)
}

var filenameSanitizer = strings.NewReplacer(
	" ", "_",
	"/", "_",
	"\\", "_",
	":", "_",
	"\"", "",
	"'", "",
)

// MakeFilename derives the output filename for the row at the given 0-based
// position. Present attributes are joined with dashes; a row with no
// attributes at all falls back to car-<n>. The 1-based numeric suffix is
// always appended so two identical rows in one job never collide.
func MakeFilename(row domain.Row, index int) string {
	fields := []string{row.Year, row.Make, row.Model, row.BodyStyle, row.Trim, row.Color, row.Background}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		parts = append(parts, filenameSanitizer.Replace(f))
	}
	base := strings.Join(parts, "-")
	if base == "" {
		base = fmt.Sprintf("car-%d", index+1)
	}
	return fmt.Sprintf("%s-%02d.png", base, index+1)
}

// NormalizeAspectRatio canonicalizes tolerant textual variants ("4/3",
// "4-3", "SQUARE") into the fixed enumerated set. The second return value is
// false when the input was present but unrecognized, in which case the
// default ratio is returned and the caller should log a warning.
func NormalizeAspectRatio(raw string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return DefaultAspectRatio, true
	}
	if v == "square" {
		return "1:1", true
	}
	v = strings.NewReplacer("/", ":", "-", ":", " ", ":", "x", ":").Replace(v)
	if _, ok := canonicalAspectRatios[v]; ok {
		return v, true
	}
	return DefaultAspectRatio, false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
