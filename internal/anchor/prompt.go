package anchor

import (
	"fmt"
	"strings"
)

const (
	textOnlyPreamble = "Create a photorealistic, high-quality image based on the following description:"
	faceRefPreamble  = "Using the face in the reference photo, create a photorealistic image. Keep the key facial features from the reference photo but adjust them to fit the following description:"

	closingDirective = "The whole image must look professional, modern, photorealistic and of broadcast quality. Pay special attention to the mouth area: it needs high detail and a natural, undistorted shape, suitable for lip-sync animation later."
)

// ComposePrompt renders an options record into the single instruction string
// sent to the generation service. Pure function: equal inputs always produce
// the identical string. Clause order is fixed; optional free-text clauses are
// dropped entirely when empty rather than leaving stray punctuation.
func ComposePrompt(opts Options, hasFace bool) string {
	var b strings.Builder

	if hasFace {
		b.WriteString(faceRefPreamble)
	} else {
		b.WriteString(textOnlyPreamble)
	}
	b.WriteString(" ")

	fmt.Fprintf(&b, "An AI television presenter who is %s, of %s descent, in the %s age range. ",
		strings.ToLower(opts.Gender), opts.Ethnicity, opts.Age)
	fmt.Fprintf(&b, "They have %s hair in a %q style and %s eyes of the %q type. ",
		strings.ToLower(opts.HairColor), opts.HairStyle, strings.ToLower(opts.EyeColor), opts.EyeStyle)

	fmt.Fprintf(&b, "The outfit is %q", opts.Clothing)
	if details := opts.ClothingDetails; details != "" {
		fmt.Fprintf(&b, " with specific details: %s", details)
	}
	b.WriteString(". ")

	fmt.Fprintf(&b, "The setting is a %q. ", opts.Background)
	fmt.Fprintf(&b, "Facial expression: %q. ", opts.Expression)

	if opts.Prompt != "" {
		fmt.Fprintf(&b, "Additional description from the user: %q. ", opts.Prompt)
	}

	b.WriteString(closingDirective)

	return b.String()
}
