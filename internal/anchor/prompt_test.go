package anchor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposePromptDeterministic(t *testing.T) {
	opts := DefaultOptions()

	first := ComposePrompt(opts, false)
	second := ComposePrompt(opts, false)
	assert.Equal(t, first, second)

	first = ComposePrompt(opts, true)
	second = ComposePrompt(opts, true)
	assert.Equal(t, first, second)
}

func TestComposePromptPreamble(t *testing.T) {
	opts := DefaultOptions()

	withFace := ComposePrompt(opts, true)
	assert.True(t, strings.HasPrefix(withFace, "Using the face in the reference photo"))

	withoutFace := ComposePrompt(opts, false)
	assert.True(t, strings.HasPrefix(withoutFace, "Create a photorealistic"))
	assert.NotContains(t, withoutFace, "reference photo")
}

func TestComposePromptClauseOrder(t *testing.T) {
	opts := DefaultOptions()
	opts.ClothingDetails = "red tie"
	opts.Prompt = "standing confidently"

	out := ComposePrompt(opts, false)

	markers := []string{
		"An AI television presenter",
		"They have",
		"The outfit is",
		"with specific details: red tie",
		"The setting is",
		"Facial expression:",
		"Additional description from the user:",
		"broadcast quality",
	}

	last := -1
	for _, m := range markers {
		idx := strings.Index(out, m)
		require.GreaterOrEqual(t, idx, 0, "marker %q missing", m)
		assert.Greater(t, idx, last, "marker %q out of order", m)
		last = idx
	}
}

func TestComposePromptOmitsEmptyClauses(t *testing.T) {
	opts := DefaultOptions()
	opts.ClothingDetails = ""
	opts.Prompt = ""

	out := ComposePrompt(opts, false)
	assert.NotContains(t, out, "with specific details")
	assert.NotContains(t, out, "Additional description from the user")
	assert.NotContains(t, out, `""`)
	assert.NotContains(t, out, " .")
}

func TestComposePromptReflectsEveryField(t *testing.T) {
	opts := DefaultOptions()
	opts.ClothingDetails = "gold cufflinks"
	out := ComposePrompt(opts, false)

	for _, want := range []string{
		opts.Ethnicity, opts.Age, opts.HairStyle, opts.EyeStyle,
		opts.Clothing, opts.ClothingDetails, opts.Background, opts.Expression,
	} {
		assert.Contains(t, out, want)
	}
}
