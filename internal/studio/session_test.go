package studio

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-anchor-studio/internal/anchor"
	"ai-anchor-studio/internal/gemini"
)

type fakeGenerator struct {
	mu      sync.Mutex
	last    gemini.Request
	calls   int
	img     gemini.Image
	err     error
	started chan struct{}
	release chan struct{}
}

func (g *fakeGenerator) Generate(ctx context.Context, req gemini.Request) (gemini.Image, error) {
	g.mu.Lock()
	g.last = req
	g.calls++
	g.mu.Unlock()
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.release != nil {
		<-g.release
	}
	return g.img, g.err
}

func (g *fakeGenerator) lastRequest() gemini.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

type nullSlot struct{}

func (nullSlot) Read() ([]byte, error)   { return nil, nil }
func (nullSlot) Write(data []byte) error { return nil }

func newTestSession(t *testing.T, gen Generator) *Session {
	t.Helper()
	return NewSession(SessionOptions{
		Templates: anchor.NewStore(anchor.StoreOptions{Slot: nullSlot{}}),
		Generator: gen,
	})
}

func TestNewSessionStartsIdleWithDefaults(t *testing.T) {
	sess := newTestSession(t, &fakeGenerator{})

	view := sess.Snapshot()
	assert.True(t, view.Options.Equal(anchor.DefaultOptions()))
	assert.False(t, view.HasFace)
	assert.Equal(t, PhaseIdle, view.State.Phase)
	assert.Empty(t, view.MatchedName)
}

func TestGenerateSuccess(t *testing.T) {
	gen := &fakeGenerator{img: gemini.Image{DataBase64: "aW1n", MimeType: "image/png"}}
	sess := newTestSession(t, gen)

	state, err := sess.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PhaseDone, state.Phase)
	assert.Equal(t, "data:image/png;base64,aW1n", state.ImageURL)
	assert.Empty(t, state.Error)

	req := gen.lastRequest()
	assert.Nil(t, req.Face)
	assert.Equal(t, anchor.DefaultOptions().AspectRatio, req.AspectRatio)
	assert.True(t, strings.HasPrefix(req.Prompt, "Create a photorealistic"))
}

func TestGenerateFailureKeepsOptions(t *testing.T) {
	gen := &fakeGenerator{err: gemini.ErrNoImage}
	sess := newTestSession(t, gen)
	before := sess.Snapshot().Options

	state, err := sess.Generate(context.Background())
	require.NoError(t, err, "failure is reported through the state, not the error return")

	assert.Equal(t, PhaseFailed, state.Phase)
	assert.Equal(t, gemini.ErrNoImage.Error(), state.Error)
	assert.Empty(t, state.ImageURL)
	assert.True(t, sess.Snapshot().Options.Equal(before))
}

func TestGenerateBusyGuard(t *testing.T) {
	gen := &fakeGenerator{
		img:     gemini.Image{DataBase64: "aW1n", MimeType: "image/png"},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	sess := newTestSession(t, gen)

	done := make(chan RequestState, 1)
	go func() {
		state, _ := sess.Generate(context.Background())
		done <- state
	}()

	select {
	case <-gen.started:
	case <-time.After(time.Second):
		t.Fatal("first generate never reached the generator")
	}

	state, err := sess.Generate(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, PhaseGenerating, state.Phase)

	close(gen.release)
	select {
	case state = <-done:
	case <-time.After(time.Second):
		t.Fatal("first generate never finished")
	}
	assert.Equal(t, PhaseDone, state.Phase)

	gen.mu.Lock()
	calls := gen.calls
	gen.mu.Unlock()
	assert.Equal(t, 1, calls, "the rejected request must not reach the generator")
}

func TestSetFaceValidation(t *testing.T) {
	sess := newTestSession(t, &fakeGenerator{})

	assert.ErrorIs(t, sess.SetFace([]byte("%PDF-"), "application/pdf"), ErrNotAnImage)
	assert.ErrorIs(t, sess.SetFace(nil, "image/png"), ErrNotAnImage)
	assert.False(t, sess.Snapshot().HasFace)

	require.NoError(t, sess.SetFace([]byte{0x89, 0x50, 0x4e, 0x47}, "image/png"))
	view := sess.Snapshot()
	assert.True(t, view.HasFace)
	assert.Equal(t, "image/png", view.FaceMimeType)

	sess.ClearFace()
	assert.False(t, sess.Snapshot().HasFace)
}

func TestGenerateWithFace(t *testing.T) {
	gen := &fakeGenerator{img: gemini.Image{DataBase64: "aW1n", MimeType: "image/png"}}
	sess := newTestSession(t, gen)
	require.NoError(t, sess.SetFace([]byte("face bytes"), "image/jpeg"))

	state, err := sess.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, state.Phase)

	req := gen.lastRequest()
	require.NotNil(t, req.Face)
	assert.Equal(t, "image/jpeg", req.Face.MimeType)
	assert.True(t, strings.HasPrefix(req.Prompt, "Using the face in the reference photo"))
}

func TestLoadTemplateClearsFaceAndMatches(t *testing.T) {
	sess := newTestSession(t, &fakeGenerator{})
	require.NoError(t, sess.SetFace([]byte("face bytes"), "image/png"))

	builtin := anchor.BuiltinTemplates()[0]
	require.NoError(t, sess.LoadTemplate(builtin.Name))

	view := sess.Snapshot()
	assert.False(t, view.HasFace, "loading a template discards the reference face")
	assert.True(t, view.Options.Equal(builtin.Options))
	assert.Equal(t, builtin.Name, view.MatchedName)

	assert.ErrorIs(t, sess.LoadTemplate("nope"), anchor.ErrTemplateNotFound)
}

func TestEditClearsMatch(t *testing.T) {
	sess := newTestSession(t, &fakeGenerator{})

	builtin := anchor.BuiltinTemplates()[0]
	require.NoError(t, sess.LoadTemplate(builtin.Name))
	require.Equal(t, builtin.Name, sess.Snapshot().MatchedName)

	view := sess.UpdateOptions(func(o *anchor.Options) {
		o.Prompt += " "
	})
	assert.Empty(t, view.MatchedName, "any field difference, even whitespace, breaks the match")
}

func TestSaveTemplateRoundTrip(t *testing.T) {
	sess := newTestSession(t, &fakeGenerator{})

	sess.UpdateOptions(func(o *anchor.Options) { o.Prompt = "custom" })
	require.NoError(t, sess.SaveTemplate("Custom", false))
	assert.Equal(t, "Custom", sess.Snapshot().MatchedName)

	assert.ErrorIs(t, sess.SaveTemplate("Custom", false), anchor.ErrNameExists)
	require.NoError(t, sess.SaveTemplate("Custom", true))

	require.NoError(t, sess.DeleteTemplate("Custom"))
	assert.Empty(t, sess.Snapshot().MatchedName)
}
