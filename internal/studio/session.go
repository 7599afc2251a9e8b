package studio

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"ai-anchor-studio/internal/anchor"
	"ai-anchor-studio/internal/gemini"
)

var (
	// ErrBusy reports that a generation request is already in flight.
	ErrBusy = errors.New("a generation request is already in progress")
	// ErrNotAnImage reports that a supplied reference file is not an image.
	ErrNotAnImage = errors.New("the reference file is not an image")
)

// Phase is the lifecycle phase of the session's generation request.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseGenerating Phase = "generating"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// RequestState holds the current phase plus its payload: an image data URL
// when done, a single descriptive error sentence when failed.
type RequestState struct {
	Phase    Phase  `json:"phase"`
	ImageURL string `json:"imageUrl,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Generator is the outbound generation boundary; satisfied by
// *gemini.Client.
type Generator interface {
	Generate(ctx context.Context, req gemini.Request) (gemini.Image, error)
}

type SessionOptions struct {
	Templates *anchor.Store
	Generator Generator
	Logger    *slog.Logger
}

// Session owns the live options record, the optional reference face image
// and the request state for one user session, and wires every user action to
// the template store, prompt composer and generation client.
type Session struct {
	mu        sync.Mutex
	options   anchor.Options
	face      *gemini.FaceImage
	state     RequestState
	templates *anchor.Store
	gen       Generator
	logger    *slog.Logger
}

func NewSession(opts SessionOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Session{
		options:   anchor.DefaultOptions(),
		state:     RequestState{Phase: PhaseIdle},
		templates: opts.Templates,
		gen:       opts.Generator,
		logger:    logger,
	}
}

// View is a consistent snapshot of the session for rendering.
type View struct {
	Options      anchor.Options `json:"options"`
	HasFace      bool           `json:"hasFace"`
	State        RequestState   `json:"state"`
	MatchedName  string         `json:"matchedTemplate"`
	FaceMimeType string         `json:"-"`
}

func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		Options: s.options,
		HasFace: s.face != nil,
		State:   s.state,
	}
	if s.face != nil {
		v.FaceMimeType = s.face.MimeType
	}
	if s.templates != nil {
		if name, ok := s.templates.Match(s.options); ok {
			v.MatchedName = name
		}
	}
	return v
}

// SetOptions replaces the options record wholesale.
func (s *Session) SetOptions(options anchor.Options) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options = options
	return s.viewLocked()
}

// UpdateOptions applies a field-wise edit to the live options record.
func (s *Session) UpdateOptions(fn func(*anchor.Options)) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		fn(&s.options)
	}
	return s.viewLocked()
}

// SetFace stores the reference face image after validating that the media
// type indicates an image. Any previous reference image is discarded.
func (s *Session) SetFace(data []byte, mimeType string) error {
	mimeType = strings.TrimSpace(mimeType)
	if !strings.HasPrefix(mimeType, "image/") {
		return ErrNotAnImage
	}
	if len(data) == 0 {
		return ErrNotAnImage
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.face = &gemini.FaceImage{
		DataBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:   mimeType,
	}
	return nil
}

func (s *Session) ClearFace() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.face = nil
}

// Generate composes the prompt from the current options and performs the
// external call. At most one request is in flight per session; a second
// generate while busy fails with ErrBusy and changes nothing.
func (s *Session) Generate(ctx context.Context) (RequestState, error) {
	s.mu.Lock()
	if s.state.Phase == PhaseGenerating {
		state := s.state
		s.mu.Unlock()
		return state, ErrBusy
	}

	opts := s.options
	face := s.face
	s.state = RequestState{Phase: PhaseGenerating}
	s.mu.Unlock()

	prompt := anchor.ComposePrompt(opts, face != nil)
	img, err := s.gen.Generate(ctx, gemini.Request{
		Prompt:      prompt,
		AspectRatio: opts.AspectRatio,
		Face:        face,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.logger.Error("generation failed", "err", err)
		s.state = RequestState{Phase: PhaseFailed, Error: err.Error()}
		return s.state, nil
	}

	s.state = RequestState{Phase: PhaseDone, ImageURL: img.DataURL()}
	return s.state, nil
}

// LoadTemplate replaces the options record with the named template's
// snapshot and clears the reference face; a loaded template never carries
// one.
func (s *Session) LoadTemplate(name string) error {
	options, err := s.templates.Load(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.options = options
	s.face = nil
	return nil
}

// SaveTemplate snapshots the current options under name, applying the
// store's reserved-name and overwrite-confirmation rules.
func (s *Session) SaveTemplate(name string, overwrite bool) error {
	s.mu.Lock()
	options := s.options
	s.mu.Unlock()

	return s.templates.Save(name, options, overwrite)
}

func (s *Session) DeleteTemplate(name string) error {
	return s.templates.Delete(name)
}

func (s *Session) Templates() []anchor.Template {
	return s.templates.List()
}
