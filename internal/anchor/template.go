package anchor

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"ai-anchor-studio/internal/storage"
)

var (
	ErrEmptyName        = errors.New("template name is empty")
	ErrReservedName     = errors.New("template name is reserved for a built-in template")
	ErrNameExists       = errors.New("a template with this name already exists")
	ErrTemplateNotFound = errors.New("template not found")
)

// Template is a named snapshot of an options record.
type Template struct {
	Name    string  `json:"name"`
	Options Options `json:"options"`
}

// BuiltinTemplates returns the fixed preset list shipped with the app.
// Built-ins are immutable: they can never be overwritten or deleted.
func BuiltinTemplates() []Template {
	return []Template{
		{
			Name: "News Anchor (Preset)",
			Options: Options{
				Prompt:          "A professional female news anchor in a traditional red ao dai, hair in a neat bun, presenting in a modern broadcast studio.",
				Gender:          "Female",
				Ethnicity:       "Asian",
				Age:             "Young adult (25-35)",
				Expression:      "Neutral",
				HairStyle:       "High bun",
				HairColor:       "Black",
				EyeStyle:        "Almond eyes",
				EyeColor:        "Brown",
				Clothing:        "Traditional ao dai",
				ClothingDetails: "Red ao dai with golden lotus embroidery",
				Background:      "Virtual news studio",
				AspectRatio:     "16:9",
			},
		},
		{
			Name: "Game Streamer (Preset)",
			Options: Options{
				Prompt:          "An energetic male game streamer with platinum-dyed hair, wearing a gaming headset, sitting in front of monitors in a neon-lit room.",
				Gender:          "Male",
				Ethnicity:       "Asian",
				Age:             "Youth (18-24)",
				Expression:      "Focused",
				HairStyle:       "Slicked back",
				HairColor:       "Platinum",
				EyeStyle:        "Monolid eyes",
				EyeColor:        "Black",
				Clothing:        "Techwear",
				ClothingDetails: "Black hoodie with a game logo, glowing gaming headset",
				Background:      "Neon-lit studio",
				AspectRatio:     "9:16",
			},
		},
		{
			Name: "Countryside Host (Preset)",
			Options: Options{
				Prompt:          "A beautiful countryside girl in a folk blouse and conical hat, smiling brightly in the middle of a lush green rice field.",
				Gender:          "Female",
				Ethnicity:       "Asian",
				Age:             "Young adult (25-35)",
				Expression:      "Bright smile",
				HairStyle:       "Twin braids",
				HairColor:       "Black",
				EyeStyle:        "Round eyes",
				EyeColor:        "Black",
				Clothing:        "Casual folk",
				ClothingDetails: "Light pink folk blouse, black trousers, conical hat",
				Background:      "Rice field",
				AspectRatio:     "9:16",
			},
		},
	}
}

type StoreOptions struct {
	Slot   storage.Slot
	Logger *slog.Logger
}

// Store holds the combined template list: built-ins first (fixed order),
// then user templates in insertion order. The user subset is mirrored into
// the storage slot on every mutation, best effort.
type Store struct {
	mu      sync.Mutex
	builtin []Template
	user    []Template
	slot    storage.Slot
	logger  *slog.Logger
}

func NewStore(opts StoreOptions) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Store{
		builtin: BuiltinTemplates(),
		slot:    opts.Slot,
		logger:  logger,
	}
	s.user = s.loadPersisted()
	return s
}

// loadPersisted reads the user subset from the slot. Any read or parse
// failure degrades to an empty set: nothing the user has successfully saved
// before is at risk, and a broken slot must never block startup.
func (s *Store) loadPersisted() []Template {
	if s.slot == nil {
		return nil
	}

	data, err := s.slot.Read()
	if err != nil {
		s.logger.Warn("template slot read failed, starting with no saved templates", "err", err)
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var persisted []Template
	if err := json.Unmarshal(data, &persisted); err != nil {
		s.logger.Warn("template slot is not valid JSON, starting with no saved templates", "err", err)
		return nil
	}

	out := make([]Template, 0, len(persisted))
	for _, t := range persisted {
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" || s.isReservedLocked(t.Name) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (s *Store) List() []Template {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Template, 0, len(s.builtin)+len(s.user))
	out = append(out, s.builtin...)
	out = append(out, s.user...)
	return out
}

// Save stores a snapshot of options under name. A case-insensitive collision
// with a built-in fails with ErrReservedName. A collision with an existing
// user template fails with ErrNameExists unless overwrite is set, in which
// case the existing entry's options are replaced in place, keeping its
// position and originally stored name.
func (s *Store) Save(name string, options Options, overwrite bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isReservedLocked(name) {
		return ErrReservedName
	}

	if idx := s.userIndexLocked(name); idx >= 0 {
		if !overwrite {
			return ErrNameExists
		}
		s.user[idx].Options = options
		s.persistLocked()
		return nil
	}

	s.user = append(s.user, Template{Name: name, Options: options})
	s.persistLocked()
	return nil
}

// Delete removes the user template with the given name. Deleting a built-in
// fails with ErrReservedName; deleting an unknown name is a no-op.
func (s *Store) Delete(name string) error {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isReservedLocked(name) {
		return ErrReservedName
	}

	idx := s.userIndexLocked(name)
	if idx < 0 {
		return nil
	}

	s.user = append(s.user[:idx], s.user[idx+1:]...)
	s.persistLocked()
	return nil
}

// Load returns a copy of the options stored under the exact name.
func (s *Store) Load(name string) (Options, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.builtin {
		if t.Name == name {
			return t.Options, nil
		}
	}
	for _, t := range s.user {
		if t.Name == name {
			return t.Options, nil
		}
	}
	return Options{}, ErrTemplateNotFound
}

// Match returns the name of the first template, in list order, whose options
// equal the given record field for field. ok is false when nothing matches.
func (s *Store) Match(options Options) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.builtin {
		if t.Options.Equal(options) {
			return t.Name, true
		}
	}
	for _, t := range s.user {
		if t.Options.Equal(options) {
			return t.Name, true
		}
	}
	return "", false
}

func (s *Store) isReservedLocked(name string) bool {
	for _, t := range s.builtin {
		if strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}

func (s *Store) userIndexLocked(name string) int {
	for i, t := range s.user {
		if strings.EqualFold(t.Name, name) {
			return i
		}
	}
	return -1
}

// persistLocked rewrites the full user subset into the slot. Failures are
// logged and otherwise ignored: the in-memory list is the source of truth
// for the session and durability is opportunistic.
func (s *Store) persistLocked() {
	if s.slot == nil {
		return
	}

	data, err := json.Marshal(s.user)
	if err != nil {
		s.logger.Warn("marshal templates failed", "err", err)
		return
	}
	if err := s.slot.Write(data); err != nil {
		s.logger.Warn("template slot write failed", "err", err)
	}
}
