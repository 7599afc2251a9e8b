package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"ai-anchor-studio/internal/anchor"
	"ai-anchor-studio/internal/studio"
)

type apiError struct {
	Error string `json:"error"`
}

type statePayload struct {
	studio.View
	Templates []anchor.Template `json:"templates"`
}

type catalogPayload struct {
	Catalog  anchor.Catalog `json:"catalog"`
	Builtins []string       `json:"builtins"`
	Defaults anchor.Options `json:"defaults"`
}

type saveRequest struct {
	Name      string `json:"name"`
	Overwrite bool   `json:"overwrite"`
}

type loadRequest struct {
	Name string `json:"name"`
}

func (s *server) statePayload() statePayload {
	return statePayload{
		View:      s.session.Snapshot(),
		Templates: s.session.Templates(),
	}
}

func (s *server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	builtins := make([]string, 0)
	for _, t := range anchor.BuiltinTemplates() {
		builtins = append(builtins, t.Name)
	}

	writeJSON(w, http.StatusOK, catalogPayload{
		Catalog:  anchor.Choices(),
		Builtins: builtins,
		Defaults: anchor.DefaultOptions(),
	})
}

func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, s.statePayload())
}

// handleOptions replaces the live options record wholesale; every form edit
// in the SPA funnels through here.
func (s *server) handleOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	var options anchor.Options
	if err := json.NewDecoder(r.Body).Decode(&options); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid options payload"})
		return
	}
	if !anchor.ValidAspectRatio(options.AspectRatio) {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "unsupported aspect ratio"})
		return
	}

	s.session.SetOptions(options)
	writeJSON(w, http.StatusOK, s.statePayload())
}

func (s *server) handleFace(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodDelete:
		s.session.ClearFace()
		writeJSON(w, http.StatusOK, s.statePayload())
	case http.MethodPost:
		s.handleFaceUpload(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
	}
}

func (s *server) handleFaceUpload(w http.ResponseWriter, r *http.Request) {
	const maxUploadBytes = 25 << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "missing image"})
		return
	}
	defer file.Close()

	imgBytes, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "failed to read image"})
		return
	}

	mimeType := normalizeMime(header.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = normalizeMime(http.DetectContentType(imgBytes))
	}

	if err := s.session.SetFace(imgBytes, mimeType); err != nil {
		if errors.Is(err, studio.ErrNotAnImage) {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "the uploaded file is not an image"})
			return
		}
		s.logger.Error("face intake failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "failed to store the reference image"})
		return
	}

	writeJSON(w, http.StatusOK, s.statePayload())
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	state, err := s.session.Generate(r.Context())
	if errors.Is(err, studio.ErrBusy) {
		writeJSON(w, http.StatusConflict, apiError{Error: "a generation request is already in progress"})
		return
	}

	writeJSON(w, http.StatusOK, state)
}

func (s *server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.session.Templates())
	case http.MethodPost:
		s.handleTemplateSave(w, r)
	case http.MethodDelete:
		s.handleTemplateDelete(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
	}
}

func (s *server) handleTemplateSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid save payload"})
		return
	}

	switch err := s.session.SaveTemplate(req.Name, req.Overwrite); {
	case errors.Is(err, anchor.ErrEmptyName):
		writeJSON(w, http.StatusBadRequest, apiError{Error: "the template name is empty"})
	case errors.Is(err, anchor.ErrReservedName):
		writeJSON(w, http.StatusForbidden, apiError{Error: "built-in templates cannot be overwritten"})
	case errors.Is(err, anchor.ErrNameExists):
		// The SPA treats 409 as "ask the user, then retry with overwrite".
		writeJSON(w, http.StatusConflict, apiError{Error: "a template with this name already exists"})
	case err != nil:
		s.logger.Error("template save failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "saving failed"})
	default:
		writeJSON(w, http.StatusOK, s.statePayload())
	}
}

func (s *server) handleTemplateDelete(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "missing template name"})
		return
	}

	switch err := s.session.DeleteTemplate(name); {
	case errors.Is(err, anchor.ErrReservedName):
		writeJSON(w, http.StatusForbidden, apiError{Error: "built-in templates cannot be deleted"})
	case err != nil:
		s.logger.Error("template delete failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "deleting failed"})
	default:
		writeJSON(w, http.StatusOK, s.statePayload())
	}
}

func (s *server) handleTemplateLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid load payload"})
		return
	}

	if err := s.session.LoadTemplate(req.Name); err != nil {
		if errors.Is(err, anchor.ErrTemplateNotFound) {
			writeJSON(w, http.StatusNotFound, apiError{Error: "template not found"})
			return
		}
		s.logger.Error("template load failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "loading failed"})
		return
	}

	writeJSON(w, http.StatusOK, s.statePayload())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func normalizeMime(value string) string {
	value = strings.TrimSpace(value)
	if strings.Contains(value, ";") {
		value = strings.TrimSpace(strings.SplitN(value, ";", 2)[0])
	}
	return value
}
