package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedCall struct {
	path   string
	apiKey string
	body   []byte
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := New(Options{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		APIVersion: "v1beta",
		HTTPClient: srv.Client(),
	})
	return client, srv
}

func TestGenerateWithFace(t *testing.T) {
	var call capturedCall
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		call.path = r.URL.Path
		call.apiKey = r.Header.Get("x-goog-api-key")
		var payload generateContentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		require.Len(t, payload.Contents, 1)
		parts := payload.Contents[0].Parts
		require.Len(t, parts, 2)
		assert.NotNil(t, parts[0].InlineData)
		assert.Equal(t, "ZmFjZQ==", parts[0].InlineData.Data)
		assert.Equal(t, "image/jpeg", parts[0].InlineData.MimeType)
		assert.Equal(t, "a presenter", parts[1].Text)
		assert.Equal(t, []string{"IMAGE"}, payload.GenerationConfig.ResponseModalities)
		require.NotNil(t, payload.GenerationConfig.ImageConfig)
		assert.Equal(t, "16:9", payload.GenerationConfig.ImageConfig.AspectRatio)

		resp := generateContentResponse{Candidates: []candidate{{
			Content: content{Parts: []part{
				{Text: "here you go"},
				{InlineData: &blob{Data: "aW1n", MimeType: "image/png"}},
			}},
		}}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	img, err := client.Generate(context.Background(), Request{
		Prompt:      "a presenter",
		AspectRatio: "16:9",
		Face:        &FaceImage{DataBase64: "ZmFjZQ==", MimeType: "image/jpeg"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/gemini-2.5-flash-image:generateContent", call.path)
	assert.Equal(t, "test-key", call.apiKey)
	assert.Equal(t, "aW1n", img.DataBase64)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, "data:image/png;base64,aW1n", img.DataURL())
}

func TestGenerateWithFaceNoImageInResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		resp := generateContentResponse{Candidates: []candidate{{
			Content: content{Parts: []part{{Text: "sorry, text only"}}},
		}}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	_, err := client.Generate(context.Background(), Request{
		Prompt: "a presenter",
		Face:   &FaceImage{DataBase64: "ZmFjZQ==", MimeType: "image/jpeg"},
	})
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestGenerateWithFaceImageConfigFallback(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var payload generateContentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		if payload.GenerationConfig.ImageConfig != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Unknown name \"imageConfig\""}}`))
			return
		}

		resp := generateContentResponse{Candidates: []candidate{{
			Content: content{Parts: []part{{InlineData: &blob{Data: "aW1n", MimeType: "image/png"}}}},
		}}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	img, err := client.Generate(context.Background(), Request{
		Prompt:      "a presenter",
		AspectRatio: "16:9",
		Face:        &FaceImage{DataBase64: "ZmFjZQ==", MimeType: "image/jpeg"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "aW1n", img.DataBase64)
}

func TestGenerateFromText(t *testing.T) {
	var call capturedCall
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		call.path = r.URL.Path
		call.apiKey = r.Header.Get("x-goog-api-key")
		var payload predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		require.Len(t, payload.Instances, 1)
		assert.Equal(t, "a presenter", payload.Instances[0].Prompt)
		assert.Equal(t, 1, payload.Parameters.SampleCount)
		assert.Equal(t, "9:16", payload.Parameters.AspectRatio)
		assert.Equal(t, "image/png", payload.Parameters.OutputMimeType)

		resp := predictResponse{Predictions: []prediction{
			{BytesBase64Encoded: "aW1n", MimeType: "image/png"},
		}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	img, err := client.Generate(context.Background(), Request{
		Prompt:      "a presenter",
		AspectRatio: "9:16",
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/imagen-4.0-generate-001:predict", call.path)
	assert.Equal(t, "test-key", call.apiKey)
	assert.Equal(t, "aW1n", img.DataBase64)
}

func TestGenerateFromTextNoPredictions(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(predictResponse{}))
	})

	_, err := client.Generate(context.Background(), Request{Prompt: "a presenter"})
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestGenerateHTTPFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"backend exploded"}}`))
	})

	_, err := client.Generate(context.Background(), Request{Prompt: "a presenter"})
	require.Error(t, err)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, genErr.Error(), "backend exploded")
	assert.NotErrorIs(t, err, ErrNoImage)
}

func TestGenerateEmptyPrompt(t *testing.T) {
	called := false
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.Generate(context.Background(), Request{Prompt: "   "})
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.False(t, called, "no request should leave the client for an empty prompt")
}

func TestGenerationErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := &GenerationError{err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "image generation failed: inner", err.Error())
}
