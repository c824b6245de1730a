package classifier

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sm-diecasting/inspection-service/internal/domain/entity"
)

// newClassifyServer answers with whatever label the frame file content
// dictates, so ordering checks are independent of request interleaving.
func newClassifyServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req classifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "image/jpeg", req.ContentType)

		data, err := base64.StdEncoding.DecodeString(req.Image)
		require.NoError(t, err)

		switch string(data) {
		case "BOOM":
			http.Error(w, "internal error", http.StatusInternalServerError)
		case "SENTINEL":
			json.NewEncoder(w).Encode(classifyResponse{Prediction: "Error", Confidence: 0})
		default:
			json.NewEncoder(w).Encode(classifyResponse{Class: string(data), Confidence: 0.93})
		}
	}))
}

func writeFrames(t *testing.T, contents []string) []entity.Frame {
	t.Helper()
	dir := t.TempDir()
	frames := make([]entity.Frame, len(contents))
	for i, c := range contents {
		path := filepath.Join(dir, fmt.Sprintf("frame_%d.jpg", i))
		require.NoError(t, os.WriteFile(path, []byte(c), 0644))
		frames[i] = entity.Frame{Index: i, Path: path}
	}
	return frames
}

func newTestEndpoint(url string, workers int) *Endpoint {
	return NewEndpoint(EndpointConfig{
		URL:     url,
		Timeout: 5 * time.Second,
		Workers: workers,
	}, zap.NewNop())
}

func TestClassifyPreservesOrder(t *testing.T) {
	srv := newClassifyServer(t)
	defer srv.Close()

	contents := make([]string, 20)
	for i := range contents {
		if i%3 == 0 {
			contents[i] = "NG"
		} else {
			contents[i] = "OK"
		}
	}
	frames := writeFrames(t, contents)

	preds, err := newTestEndpoint(srv.URL, 4).Classify(t.Context(), frames)
	require.NoError(t, err)
	require.Len(t, preds, len(frames))

	for i, p := range preds {
		assert.Equal(t, frames[i], p.Frame, "output %d must correspond to input %d", i, i)
		assert.False(t, p.Failed)
		assert.Equal(t, entity.Verdict(contents[i]), p.Label)
		assert.InDelta(t, 0.93, p.Confidence, 1e-9)
	}
}

func TestClassifyPerItemFailureDoesNotAbortBatch(t *testing.T) {
	srv := newClassifyServer(t)
	defer srv.Close()

	frames := writeFrames(t, []string{"OK", "BOOM", "NG", "SENTINEL", "OK"})

	preds, err := newTestEndpoint(srv.URL, 2).Classify(t.Context(), frames)
	require.NoError(t, err)
	require.Len(t, preds, 5)

	assert.False(t, preds[0].Failed)
	assert.True(t, preds[1].Failed, "HTTP 500 becomes a failure sentinel")
	assert.Zero(t, preds[1].Confidence)
	assert.Equal(t, entity.VerdictNG, preds[2].Label)
	assert.True(t, preds[3].Failed, "Error label from the endpoint is a failure")
	assert.False(t, preds[4].Failed)
}

func TestClassifyUnreadableFrame(t *testing.T) {
	srv := newClassifyServer(t)
	defer srv.Close()

	frames := []entity.Frame{{Index: 0, Path: filepath.Join(t.TempDir(), "missing.jpg")}}
	preds, err := newTestEndpoint(srv.URL, 1).Classify(t.Context(), frames)
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.True(t, preds[0].Failed)
}

func TestClassifyUnreachableEndpoint(t *testing.T) {
	frames := writeFrames(t, []string{"OK", "OK"})

	preds, err := newTestEndpoint("http://127.0.0.1:1/classify", 2).Classify(t.Context(), frames)
	require.NoError(t, err)
	require.Len(t, preds, 2)
	for _, p := range preds {
		assert.True(t, p.Failed)
		assert.Zero(t, p.Confidence)
	}
}

func TestClassifyEmptyInput(t *testing.T) {
	preds, err := newTestEndpoint("http://unused", 4).Classify(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, preds)
}
