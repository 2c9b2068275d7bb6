package server

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-analyze/analysis"
	"github.com/RyanBlaney/sonido-analyze/logging"
	"github.com/RyanBlaney/sonido-analyze/transcode"
)

const sampleRate = 22050

// sineWAV returns a 16-bit mono WAV file holding a 440 Hz tone
func sineWAV(t *testing.T, seconds float64) []byte {
	t.Helper()

	n := int(seconds * sampleRate)
	data := make([]int, n)
	for i := range data {
		data[i] = int(16384 * math.Sin(2*math.Pi*440*float64(i)/sampleRate))
	}

	path := filepath.Join(t.TempDir(), "tone.wav")
	out, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(out, sampleRate, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, out.Close())

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	return body
}

func uploadRequest(t *testing.T, field string, payload []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, "upload.wav")
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newTestServer(t *testing.T, config Config) (*Server, string) {
	t.Helper()

	analyzer, err := analysis.NewAnalyzer(analysis.DefaultConfig())
	require.NoError(t, err)

	tempDir := t.TempDir()
	decCfg := transcode.DefaultDecoderConfig()
	decCfg.FFmpegPath = "/nonexistent/ffmpeg"
	decCfg.FFprobePath = "/nonexistent/ffprobe"
	decCfg.TempDir = tempDir

	srv := New(config, analyzer, transcode.NewDecoder(decCfg)).
		WithLogger(&logging.NoOpLogger{})
	return srv, tempDir
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func assertNoLeftovers(t *testing.T, dir string) {
	t.Helper()
	assert.Eventually(t, func() bool {
		entries, err := os.ReadDir(dir)
		return err == nil && len(entries) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewAppliesDefaults(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	assert.Equal(t, DefaultConfig(), srv.Config())
	assert.Equal(t, ":3001", srv.Config().Addr)
	assert.Equal(t, int64(100<<20), srv.Config().MaxUploadBytes)
}

func TestAnalyzeEndpoint(t *testing.T) {
	srv, tempDir := newTestServer(t, Config{})
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, uploadRequest(t, "file", sineWAV(t, 1)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var result analysis.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, sampleRate, result.SampleRate)
	assert.InDelta(t, 1.0, result.DurationSec, 1e-9)
	assert.Len(t, result.WaveformData, 1000)
	assert.Len(t, result.MFCCMean, 13)
	assert.Len(t, result.SpectrogramDB, 1025)
	assert.Len(t, result.SegmentsSec, 3)

	assertNoLeftovers(t, tempDir)
}

func TestAnalyzeMissingFile(t *testing.T) {
	srv, tempDir := newTestServer(t, Config{})
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, uploadRequest(t, "audio", sineWAV(t, 0.1)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no audio file provided", errorMessage(t, rec))
	assertNoLeftovers(t, tempDir)
}

func TestAnalyzeRejections(t *testing.T) {
	tests := []struct {
		name    string
		payload func(t *testing.T) []byte
		status  int
	}{
		{
			name:    "too short",
			payload: func(t *testing.T) []byte { return sineWAV(t, 0.05) },
			status:  http.StatusUnprocessableEntity,
		},
		{
			name:    "not audio without ffmpeg",
			payload: func(t *testing.T) []byte { return []byte("definitely not audio") },
			status:  http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, tempDir := newTestServer(t, Config{})
			rec := httptest.NewRecorder()

			srv.Handler().ServeHTTP(rec, uploadRequest(t, "file", tt.payload(t)))

			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, errorMessage(t, rec))
			assertNoLeftovers(t, tempDir)
		})
	}
}

func TestAnalyzeUploadTooLarge(t *testing.T) {
	srv, _ := newTestServer(t, Config{MaxUploadBytes: 1024})
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, uploadRequest(t, "file", sineWAV(t, 1)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAnalyzeTimeout(t *testing.T) {
	srv, tempDir := newTestServer(t, Config{AnalyzeTimeout: time.Nanosecond})
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, uploadRequest(t, "file", sineWAV(t, 1)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "analysis timed out", errorMessage(t, rec))
	assertNoLeftovers(t, tempDir)
}

func TestAnalyzeMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyze", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPreflight(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/analyze", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&analysis.PipelineError{Stage: analysis.StageLoad, Err: analysis.ErrEmptySignal}, http.StatusUnprocessableEntity},
		{&analysis.PipelineError{Stage: analysis.StageLoad, Err: analysis.ErrSignalTooShort}, http.StatusUnprocessableEntity},
		{&analysis.PipelineError{Stage: analysis.StageSegmentation, Err: analysis.ErrInvalidConfiguration}, http.StatusBadRequest},
		{&decodeError{err: transcode.ErrNoAudio}, http.StatusUnprocessableEntity},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, statusFor(tt.err), tt.err.Error())
	}
}
