package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"slidecast-api/internal/job"
	"slidecast-api/internal/plan"
	"slidecast-api/internal/progress"
	"slidecast-api/internal/storage"
	"slidecast-api/internal/transcribe"
)

// mockRenderer implements media.Renderer for testing.
type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) Render(ctx context.Context, p *plan.RenderPlan, workDir, outputPath string, updates chan<- progress.Update) error {
	args := m.Called(ctx, p, workDir, outputPath, updates)
	return args.Error(0)
}

func (m *mockRenderer) ProbeDuration(ctx context.Context, path string) (float64, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(float64), args.Error(1)
}

// mockDownloader implements transcribe.Downloader for testing.
type mockDownloader struct {
	mock.Mock
}

func (m *mockDownloader) DownloadAudio(ctx context.Context, url, outputDir string) (string, error) {
	args := m.Called(ctx, url, outputDir)
	return args.String(0), args.Error(1)
}

// mockTranscriber implements transcribe.Transcriber for testing.
type mockTranscriber struct {
	mock.Mock
}

func (m *mockTranscriber) TranscribeFile(ctx context.Context, audioPath string) (*transcribe.Result, error) {
	args := m.Called(ctx, audioPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transcribe.Result), args.Error(1)
}

func newTestHandlers(t *testing.T, opts ...HandlerOption) (*Handlers, job.Repository, *storage.LocalStorage) {
	t.Helper()
	repo := job.NewMemoryRepository()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	assembleSvc := job.NewAssembleService(repo, store, &mockRenderer{}, logger)
	transcribeSvc := job.NewTranscribeService(repo, store, &mockDownloader{}, &mockTranscriber{}, logger)

	// Disable async processing for tests so handlers stay deterministic
	base := []HandlerOption{WithAsyncProcessing(false), WithTranscription(transcribeSvc)}
	handlers := NewHandlers(assembleSvc, store, logger, append(base, opts...)...)
	return handlers, repo, store
}

// uploadFile describes one file part of a multipart request.
type uploadFile struct {
	field   string
	name    string
	content string
}

func multipartRequest(t *testing.T, target string, files []uploadFile, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

func TestCreateJob_Success(t *testing.T) {
	h, repo, _ := newTestHandlers(t)

	req := multipartRequest(t, "/jobs",
		[]uploadFile{
			{field: "images", name: "intro1.jpg", content: "img-1"},
			{field: "images", name: "intro2.jpg", content: "img-2"},
			{field: "audio", name: "track.mp3", content: "audio"},
		},
		map[string]string{
			"mode":         "multi",
			"aspect_ratio": "9:16",
			"fps":          "30",
			"push_to_s3":   "false",
		},
	)
	rec := httptest.NewRecorder()

	h.CreateJob(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp CreateJobResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "IN_QUEUE", resp.Status)

	saved, err := repo.FindByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, job.KindAssemble, saved.Kind)
	assert.Len(t, saved.Images, 2)
	assert.True(t, saved.HasAudio)
	for _, img := range saved.Images {
		_, err := os.Stat(img.Path)
		assert.NoError(t, err, "stored image should exist on disk")
	}
}

func TestCreateJob_NoImages(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := multipartRequest(t, "/jobs", nil, map[string]string{"mode": "single"})
	rec := httptest.NewRecorder()

	h.CreateJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Code)
}

func TestCreateJob_UnsupportedImageFormat(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := multipartRequest(t, "/jobs",
		[]uploadFile{{field: "images", name: "animation.gif", content: "x"}}, nil)
	rec := httptest.NewRecorder()

	h.CreateJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNSUPPORTED_FORMAT", decodeError(t, rec).Code)
}

func TestCreateJob_UnsupportedAudioFormat(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := multipartRequest(t, "/jobs",
		[]uploadFile{
			{field: "images", name: "slide.jpg", content: "x"},
			{field: "audio", name: "notes.txt", content: "x"},
		}, nil)
	rec := httptest.NewRecorder()

	h.CreateJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNSUPPORTED_FORMAT", decodeError(t, rec).Code)
}

func TestCreateJob_InvalidFPSValue(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := multipartRequest(t, "/jobs",
		[]uploadFile{{field: "images", name: "slide.jpg", content: "x"}},
		map[string]string{"fps": "abc"})
	rec := httptest.NewRecorder()

	h.CreateJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
}

func TestCreateJob_UnknownAspectRatio(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := multipartRequest(t, "/jobs",
		[]uploadFile{{field: "images", name: "slide.jpg", content: "x"}},
		map[string]string{"aspect_ratio": "4:3"})
	rec := httptest.NewRecorder()

	h.CreateJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Code)
}

func TestCreateJob_BodyTooLarge(t *testing.T) {
	h, _, _ := newTestHandlers(t, WithMaxUploadBytes(1024))

	req := multipartRequest(t, "/jobs",
		[]uploadFile{{field: "images", name: "slide.jpg", content: strings.Repeat("x", 64*1024)}}, nil)
	rec := httptest.NewRecorder()

	h.CreateJob(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", decodeError(t, rec).Code)
}

func TestCreateJob_NotMultipart(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"images":[]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.CreateJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_FORM", decodeError(t, rec).Code)
}

func TestGetJob_Success(t *testing.T) {
	h, repo, _ := newTestHandlers(t)
	ctx := context.Background()

	testJob := job.New(job.KindAssemble)
	testJob.Mode = plan.ModeMulti
	testJob.UpdateProgress(50, "rendering segments")
	testJob.SetSegments([]job.SegmentState{
		{Index: 0, Kind: plan.SegmentImages, GroupKey: "intro", Status: job.SegmentCompleted},
		{Index: 1, Kind: plan.SegmentSeparator, Status: job.SegmentPending},
	})
	require.NoError(t, repo.Save(ctx, testJob))

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+testJob.ID, nil)
	req.SetPathValue("id", testJob.ID)
	rec := httptest.NewRecorder()

	h.GetJob(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp JobResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, testJob.ID, resp.ID)
	assert.Equal(t, "assemble", resp.Kind)
	assert.Equal(t, "IN_QUEUE", resp.Status)
	assert.Equal(t, 50, resp.Progress)
	assert.Equal(t, "rendering segments", resp.Stage)
	require.Len(t, resp.Segments, 2)
	assert.Equal(t, "images", resp.Segments[0].Kind)
	assert.Equal(t, "intro", resp.Segments[0].Group)
	assert.Equal(t, "COMPLETED", resp.Segments[0].Status)
	assert.Equal(t, "separator", resp.Segments[1].Kind)
}

func TestGetJob_NotFound(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/nonexistent", nil)
	req.SetPathValue("id", "nonexistent")
	rec := httptest.NewRecorder()

	h.GetJob(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "JOB_NOT_FOUND", decodeError(t, rec).Code)
}

func TestGetJob_MissingID(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/", nil)
	rec := httptest.NewRecorder()

	h.GetJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_JOB_ID", decodeError(t, rec).Code)
}

func TestGetJob_WrongKind(t *testing.T) {
	h, repo, _ := newTestHandlers(t)
	ctx := context.Background()

	testJob := job.New(job.KindTranscribe)
	require.NoError(t, repo.Save(ctx, testJob))

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+testJob.ID, nil)
	req.SetPathValue("id", testJob.ID)
	rec := httptest.NewRecorder()

	h.GetJob(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadVideo_NotReady(t *testing.T) {
	h, repo, _ := newTestHandlers(t)
	ctx := context.Background()

	testJob := job.New(job.KindAssemble)
	require.NoError(t, repo.Save(ctx, testJob))

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+testJob.ID+"/video", nil)
	req.SetPathValue("id", testJob.ID)
	rec := httptest.NewRecorder()

	h.DownloadVideo(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "JOB_NOT_READY", decodeError(t, rec).Code)
}

func TestDownloadVideo_Success(t *testing.T) {
	h, repo, _ := newTestHandlers(t)
	ctx := context.Background()

	videoPath := filepath.Join(t.TempDir(), "output.mp4")
	require.NoError(t, os.WriteFile(videoPath, []byte("fake-video-bytes"), 0o600))

	testJob := job.New(job.KindAssemble)
	testJob.OutputName = "output.mp4"
	require.NoError(t, testJob.Start())
	require.NoError(t, testJob.Complete())
	testJob.SetOutput(videoPath, "")
	require.NoError(t, repo.Save(ctx, testJob))

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+testJob.ID+"/video", nil)
	req.SetPathValue("id", testJob.ID)
	rec := httptest.NewRecorder()

	h.DownloadVideo(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="output.mp4"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "fake-video-bytes", rec.Body.String())
}

func TestDownloadVideo_RedirectsToS3(t *testing.T) {
	h, repo, _ := newTestHandlers(t)
	ctx := context.Background()

	testJob := job.New(job.KindAssemble)
	require.NoError(t, testJob.Start())
	require.NoError(t, testJob.Complete())
	testJob.SetOutput("/tmp/ignored.mp4", "https://bucket.example.com/videos/x.mp4")
	require.NoError(t, repo.Save(ctx, testJob))

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+testJob.ID+"/video", nil)
	req.SetPathValue("id", testJob.ID)
	rec := httptest.NewRecorder()

	h.DownloadVideo(rec, req)

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "https://bucket.example.com/videos/x.mp4", rec.Header().Get("Location"))
}

func TestDownloadVideo_Deleted(t *testing.T) {
	h, repo, _ := newTestHandlers(t)
	ctx := context.Background()

	testJob := job.New(job.KindAssemble)
	require.NoError(t, testJob.Start())
	require.NoError(t, testJob.Complete())
	require.NoError(t, repo.Save(ctx, testJob))

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+testJob.ID+"/video", nil)
	req.SetPathValue("id", testJob.ID)
	rec := httptest.NewRecorder()

	h.DownloadVideo(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "VIDEO_NOT_FOUND", decodeError(t, rec).Code)
}

func TestDeleteVideo(t *testing.T) {
	h, repo, store := newTestHandlers(t)
	ctx := context.Background()

	testJob := job.New(job.KindAssemble)
	require.NoError(t, testJob.Start())
	require.NoError(t, testJob.Complete())

	videoPath, err := store.SaveInWorkspace(ctx, testJob.ID, "output.mp4", strings.NewReader("video"))
	require.NoError(t, err)
	testJob.SetOutput(videoPath, "")
	require.NoError(t, repo.Save(ctx, testJob))

	req := httptest.NewRequest(http.MethodPost, "/jobs/"+testJob.ID+"/video/delete", nil)
	req.SetPathValue("id", testJob.ID)
	rec := httptest.NewRecorder()

	h.DeleteVideo(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, err = os.Stat(videoPath)
	assert.True(t, os.IsNotExist(err), "video file should be gone")

	saved, err := repo.FindByID(ctx, testJob.ID)
	require.NoError(t, err)
	assert.Empty(t, saved.OutputVideoPath)

	// Idempotent: deleting again still succeeds
	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/jobs/"+testJob.ID+"/video/delete", nil)
	req2.SetPathValue("id", testJob.ID)
	h.DeleteVideo(rec2, req2)
	assert.Equal(t, http.StatusNoContent, rec2.Code)
}

func TestDeleteVideo_NotFound(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/jobs/nope/video/delete", nil)
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()

	h.DeleteVideo(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTranscription_Success(t *testing.T) {
	h, repo, _ := newTestHandlers(t)

	body := `{"url":"https://www.tiktok.com/@user/video/123"}`
	req := httptest.NewRequest(http.MethodPost, "/transcriptions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.CreateTranscription(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp CreateJobResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "IN_QUEUE", resp.Status)

	saved, err := repo.FindByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, job.KindTranscribe, saved.Kind)
}

func TestCreateTranscription_Disabled(t *testing.T) {
	h, _, _ := newTestHandlers(t, WithTranscription(nil))

	body := `{"url":"https://www.tiktok.com/@user/video/123"}`
	req := httptest.NewRequest(http.MethodPost, "/transcriptions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.CreateTranscription(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "TRANSCRIPTION_DISABLED", decodeError(t, rec).Code)
}

func TestCreateTranscription_InvalidJSON(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/transcriptions", strings.NewReader("invalid json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.CreateTranscription(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", decodeError(t, rec).Code)
}

func TestCreateTranscription_MissingURL(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/transcriptions", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.CreateTranscription(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
}

func TestCreateTranscription_UnsupportedScheme(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	body := `{"url":"ftp://example.com/clip"}`
	req := httptest.NewRequest(http.MethodPost, "/transcriptions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.CreateTranscription(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Code)
}

func TestGetTranscription_Success(t *testing.T) {
	h, repo, _ := newTestHandlers(t)
	ctx := context.Background()

	testJob := job.New(job.KindTranscribe)
	testJob.SourceURL = "https://www.tiktok.com/@user/video/123"
	require.NoError(t, testJob.Start())
	testJob.SetTranscript("ola, tudo bem?")
	require.NoError(t, testJob.Complete())
	testJob.UpdateProgress(100, "transcription complete")
	require.NoError(t, repo.Save(ctx, testJob))

	req := httptest.NewRequest(http.MethodGet, "/transcriptions/"+testJob.ID, nil)
	req.SetPathValue("id", testJob.ID)
	rec := httptest.NewRecorder()

	h.GetTranscription(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp TranscriptionResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, testJob.ID, resp.ID)
	assert.Equal(t, "COMPLETED", resp.Status)
	assert.Equal(t, 100, resp.Progress)
	assert.Equal(t, "ola, tudo bem?", resp.Text)
	assert.Equal(t, "https://www.tiktok.com/@user/video/123", resp.URL)
}

func TestGetTranscription_WrongKind(t *testing.T) {
	h, repo, _ := newTestHandlers(t)
	ctx := context.Background()

	testJob := job.New(job.KindAssemble)
	require.NoError(t, repo.Save(ctx, testJob))

	req := httptest.NewRequest(http.MethodGet, "/transcriptions/"+testJob.ID, nil)
	req.SetPathValue("id", testJob.ID)
	rec := httptest.NewRecorder()

	h.GetTranscription(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDetectSeparators_NoVideo(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := multipartRequest(t, "/videos/separators", nil, map[string]string{"threshold": "0.8"})
	rec := httptest.NewRecorder()

	h.DetectSeparators(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Code)
}

func TestDetectSeparators_InvalidThresholdValue(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := multipartRequest(t, "/videos/separators",
		[]uploadFile{{field: "video", name: "clip.mp4", content: "not-a-video"}},
		map[string]string{"threshold": "abc"})
	rec := httptest.NewRecorder()

	h.DetectSeparators(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
}

func TestDetectSeparators_ThresholdOutOfRange(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := multipartRequest(t, "/videos/separators",
		[]uploadFile{{field: "video", name: "clip.mp4", content: "not-a-video"}},
		map[string]string{"threshold": "1.5"})
	rec := httptest.NewRecorder()

	h.DetectSeparators(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Code)
}

func TestNewRouter(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	router := NewRouter(h, logger, DefaultConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Unknown route falls through to 404
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// CORS preflight answered by the middleware
	req = httptest.NewRequest(http.MethodOptions, "/jobs", nil)
	req.Header.Set("Origin", "https://studio.example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://studio.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Disposition", rec.Header().Get("Access-Control-Expose-Headers"))
}
