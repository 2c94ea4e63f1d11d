package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiocast/internal/core/domain"
	"studiocast/internal/core/ports"
	"studiocast/internal/videofx"
	apperrors "studiocast/pkg/errors"
)

type fakeStudio struct {
	dests          []*domain.Destination
	layout         domain.LayoutID
	liveErr        error
	goLiveOpts     ports.GoLiveOptions
	clipErr        error
	clipOverlayErr error
	clipSource     domain.SourceID
	ended          bool
}

func (f *fakeStudio) AddDestination(ctx context.Context, dest *domain.Destination) error {
	f.dests = append(f.dests, dest)
	return nil
}

func (f *fakeStudio) RemoveDestination(ctx context.Context, id domain.DestinationID) error {
	for i, d := range f.dests {
		if d.ID == id {
			f.dests = append(f.dests[:i], f.dests[i+1:]...)
			return nil
		}
	}
	return domain.ErrDestinationNotFound
}

func (f *fakeStudio) ListDestinations(ctx context.Context) ([]*domain.Destination, error) {
	return f.dests, nil
}

func (f *fakeStudio) SetLayout(ctx context.Context, id domain.LayoutID) error {
	if !id.Valid() {
		return domain.ErrInvalidLayout
	}
	f.layout = id
	return nil
}

func (f *fakeStudio) GoLive(ctx context.Context, opts ports.GoLiveOptions) (*domain.StartResult, error) {
	if f.liveErr != nil {
		return nil, f.liveErr
	}
	f.goLiveOpts = opts
	return &domain.StartResult{
		Started: opts.Destinations,
		Failed:  map[domain.DestinationID]error{},
	}, nil
}

func (f *fakeStudio) EndBroadcast(ctx context.Context) error {
	f.ended = true
	return nil
}

func (f *fakeStudio) CreateClip(ctx context.Context, d time.Duration) (*domain.Clip, error) {
	if f.clipErr != nil {
		return nil, f.clipErr
	}
	return &domain.Clip{ID: "clip-1", Duration: d}, nil
}

func (f *fakeStudio) ShowClipOverlay(ctx context.Context, id domain.SourceID) error {
	if f.clipOverlayErr != nil {
		return f.clipOverlayErr
	}
	f.clipSource = id
	return nil
}

func (f *fakeStudio) ClearClipOverlay(ctx context.Context) error {
	f.clipSource = ""
	return nil
}

func (f *fakeStudio) StartRecording(ctx context.Context) error { return nil }

func (f *fakeStudio) Status(ctx context.Context) (*ports.StudioStatus, error) {
	return &ports.StudioStatus{Live: true, BroadcastID: "bc-1"}, nil
}

type fakeOverlays struct {
	lowerThird string
	captions   string
	chat       []domain.ChatMessage
	cleared    bool
}

func (f *fakeOverlays) ShowLowerThird(text string, d time.Duration) { f.lowerThird = text }
func (f *fakeOverlays) ShowCaptions(text string, d time.Duration)  { f.captions = text }
func (f *fakeOverlays) AddChatMessage(msg domain.ChatMessage)      { f.chat = append(f.chat, msg) }
func (f *fakeOverlays) ClearChatOverlay()                          { f.cleared = true }

type fakeEffects struct {
	source domain.SourceID
	effect videofx.Effect
	err    error
}

func (f *fakeEffects) SetSourceEffect(ctx context.Context, id domain.SourceID, effect videofx.Effect) error {
	if f.err != nil {
		return f.err
	}
	f.source = id
	f.effect = effect
	return nil
}

func newTestRouter(studio *fakeStudio, overlays *fakeOverlays) *gin.Engine {
	return newEffectsRouter(studio, overlays, &fakeEffects{})
}

func newEffectsRouter(studio *fakeStudio, overlays *fakeOverlays, effects *fakeEffects) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewStudioHandler(studio, overlays, effects).SetupRoutes(router)
	return router
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestDestinationEndpoints(t *testing.T) {
	studio := &fakeStudio{}
	router := newTestRouter(studio, &fakeOverlays{})

	w := doRequest(router, http.MethodPost, "/api/v1/destinations",
		`{"id":"yt","platform":"youtube","ingest_url":"rtmp://a.example.com/live"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, studio.dests, 1)

	w = doRequest(router, http.MethodGet, "/api/v1/destinations", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodDelete, "/api/v1/destinations/yt", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodDelete, "/api/v1/destinations/yt", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddDestinationRequiresID(t *testing.T) {
	router := newTestRouter(&fakeStudio{}, &fakeOverlays{})

	w := doRequest(router, http.MethodPost, "/api/v1/destinations", `{"platform":"youtube"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetLayout(t *testing.T) {
	studio := &fakeStudio{}
	router := newTestRouter(studio, &fakeOverlays{})

	w := doRequest(router, http.MethodPut, "/api/v1/layout", `{"layout":"cinema"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.LayoutCinema, studio.layout)

	w = doRequest(router, http.MethodPut, "/api/v1/layout", `{"layout":"mosaic"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGoLivePassesOptions(t *testing.T) {
	studio := &fakeStudio{}
	router := newTestRouter(studio, &fakeOverlays{})

	w := doRequest(router, http.MethodPost, "/api/v1/broadcast/golive",
		`{"title":"launch","countdown_seconds":3,"destinations":["yt","tw"]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "launch", studio.goLiveOpts.Title)
	assert.Equal(t, 3, studio.goLiveOpts.CountdownSeconds)
	assert.Len(t, studio.goLiveOpts.Destinations, 2)
}

func TestGoLiveErrorMapping(t *testing.T) {
	studio := &fakeStudio{liveErr: apperrors.NewConflictError("broadcast already live")}
	router := newTestRouter(studio, &fakeOverlays{})

	w := doRequest(router, http.MethodPost, "/api/v1/broadcast/golive",
		`{"title":"x","destinations":["yt"]}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, string(apperrors.ErrCodeConflict), body["code"])
}

func TestEndBroadcast(t *testing.T) {
	studio := &fakeStudio{}
	router := newTestRouter(studio, &fakeOverlays{})

	w := doRequest(router, http.MethodPost, "/api/v1/broadcast/end", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, studio.ended)
}

func TestCreateClip(t *testing.T) {
	studio := &fakeStudio{}
	router := newTestRouter(studio, &fakeOverlays{})

	w := doRequest(router, http.MethodPost, "/api/v1/clips", `{"duration_seconds":10}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	studio.clipErr = domain.ErrInsufficientBuffer
	w = doRequest(router, http.MethodPost, "/api/v1/clips", `{"duration_seconds":10}`)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/clips", `{"duration_seconds":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOverlayEndpoints(t *testing.T) {
	overlays := &fakeOverlays{}
	router := newTestRouter(&fakeStudio{}, overlays)

	w := doRequest(router, http.MethodPost, "/api/v1/overlays/lower-third",
		`{"text":"Ada Lovelace","duration_seconds":10}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ada Lovelace", overlays.lowerThird)

	w = doRequest(router, http.MethodPost, "/api/v1/overlays/captions",
		`{"text":"hello","duration_seconds":5}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", overlays.captions)

	w = doRequest(router, http.MethodPost, "/api/v1/overlays/chat",
		`{"author":"sam","text":"hi"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, overlays.chat, 1)

	w = doRequest(router, http.MethodDelete, "/api/v1/overlays/chat", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, overlays.cleared)
}

func TestSetSourceEffectEndpoint(t *testing.T) {
	effects := &fakeEffects{}
	router := newEffectsRouter(&fakeStudio{}, &fakeOverlays{}, effects)

	w := doRequest(router, http.MethodPut, "/api/v1/sources/cam-1/effect",
		`{"kind":"chroma-key","key_color":"#00ff00","similarity":0.4,"smoothness":0.5}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.SourceID("cam-1"), effects.source)
	assert.Equal(t, videofx.EffectChromaKey, effects.effect.Kind)
	assert.Equal(t, uint8(0xff), effects.effect.KeyG)
	assert.Equal(t, 0.4, effects.effect.Similarity)

	w = doRequest(router, http.MethodPut, "/api/v1/sources/cam-1/effect",
		`{"kind":"chroma-key","key_color":"green"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPut, "/api/v1/sources/cam-1/effect",
		`{"similarity":0.4}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	effects.err = domain.ErrSourceNotFound
	w = doRequest(router, http.MethodPut, "/api/v1/sources/ghost/effect",
		`{"kind":"blur","blur_radius":8}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClipOverlayEndpoints(t *testing.T) {
	studio := &fakeStudio{}
	router := newTestRouter(studio, &fakeOverlays{})

	w := doRequest(router, http.MethodPost, "/api/v1/overlays/clip", `{"source_id":"deck"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.SourceID("deck"), studio.clipSource)

	w = doRequest(router, http.MethodPost, "/api/v1/overlays/clip", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	studio.clipOverlayErr = domain.ErrSourceNotFound
	w = doRequest(router, http.MethodPost, "/api/v1/overlays/clip", `{"source_id":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	studio.clipOverlayErr = nil

	w = doRequest(router, http.MethodDelete, "/api/v1/overlays/clip", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, studio.clipSource)
}

func TestStatusEndpoint(t *testing.T) {
	router := newTestRouter(&fakeStudio{}, &fakeOverlays{})

	w := doRequest(router, http.MethodGet, "/api/v1/status", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status struct {
			Live        bool   `json:"Live"`
			BroadcastID string `json:"BroadcastID"`
		} `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Status.Live)
	assert.Equal(t, "bc-1", body.Status.BroadcastID)
}
