package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GeorgeStrakhov/briefboarder/internal/testutil"
	"github.com/GeorgeStrakhov/briefboarder/pkg/approach"
	"github.com/GeorgeStrakhov/briefboarder/pkg/briefs"
	"github.com/GeorgeStrakhov/briefboarder/pkg/collab"
	"github.com/GeorgeStrakhov/briefboarder/pkg/core"
	"github.com/GeorgeStrakhov/briefboarder/pkg/errors"
	"github.com/GeorgeStrakhov/briefboarder/pkg/imagegen"
	"github.com/GeorgeStrakhov/briefboarder/pkg/storage"
)

type fakeImages struct {
	resp *imagegen.Response
	err  error
	last interface{}
}

func (f *fakeImages) Generate(_ context.Context, req *imagegen.GenerateRequest) (*imagegen.Response, error) {
	f.last = req
	if req.Prompt == "" {
		return nil, errors.New(errors.InvalidInput, "prompt required for image generation")
	}
	return f.resp, f.err
}

func (f *fakeImages) Edit(_ context.Context, req *imagegen.EditRequest) (*imagegen.Response, error) {
	f.last = req
	if req.Prompt == "" || req.ImageURL == "" {
		return nil, errors.New(errors.InvalidInput, "prompt and image URL required for image edit")
	}
	return f.resp, f.err
}

type testEnv struct {
	server *Server
	store  *storage.SQLiteStore
	llm    *testutil.MockLLM
	images *fakeImages
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	issuer, err := collab.NewIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)

	llm := new(testutil.MockLLM)
	images := &fakeImages{resp: &imagegen.Response{Images: []imagegen.Image{{URL: "https://cdn.example.com/x.png"}}}}

	srv := New(Config{Port: 0}, store, llm, images, issuer, nil)
	return &testEnv{server: srv, store: store, llm: llm, images: images}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createBrief(t *testing.T, name, description string) *briefs.Brief {
	t.Helper()
	b := briefs.New(name, description, time.Now())
	require.NoError(t, e.store.CreateBrief(context.Background(), b))
	return b
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, rec)["status"])
}

func TestCreateBrief(t *testing.T) {
	t.Run("creates with generated identifiers", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/api/briefs", map[string]string{
			"name":        "Summer campaign",
			"description": "Beach lifestyle",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		b := decodeBody[briefs.Brief](t, rec)
		assert.NoError(t, briefs.ValidateID(b.ID))
		assert.NoError(t, briefs.ValidateSlug(b.Slug))
		assert.Equal(t, "Summer campaign", b.Name)
		assert.NotNil(t, b.Canvas)

		// The response also carries the pretty share URL fragment
		payload := decodeBody[map[string]interface{}](t, rec)
		assert.Equal(t, "summer-campaign-"+b.Slug, payload["shareSlug"])
	})

	t.Run("missing name is a 400", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/api/briefs", map[string]string{"description": "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		env := newTestEnv(t)
		req := httptest.NewRequest(http.MethodPost, "/api/briefs", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetBrief(t *testing.T) {
	t.Run("by id", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBrief(t, "Trail shoes", "")

		rec := env.do(t, http.MethodGet, "/api/briefs/"+b.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, b.ID, decodeBody[briefs.Brief](t, rec).ID)
	})

	t.Run("by slug", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBrief(t, "Trail shoes", "")

		rec := env.do(t, http.MethodGet, "/api/briefs/slug/"+b.Slug, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, b.ID, decodeBody[briefs.Brief](t, rec).ID)
	})

	t.Run("by pretty share slug", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBrief(t, "Trail shoes", "")

		rec := env.do(t, http.MethodGet, "/api/briefs/slug/"+b.ShareSlug(), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, b.ID, decodeBody[briefs.Brief](t, rec).ID)
	})

	t.Run("malformed share slug is a 400", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodGet, "/api/briefs/slug/not-a-slug", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed id is a 400", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodGet, "/api/briefs/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing brief is a 404", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodGet, "/api/briefs/a3bb189e-8bf9-4888-9912-ace4e6543002", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListBriefs(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/briefs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]briefs.Brief](t, rec))

	env.createBrief(t, "First", "")
	env.createBrief(t, "Second", "")

	rec = env.do(t, http.MethodGet, "/api/briefs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]briefs.Brief](t, rec), 2)
}

func TestUpdateBrief(t *testing.T) {
	t.Run("partial update leaves other fields alone", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBrief(t, "Trail shoes", "Morning runners")

		rec := env.do(t, http.MethodPatch, "/api/briefs/"+b.ID, map[string]interface{}{
			"description": "Evening runners",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		updated := decodeBody[briefs.Brief](t, rec)
		assert.Equal(t, "Trail shoes", updated.Name)
		assert.Equal(t, "Evening runners", updated.Description)
	})

	t.Run("canvas replaced wholesale", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBrief(t, "Trail shoes", "")

		rec := env.do(t, http.MethodPatch, "/api/briefs/"+b.ID, map[string]interface{}{
			"canvas": []map[string]interface{}{
				{"id": "p1", "url": "https://cdn.example.com/1.png", "x": 10, "y": 20},
			},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		updated := decodeBody[briefs.Brief](t, rec)
		require.Len(t, updated.Canvas, 1)
		assert.Equal(t, "p1", updated.Canvas[0].ID)
	})

	t.Run("empty update is a 400", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBrief(t, "Trail shoes", "")

		rec := env.do(t, http.MethodPatch, "/api/briefs/"+b.ID, map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing brief is a 404", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPatch, "/api/briefs/a3bb189e-8bf9-4888-9912-ace4e6543002",
			map[string]interface{}{"name": "x"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDeleteBrief(t *testing.T) {
	env := newTestEnv(t)
	b := env.createBrief(t, "Trail shoes", "")

	rec := env.do(t, http.MethodDelete, "/api/briefs/"+b.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/briefs/"+b.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnhanceBrief(t *testing.T) {
	t.Run("returns rewritten description without persisting", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBrief(t, "Trail shoes", "shoes for runners")

		env.llm.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
			return bytes.Contains([]byte(prompt), []byte("shoes for runners"))
		}), mock.Anything).Return(&core.LLMResponse{
			Content: "Performance trail shoes for dedicated morning runners.",
			Usage:   &core.TokenInfo{TotalTokens: 30},
		}, nil)

		rec := env.do(t, http.MethodPost, "/api/briefs/"+b.ID+"/enhance", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decodeBody[map[string]interface{}](t, rec)
		assert.Equal(t, "Performance trail shoes for dedicated morning runners.", resp["description"])

		stored, err := env.store.GetBrief(context.Background(), b.ID)
		require.NoError(t, err)
		assert.Equal(t, "shoes for runners", stored.Description)
	})

	t.Run("no description is a 400", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBrief(t, "Trail shoes", "")

		rec := env.do(t, http.MethodPost, "/api/briefs/"+b.ID+"/enhance", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing brief is a 404", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/api/briefs/a3bb189e-8bf9-4888-9912-ace4e6543002/enhance", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("LLM failure is a 500", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBrief(t, "Trail shoes", "shoes")

		env.llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New(errors.LLMGenerationFailed, "overloaded"))

		rec := env.do(t, http.MethodPost, "/api/briefs/"+b.ID+"/enhance", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal server error", decodeBody[map[string]string](t, rec)["error"])
	})
}

func TestGenerateImage(t *testing.T) {
	t.Run("passes through to the provider", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodPost, "/api/images/generate", map[string]string{
			"prompt": "a red bicycle",
			"size":   "1024x1024",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decodeBody[imagegen.Response](t, rec)
		require.Len(t, resp.Images, 1)
		assert.Equal(t, "https://cdn.example.com/x.png", resp.Images[0].URL)

		req, ok := env.images.last.(*imagegen.GenerateRequest)
		require.True(t, ok)
		assert.Equal(t, "a red bicycle", req.Prompt)
	})

	t.Run("missing prompt is a 400", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/api/images/generate", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("provider outage is a 502", func(t *testing.T) {
		env := newTestEnv(t)
		env.images.err = errors.New(errors.ProviderUnavailable, "image provider unreachable")
		env.images.resp = nil

		rec := env.do(t, http.MethodPost, "/api/images/generate", map[string]string{"prompt": "x"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestEditImage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/images/edit", map[string]string{
		"image_url": "https://cdn.example.com/src.png",
		"prompt":    "make it night",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	req, ok := env.images.last.(*imagegen.EditRequest)
	require.True(t, ok)
	assert.Equal(t, "make it night", req.Prompt)
}

func TestListApproaches(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/approaches", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := decodeBody[[]map[string]string](t, rec)
	names := make([]string, 0, len(list))
	for _, item := range list {
		names = append(names, item["name"])
		assert.NotEmpty(t, item["description"])
	}
	assert.Equal(t, []string{"campaign", "direct", "variants"}, names)
}

func TestGenerateAd(t *testing.T) {
	t.Run("executes the named approach with brief settings", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBrief(t, "Trail shoes", "Morning runners")

		env.llm.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
			return bytes.Contains([]byte(prompt), []byte("Trail shoes")) &&
				bytes.Contains([]byte(prompt), []byte("write a tagline"))
		}), mock.Anything).Return(&core.LLMResponse{
			Content: "Own the dawn.",
			Usage:   &core.TokenInfo{TotalTokens: 12},
		}, nil)

		rec := env.do(t, http.MethodPost, "/api/ads/generate", map[string]interface{}{
			"briefId":  b.ID,
			"approach": "direct",
			"prompt":   "write a tagline",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		result := decodeBody[approach.Result](t, rec)
		assert.Equal(t, "direct", result.Approach)
		assert.Equal(t, "Own the dawn.", result.Output)
		env.llm.AssertExpectations(t)
	})

	t.Run("approach defaults to direct", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBrief(t, "Trail shoes", "")

		env.llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return("tagline", nil)

		rec := env.do(t, http.MethodPost, "/api/ads/generate", map[string]interface{}{
			"briefId": b.ID,
			"prompt":  "write a tagline",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "direct", decodeBody[approach.Result](t, rec).Approach)
	})

	t.Run("unknown approach is a 404", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBrief(t, "Trail shoes", "")

		rec := env.do(t, http.MethodPost, "/api/ads/generate", map[string]interface{}{
			"briefId":  b.ID,
			"approach": "moonshot",
			"prompt":   "go",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing prompt is a 400", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBrief(t, "Trail shoes", "")

		rec := env.do(t, http.MethodPost, "/api/ads/generate", map[string]interface{}{
			"briefId": b.ID,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing brief is a 404", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/api/ads/generate", map[string]interface{}{
			"briefId": "a3bb189e-8bf9-4888-9912-ace4e6543002",
			"prompt":  "go",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("selected images flow to the approach", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBrief(t, "Trail shoes", "")

		env.llm.On("GenerateWithContent", mock.Anything, mock.MatchedBy(func(content []core.ContentBlock) bool {
			return len(content) == 2 && content[1].Type == core.BlockTypeImage
		}), mock.Anything).Return("grounded", nil)

		rec := env.do(t, http.MethodPost, "/api/ads/generate", map[string]interface{}{
			"briefId": b.ID,
			"prompt":  "describe a direction",
			"images": []map[string]string{
				{"data": "aGVsbG8=", "mimeType": "image/png"},
			},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		env.llm.AssertExpectations(t)
	})
}

func TestRequestLogging(t *testing.T) {
	capture := testutil.CaptureLogs(t)
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var requestID interface{}
	var found bool
	for _, e := range capture.Entries() {
		if bytes.Contains([]byte(e.Message), []byte("GET /health")) {
			requestID = e.Fields["request_id"]
			found = true
		}
	}
	require.True(t, found, "expected an access log line")
	assert.NotEmpty(t, requestID)
}

func TestCollabSession(t *testing.T) {
	t.Run("issues a verifiable token", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBrief(t, "Trail shoes", "")

		rec := env.do(t, http.MethodPost, "/api/collab/session", map[string]string{
			"userName": "ana",
			"briefId":  b.ID,
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		session := decodeBody[collab.Session](t, rec)
		assert.NotEmpty(t, session.Token)
		assert.Equal(t, "ana", session.UserName)
		assert.Equal(t, b.ID, session.BriefID)
	})

	t.Run("missing user name is a 400", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.createBrief(t, "Trail shoes", "")

		rec := env.do(t, http.MethodPost, "/api/collab/session", map[string]string{"briefId": b.ID})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing brief is a 404", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/api/collab/session", map[string]string{
			"userName": "ana",
			"briefId":  "a3bb189e-8bf9-4888-9912-ace4e6543002",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
