package imagegen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GeorgeStrakhov/briefboarder/pkg/cache"
	"github.com/GeorgeStrakhov/briefboarder/pkg/errors"
)

func TestClientGenerate(t *testing.T) {
	t.Run("posts prompt and decodes images", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/images/generate", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var req GenerateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "a red bicycle", req.Prompt)

			json.NewEncoder(w).Encode(Response{
				Images: []Image{{URL: "https://cdn.example.com/abc.png", Width: 1024, Height: 1024}},
				Model:  "img-large",
			})
		}))
		defer server.Close()

		client, err := NewClient(server.URL, "test-key")
		require.NoError(t, err)

		resp, err := client.Generate(context.Background(), &GenerateRequest{Prompt: "a red bicycle", Size: "1024x1024"})
		require.NoError(t, err)
		require.Len(t, resp.Images, 1)
		assert.Equal(t, "https://cdn.example.com/abc.png", resp.Images[0].URL)
		assert.Equal(t, "img-large", resp.Model)
	})

	t.Run("empty prompt rejected before any request", func(t *testing.T) {
		client, err := NewClient("http://unused.invalid", "")
		require.NoError(t, err)

		_, err = client.Generate(context.Background(), &GenerateRequest{})
		require.Error(t, err)
		assert.Equal(t, errors.InvalidInput, errors.CodeOf(err))
	})

	t.Run("provider error surfaces as unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client, err := NewClient(server.URL, "")
		require.NoError(t, err)

		_, err = client.Generate(context.Background(), &GenerateRequest{Prompt: "x"})
		require.Error(t, err)
		assert.Equal(t, errors.ProviderUnavailable, errors.CodeOf(err))
	})

	t.Run("identical requests served from cache", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(&calls, 1)
			json.NewEncoder(w).Encode(Response{Images: []Image{{URL: "https://cdn.example.com/1.png"}}})
		}))
		defer server.Close()

		store := cache.NewMemoryCache()
		defer store.Close()

		client, err := NewClient(server.URL, "", WithCache(store, time.Minute))
		require.NoError(t, err)

		req := &GenerateRequest{Prompt: "a red bicycle", Size: "512x512"}
		first, err := client.Generate(context.Background(), req)
		require.NoError(t, err)
		second, err := client.Generate(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

		// A different prompt misses the cache
		_, err = client.Generate(context.Background(), &GenerateRequest{Prompt: "a blue bicycle", Size: "512x512"})
		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})
}

func TestClientEdit(t *testing.T) {
	t.Run("posts image URL and prompt", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/images/edit", r.URL.Path)

			var req EditRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "https://cdn.example.com/src.png", req.ImageURL)
			assert.Equal(t, "make it night", req.Prompt)

			json.NewEncoder(w).Encode(Response{Images: []Image{{URL: "https://cdn.example.com/edited.png"}}})
		}))
		defer server.Close()

		client, err := NewClient(server.URL, "")
		require.NoError(t, err)

		resp, err := client.Edit(context.Background(), &EditRequest{
			ImageURL: "https://cdn.example.com/src.png",
			Prompt:   "make it night",
		})
		require.NoError(t, err)
		require.Len(t, resp.Images, 1)
		assert.Equal(t, "https://cdn.example.com/edited.png", resp.Images[0].URL)
	})

	t.Run("missing image URL rejected", func(t *testing.T) {
		client, err := NewClient("http://unused.invalid", "")
		require.NoError(t, err)

		_, err = client.Edit(context.Background(), &EditRequest{Prompt: "make it night"})
		require.Error(t, err)
		assert.Equal(t, errors.InvalidInput, errors.CodeOf(err))
	})
}

func TestNewClient(t *testing.T) {
	t.Run("base URL required", func(t *testing.T) {
		_, err := NewClient("", "key")
		require.Error(t, err)
		assert.Equal(t, errors.InvalidInput, errors.CodeOf(err))
	})
}
