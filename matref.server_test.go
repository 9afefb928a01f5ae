package matref

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// serveRequest runs one request through handler and decodes the envelope
func serveRequest(t *testing.T, handler http.Handler, method, path, body string, header http.Header) (int, responseEnvelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, ContentTypeJSON, rec.Header().Get(HeaderContentType))
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func newTestServer(t *testing.T, config ServerConfig) (*Server, *Service) {
	t.Helper()
	service := newTestService(t)
	server, err := NewServer(service, config, nil)
	require.NoError(t, err)
	return server, service
}

func TestNewServer(t *testing.T) {
	t.Run("nil service", func(t *testing.T) {
		_, err := NewServer(nil, ServerConfig{}, nil)
		require.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		server, _ := newTestServer(t, ServerConfig{})
		assert.Equal(t, DefaultServerAddr, server.config.Addr)
		assert.Equal(t, DefaultPathPrefix, server.config.PathPrefix)
	})

	t.Run("prefix normalized", func(t *testing.T) {
		server, _ := newTestServer(t, ServerConfig{PathPrefix: "v1/"})
		assert.Equal(t, "/v1", server.config.PathPrefix)

		code, env := serveRequest(t, server.Handler(), http.MethodGet, "/v1/health", "", nil)
		assert.Equal(t, http.StatusOK, code)
		require.NotNil(t, env.Success)
		assert.True(t, *env.Success)
	})
}

func TestServer_CreateMaterial(t *testing.T) {
	server, service := newTestServer(t, ServerConfig{})
	handler := server.Handler()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "valid",
			body:       `{"name":"brand","type":"text","content":{"text":"Acme"},"tags":["a","a","b"]}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "malformed json",
			body:       `{"name":`,
			wantStatus: http.StatusBadRequest,
			wantError:  ErrMsgInvalidRequestBody,
		},
		{
			name:       "missing name",
			body:       `{"type":"text","content":{"text":"x"}}`,
			wantStatus: http.StatusBadRequest,
			wantError:  ErrMsgMissingField,
		},
		{
			name:       "missing type",
			body:       `{"name":"n","content":{"text":"x"}}`,
			wantStatus: http.StatusBadRequest,
			wantError:  ErrMsgMissingField,
		},
		{
			name:       "null content",
			body:       `{"name":"n","type":"text","content":null}`,
			wantStatus: http.StatusBadRequest,
			wantError:  ErrMsgMissingField,
		},
		{
			name:       "unknown type",
			body:       `{"name":"n","type":"video","content":{}}`,
			wantStatus: http.StatusBadRequest,
			wantError:  ErrMsgInvalidMaterialType,
		},
		{
			name:       "undecodable content",
			body:       `{"name":"n","type":"image","content":"not an object"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  ErrMsgDecodeContent,
		},
		{
			name:       "invalid content",
			body:       `{"name":"n","type":"image","content":{"description":"no url"}}`,
			wantStatus: http.StatusBadRequest,
			wantError:  ErrMsgMissingImageURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := serveRequest(t, handler, http.MethodPost, DefaultPathPrefix+RouteMaterials, tt.body, nil)
			assert.Equal(t, tt.wantStatus, code)
			if tt.wantError != "" {
				require.NotNil(t, env.Success)
				assert.False(t, *env.Success)
				assert.Contains(t, env.Error, tt.wantError)
				return
			}
			require.NotNil(t, env.Success)
			assert.True(t, *env.Success)
			assert.Equal(t, MsgMaterialCreated, env.Message)

			var created createdBody
			require.NoError(t, json.Unmarshal(env.Data, &created))
			m, err := service.GetMaterial(context.Background(), created.MaterialID)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, m.Tags)
		})
	}
}

func TestServer_MaterialRoutes(t *testing.T) {
	ctx := context.Background()
	server, service := newTestServer(t, ServerConfig{})
	handler := server.Handler()
	prefix := DefaultPathPrefix

	id, err := service.CreateMaterial(ctx, &Material{Name: "Brand", Type: MaterialTypeText, Content: TextContent{Text: "Acme"}, Tags: []string{"brand"}})
	require.NoError(t, err)
	_, err = service.CreateMaterial(ctx, &Material{Name: "Logo", Type: MaterialTypeImage, Content: ImageContent{URL: "u"}, Tags: []string{"visual"}})
	require.NoError(t, err)

	t.Run("get", func(t *testing.T) {
		code, env := serveRequest(t, handler, http.MethodGet, prefix+"/materials/"+id, "", nil)
		require.Equal(t, http.StatusOK, code)

		var m Material
		require.NoError(t, json.Unmarshal(env.Data, &m))
		assert.Equal(t, TextContent{Text: "Acme"}, m.Content)
	})

	t.Run("get missing", func(t *testing.T) {
		code, env := serveRequest(t, handler, http.MethodGet, prefix+"/materials/mat_missing", "", nil)
		assert.Equal(t, http.StatusNotFound, code)
		assert.Contains(t, env.Error, ErrMsgMaterialNotFound)
	})

	t.Run("list with filters", func(t *testing.T) {
		code, env := serveRequest(t, handler, http.MethodGet, prefix+"/materials?type=image&page_size=1", "", nil)
		require.Equal(t, http.StatusOK, code)

		var page MaterialPage
		require.NoError(t, json.Unmarshal(env.Data, &page))
		assert.Equal(t, []string{"Logo"}, materialNames(page.Items))
		assert.Equal(t, 1, page.Pagination.Total)

		code, env = serveRequest(t, handler, http.MethodGet, prefix+"/materials?tags=brand,%20visual", "", nil)
		require.Equal(t, http.StatusOK, code)
		require.NoError(t, json.Unmarshal(env.Data, &page))
		assert.Len(t, page.Items, 2)
	})

	t.Run("list with bad type", func(t *testing.T) {
		code, _ := serveRequest(t, handler, http.MethodGet, prefix+"/materials?type=video", "", nil)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("keyword search", func(t *testing.T) {
		code, env := serveRequest(t, handler, http.MethodGet, prefix+"/materials?keyword=bra", "", nil)
		require.Equal(t, http.StatusOK, code)

		var page MaterialPage
		require.NoError(t, json.Unmarshal(env.Data, &page))
		assert.Equal(t, []string{"Brand"}, materialNames(page.Items))
	})

	t.Run("tags route is not an id", func(t *testing.T) {
		code, env := serveRequest(t, handler, http.MethodGet, prefix+"/materials/tags", "", nil)
		require.Equal(t, http.StatusOK, code)

		var tags []string
		require.NoError(t, json.Unmarshal(env.Data, &tags))
		assert.Equal(t, []string{"brand", "visual"}, tags)
	})

	t.Run("batch", func(t *testing.T) {
		code, env := serveRequest(t, handler, http.MethodPost, prefix+"/materials/batch", `{"material_ids":["`+id+`","mat_missing"]}`, nil)
		require.Equal(t, http.StatusOK, code)

		var materials []*Material
		require.NoError(t, json.Unmarshal(env.Data, &materials))
		assert.Equal(t, []string{"Brand"}, materialNames(materials))

		code, _ = serveRequest(t, handler, http.MethodPost, prefix+"/materials/batch", `{"material_ids":[]}`, nil)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("process references", func(t *testing.T) {
		code, env := serveRequest(t, handler, http.MethodPost, prefix+RouteProcessReferences,
			`{"material_ids":["`+id+`"],"base_prompt":"Hi @[b](`+id+`)"}`, nil)
		require.Equal(t, http.StatusOK, code)

		var data ResolutionData
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, "Hi [material: b]\n\n[reference info: Brand]\nAcme", data.EnhancedPrompt)
		assert.Equal(t, map[string]any{}, data.StyleParams)
	})

	t.Run("update", func(t *testing.T) {
		code, env := serveRequest(t, handler, http.MethodPut, prefix+"/materials/"+id, `{"content":{"text":"Acme v2"},"name":"Brand v2"}`, nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, MsgMaterialUpdated, env.Message)

		m, err := service.GetMaterial(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Brand v2", m.Name)
		assert.Equal(t, TextContent{Text: "Acme v2"}, m.Content)

		code, _ = serveRequest(t, handler, http.MethodPut, prefix+"/materials/mat_missing", `{"name":"x"}`, nil)
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("delete", func(t *testing.T) {
		code, env := serveRequest(t, handler, http.MethodDelete, prefix+"/materials/"+id, "", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, MsgMaterialDeleted, env.Message)

		code, _ = serveRequest(t, handler, http.MethodDelete, prefix+"/materials/"+id, "", nil)
		assert.Equal(t, http.StatusNotFound, code)
	})
}

func TestServer_APIKey(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{APIKey: "k1"})
	handler := server.Handler()

	code, env := serveRequest(t, handler, http.MethodGet, "/api/materials", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, ErrMsgUnauthorized, env.Error)

	code, _ = serveRequest(t, handler, http.MethodGet, "/api/materials", "", http.Header{HeaderAPIKey: {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = serveRequest(t, handler, http.MethodGet, "/api/materials", "", http.Header{HeaderAPIKey: {"k1"}})
	assert.Equal(t, http.StatusOK, code)

	code, _ = serveRequest(t, handler, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestServer_RequestBodyLimit(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{MaxBodyBytes: 256})
	handler := server.Handler()

	small := `{"material_ids":["mat_1"]}`
	large := `{"material_ids":["` + strings.Repeat("m", 1024) + `"]}`

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"small lookup", RouteProcessReferences, small, http.StatusOK, ""},
		{"large lookup", RouteProcessReferences, large, http.StatusRequestEntityTooLarge, ErrMsgRequestTooLarge},
		{"large batch", RouteMaterialsBatch, large, http.StatusRequestEntityTooLarge, ErrMsgRequestTooLarge},
		{"malformed", RouteProcessReferences, `{"material_ids":`, http.StatusBadRequest, ErrMsgInvalidRequestBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := serveRequest(t, handler, http.MethodPost, DefaultPathPrefix+tt.path, tt.body, nil)
			assert.Equal(t, tt.wantStatus, code)
			assert.Equal(t, tt.wantError, env.Error)
		})
	}

	t.Run("default limit", func(t *testing.T) {
		server, _ := newTestServer(t, ServerConfig{})
		assert.EqualValues(t, DefaultMaxBodyBytes, server.config.MaxBodyBytes)
	})
}

func TestServer_InternalErrorsAreLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	storage := NewMemoryStorage()
	service, err := NewService(storage, nil)
	require.NoError(t, err)
	server, err := NewServer(service, ServerConfig{}, zap.New(core))
	require.NoError(t, err)
	require.NoError(t, storage.Close())

	code, env := serveRequest(t, server.Handler(), http.MethodGet, "/api/materials/tags", "", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, ErrMsgInternal, env.Error)

	failures := logs.FilterMessage(LogMsgServerError).All()
	require.Len(t, failures, 1)
	assert.Equal(t, zapcore.ErrorLevel, failures[0].Level)

	requests := logs.FilterMessage(LogMsgServerRequest).All()
	require.Len(t, requests, 1)
	assert.EqualValues(t, http.StatusInternalServerError, requests[0].ContextMap()[LogFieldStatus])
}

func TestServer_ListenAndServe(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{Addr: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.ListenAndServe(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestSplitTags(t *testing.T) {
	assert.Nil(t, splitTags(""))
	assert.Equal(t, []string{"a", "b"}, splitTags(" a, b ,a,,"))
}

func TestQueryInt(t *testing.T) {
	assert.Equal(t, 3, queryInt("3", 1))
	assert.Equal(t, 1, queryInt("x", 1))
	assert.Equal(t, 7, queryInt("", 7))
}
