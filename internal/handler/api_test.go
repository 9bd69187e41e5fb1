package handler_test

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codevault/codevault/internal/executor"
	"github.com/codevault/codevault/internal/handler"
	"github.com/codevault/codevault/internal/model"
)

func TestAPI_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(http.MethodGet, "/api/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "unauthorized", decode[handler.ErrorResponse](t, rr).Error)

	rr = api.do(http.MethodGet, "/api/projects", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAPI_ProjectCRUD(t *testing.T) {
	api := newTestAPI(t)
	token := api.user("ada")

	rr := api.do(http.MethodPost, "/api/projects", token, map[string]string{"name": "Algo"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	project := decode[model.Project](t, rr)
	assert.Equal(t, model.DefaultProjectColor, project.Color)

	rr = api.do(http.MethodPatch, "/api/projects/"+project.ID, token, `{"description":"sorting"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"success":true}`, rr.Body.String())

	rr = api.do(http.MethodGet, "/api/projects/"+project.ID, token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[model.Project](t, rr)
	assert.Equal(t, "Algo", got.Name)
	assert.Equal(t, "sorting", got.Description)

	rr = api.do(http.MethodGet, "/api/projects", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]model.Project](t, rr), 1)

	rr = api.do(http.MethodDelete, "/api/projects/"+project.ID, token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = api.do(http.MethodGet, "/api/projects/"+project.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", decode[handler.ErrorResponse](t, rr).Error)
}

func TestAPI_InputShapes(t *testing.T) {
	api := newTestAPI(t)
	token := api.user("ada")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"malformed JSON", http.MethodPost, "/api/projects", `{"name":`},
		{"unknown field", http.MethodPost, "/api/projects", `{"name":"x","owner":"y"}`},
		{"trailing data", http.MethodPost, "/api/projects", `{"name":"x"} {"name":"y"}`},
		{"empty body", http.MethodPost, "/api/projects", nil},
		{"bad id", http.MethodGet, "/api/snippets/123", nil},
		{"bad project filter", http.MethodGet, "/api/snippets?projectId=nope", nil},
		{"bad line", http.MethodPut, "/api/snippets/cn2qbtc2l2p0l3f3ujq0/notes/abc", `{"content":"x"}`},
		{"zero line", http.MethodPut, "/api/snippets/cn2qbtc2l2p0l3f3ujq0/notes/0", `{"content":"x"}`},
		{"line past int32", http.MethodPut, "/api/snippets/cn2qbtc2l2p0l3f3ujq0/notes/2147483648", `{"content":"x"}`},
		{"null favorite", http.MethodPatch, "/api/snippets/cn2qbtc2l2p0l3f3ujq0", `{"isFavorite":null}`},
		{"null description", http.MethodPatch, "/api/projects/cn2qbtc2l2p0l3f3ujq0", `{"description":null}`},
		{"empty search", http.MethodGet, "/api/snippets/search?q=", nil},
		{"bad snippetId in chat", http.MethodPost, "/api/ai/chat", `{"message":"hi","snippetId":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.do(tt.method, tt.path, token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Equal(t, "validation_error", decode[handler.ErrorResponse](t, rr).Error)
		})
	}
}

func TestAPI_OwnershipIsolation(t *testing.T) {
	api := newTestAPI(t)
	ada := api.user("ada")
	bob := api.user("bob")

	rr := api.do(http.MethodPost, "/api/snippets", ada, map[string]string{"title": "Fib", "code": "function fib(n){}"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	snippet := decode[model.Snippet](t, rr)

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/snippets/"+snippet.ID, bob, nil).Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodPatch, "/api/snippets/"+snippet.ID, bob, `{"title":"pwned"}`).Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodDelete, "/api/snippets/"+snippet.ID, bob, nil).Code)
	assert.Empty(t, decode[[]model.Snippet](t, api.do(http.MethodGet, "/api/snippets", bob, nil)))

	rr = api.do(http.MethodGet, "/api/snippets/"+snippet.ID, ada, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Fib", decode[model.Snippet](t, rr).Title)

	// A note on somebody else's snippet is a 404, not a new row.
	rr = api.do(http.MethodPut, "/api/snippets/"+snippet.ID+"/notes/1", bob, `{"content":"mine now"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPI_SnippetLifecycle(t *testing.T) {
	api := newTestAPI(t)
	token := api.user("ada")

	rr := api.do(http.MethodPost, "/api/projects", token, map[string]string{"name": "Algo"})
	require.Equal(t, http.StatusCreated, rr.Code)
	project := decode[model.Project](t, rr)

	rr = api.do(http.MethodPost, "/api/snippets", token, map[string]any{
		"title": "Fib", "code": "function fib(n){}", "projectId": project.ID,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	snippet := decode[model.Snippet](t, rr)
	assert.Equal(t, model.DefaultLanguage, snippet.Language)

	// Note upsert: created, then updated in place.
	rr = api.do(http.MethodPut, "/api/snippets/"+snippet.ID+"/notes/1", token, `{"content":"entry"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	first := decode[model.UpsertResult](t, rr)
	assert.Equal(t, model.UpsertCreated, first.Outcome)

	rr = api.do(http.MethodPut, "/api/snippets/"+snippet.ID+"/notes/1", token, `{"content":"entry point"}`)
	second := decode[model.UpsertResult](t, rr)
	assert.Equal(t, model.UpsertUpdated, second.Outcome)
	assert.Equal(t, first.ID, second.ID)

	notes := decode[[]model.LineNote](t, api.do(http.MethodGet, "/api/snippets/"+snippet.ID+"/notes", token, nil))
	require.Len(t, notes, 1)
	assert.Equal(t, "entry point", notes[0].Content)

	// Partial update touches only isFavorite.
	rr = api.do(http.MethodPatch, "/api/snippets/"+snippet.ID, token, `{"isFavorite":true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[model.Snippet](t, api.do(http.MethodGet, "/api/snippets/"+snippet.ID, token, nil))
	assert.True(t, got.IsFavorite)
	assert.Equal(t, "function fib(n){}", got.Code)
	require.NotNil(t, got.ProjectID)

	found := decode[[]model.Snippet](t, api.do(http.MethodGet, "/api/snippets/search?q=FIB", token, nil))
	require.Len(t, found, 1)

	rr = api.do(http.MethodPost, "/api/snippets/"+snippet.ID+"/run", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "function fib(n){}", decode[executor.Result](t, rr).Stdout)

	// Moving out of the project with an explicit null.
	rr = api.do(http.MethodPatch, "/api/snippets/"+snippet.ID, token, `{"projectId":null}`)
	require.Equal(t, http.StatusOK, rr.Code)
	got = decode[model.Snippet](t, api.do(http.MethodGet, "/api/snippets/"+snippet.ID, token, nil))
	assert.Nil(t, got.ProjectID)

	rr = api.do(http.MethodDelete, "/api/snippets/"+snippet.ID, token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/snippets/"+snippet.ID, token, nil).Code)
	assert.Empty(t, decode[[]model.LineNote](t, api.do(http.MethodGet, "/api/snippets/"+snippet.ID+"/notes", token, nil)))
}

func TestAPI_RunUnsupportedLanguage(t *testing.T) {
	api := newTestAPI(t)
	token := api.user("ada")

	rr := api.do(http.MethodPost, "/api/snippets", token, map[string]string{"title": "Hi", "language": "cobol"})
	require.Equal(t, http.StatusCreated, rr.Code)
	snippet := decode[model.Snippet](t, rr)

	rr = api.do(http.MethodPost, "/api/snippets/"+snippet.ID+"/run", token, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_Files(t *testing.T) {
	api := newTestAPI(t)
	token := api.user("ada")

	payload := base64.StdEncoding.EncodeToString([]byte("hello"))
	rr := api.do(http.MethodPost, "/api/files", token, map[string]any{
		"filename": "hello.txt", "mimeType": "text/plain", "fileSize": 5, "base64Data": payload,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	file := decode[model.FileRecord](t, rr)
	assert.Equal(t, int64(5), file.FileSize)

	files := decode[[]model.FileRecord](t, api.do(http.MethodGet, "/api/files", token, nil))
	require.Len(t, files, 1)

	// Over the 1 KiB cap configured for tests.
	big := base64.StdEncoding.EncodeToString(make([]byte, 2048))
	rr = api.do(http.MethodPost, "/api/files", token, map[string]any{"filename": "big.bin", "base64Data": big})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(http.MethodDelete, "/api/files/"+file.ID, token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]model.FileRecord](t, api.do(http.MethodGet, "/api/files", token, nil)))
}

func TestAPI_Chat(t *testing.T) {
	api := newTestAPI(t)
	token := api.user("ada")

	rr := api.do(http.MethodPost, "/api/ai/chat", token, map[string]string{"message": "review this", "context": "x := 1"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"content":"Looks fine."}`, rr.Body.String())

	history := decode[[]model.ChatMessage](t, api.do(http.MethodGet, "/api/ai/history", token, nil))
	require.Len(t, history, 2)
	assert.Equal(t, model.ChatRoleUser, history[0].Role)
	assert.Equal(t, model.ChatRoleAssistant, history[1].Role)

	rr = api.do(http.MethodDelete, "/api/ai/history", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]model.ChatMessage](t, api.do(http.MethodGet, "/api/ai/history", token, nil)))

	rr = api.do(http.MethodPost, "/api/ai/chat", token, map[string]string{"message": ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_Health(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	require.NoError(t, api.db.Close())
	rr = api.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "store_unavailable", decode[handler.ErrorResponse](t, rr).Error)
}
