package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/codevault/codevault/internal/auth"
	"github.com/codevault/codevault/internal/blob"
	"github.com/codevault/codevault/internal/executor"
	"github.com/codevault/codevault/internal/handler"
	"github.com/codevault/codevault/internal/llm"
	"github.com/codevault/codevault/internal/model"
	"github.com/codevault/codevault/internal/repository/sqlstore"
	"github.com/codevault/codevault/internal/service"
)

// stubCompleter answers every prompt with the same reply.
type stubCompleter struct{ reply string }

func (s stubCompleter) Complete(context.Context, []llm.Message) (string, error) {
	return s.reply, nil
}

// stubExecutor "runs" javascript by echoing the code to stdout.
type stubExecutor struct{}

func (stubExecutor) Execute(_ context.Context, req executor.Request) (*executor.Result, error) {
	if req.Language != "javascript" {
		return nil, executor.ErrUnsupportedLanguage
	}
	return &executor.Result{Stdout: req.Code, ExitCode: 0}, nil
}

func (stubExecutor) Languages() []string { return []string{"javascript"} }

// testAPI is the full handler stack over a real SQLite file.
type testAPI struct {
	t      *testing.T
	db     *sqlstore.DB
	tokens *auth.TokenService
	router http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlstore.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789")
	require.NoError(t, err)

	authSvc := service.NewAuthService(db, tokens, auth.NewPasswordServiceWithCost(bcrypt.MinCost), "", logger)
	projects := handler.NewProjectHandler(service.NewProjectService(db, logger))
	snippets := handler.NewSnippetHandler(service.NewSnippetService(db, stubExecutor{}, logger))
	notes := handler.NewNoteHandler(service.NewNoteService(db, logger))
	files := handler.NewFileHandler(service.NewFileService(db, db, blob.NewMemory(), 1024, logger), 1024)
	chats := handler.NewChatHandler(service.NewChatService(db, db, stubCompleter{reply: "Looks fine."}, nil, logger))
	authH := handler.NewAuthHandler(authSvc, nil, false, logger)

	r := chi.NewRouter()
	r.Get("/healthz", handler.NewHealthHandler(db).HandleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))
			authH.APIRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			projects.Routes(r)
			snippets.Routes(r)
			notes.Routes(r)
			files.Routes(r)
			chats.Routes(r)
		})
	})

	return &testAPI{t: t, db: db, tokens: tokens, router: r}
}

// user creates an account and returns a bearer token for it.
func (a *testAPI) user(login string) string {
	a.t.Helper()
	u := &model.User{OpenID: "github:" + login, Name: login, LoginMethod: model.LoginGitHub}
	require.NoError(a.t, a.db.UpsertUser(context.Background(), u))
	token, err := a.tokens.Generate(u.ID)
	require.NoError(a.t, err)
	return token
}

// do sends a request; body may be nil, a string (sent raw) or any value
// (JSON-encoded).
func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		rd = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

// decode unmarshals a response body into T.
func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "body: %s", rr.Body.String())
	return v
}
