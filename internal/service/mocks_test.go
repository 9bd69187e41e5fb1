package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codevault/codevault/internal/apperror"
	"github.com/codevault/codevault/internal/executor"
	"github.com/codevault/codevault/internal/llm"
	"github.com/codevault/codevault/internal/model"
	"github.com/codevault/codevault/internal/repository"
)

// =========================================================================
// MOCK STORE
// =========================================================================
//
// memStore is an in-memory implementation of every repository interface.
// It follows the same ownership rules as the SQL store (foreign rows are
// not-found on read and a no-op on write) so service tests exercise the
// real contract without a database.

type memStore struct {
	mu       sync.Mutex
	nextID   int
	clock    time.Time
	users    map[string]*model.User
	projects map[string]*model.Project
	snippets map[string]*model.Snippet
	notes    map[string]*model.LineNote
	files    map[string]*model.FileRecord
	chats    []model.ChatMessage

	// failWith, when set, is returned by every method.
	failWith error
}

var _ repository.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		users:    make(map[string]*model.User),
		projects: make(map[string]*model.Project),
		snippets: make(map[string]*model.Snippet),
		notes:    make(map[string]*model.LineNote),
		files:    make(map[string]*model.FileRecord),
	}
}

func (m *memStore) id() string {
	m.nextID++
	return fmt.Sprintf("mock-%d", m.nextID)
}

// now advances a fake clock so ordering by time is deterministic.
func (m *memStore) now() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) Ping(context.Context) error { return m.failWith }
func (m *memStore) Close() error               { return nil }

// --- users ---

func (m *memStore) UpsertUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, existing := range m.users {
		if existing.OpenID == u.OpenID {
			existing.Name, existing.Email, existing.LoginMethod = u.Name, u.Email, u.LoginMethod
			if u.Role == model.RoleAdmin {
				existing.Role = model.RoleAdmin
			}
			existing.LastSignedIn = m.now()
			*u = *existing
			return nil
		}
	}
	u.ID = m.id()
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	u.CreatedAt = m.now()
	u.UpdatedAt, u.LastSignedIn = u.CreatedAt, u.CreatedAt
	stored := *u
	m.users[u.ID] = &stored
	return nil
}

func (m *memStore) CreateLocalUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, existing := range m.users {
		if existing.OpenID == u.OpenID {
			return apperror.Conflict("account", u.Email)
		}
	}
	u.ID = m.id()
	u.CreatedAt = m.now()
	u.UpdatedAt, u.LastSignedIn = u.CreatedAt, u.CreatedAt
	stored := *u
	m.users[u.ID] = &stored
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperror.NotFound("user", id)
}

func (m *memStore) GetUserByOpenID(_ context.Context, openID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, u := range m.users {
		if u.OpenID == openID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", openID)
}

func (m *memStore) TouchSignIn(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.LastSignedIn = m.now()
	}
	return nil
}

// --- projects ---

func (m *memStore) ListProjects(_ context.Context, userID string) ([]model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := []model.Project{}
	for _, p := range m.projects {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *memStore) GetProject(_ context.Context, id, userID string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	if p, ok := m.projects[id]; ok && p.UserID == userID {
		cp := *p
		return &cp, nil
	}
	return nil, apperror.NotFound("project", id)
}

func (m *memStore) CreateProject(_ context.Context, p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	p.ID = m.id()
	p.CreatedAt = m.now()
	p.UpdatedAt = p.CreatedAt
	stored := *p
	m.projects[p.ID] = &stored
	return nil
}

func (m *memStore) UpdateProject(_ context.Context, id, userID string, patch model.ProjectPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	p, ok := m.projects[id]
	if !ok || p.UserID != userID {
		return nil
	}
	if patch.Name.Set {
		p.Name = patch.Name.Value
	}
	if patch.Description.Set {
		p.Description = patch.Description.Value
	}
	if patch.Color.Set {
		p.Color = patch.Color.Value
	}
	p.UpdatedAt = m.now()
	return nil
}

func (m *memStore) DeleteProject(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	p, ok := m.projects[id]
	if !ok || p.UserID != userID {
		return nil
	}
	for sid, s := range m.snippets {
		if s.ProjectID != nil && *s.ProjectID == id && s.UserID == userID {
			m.deleteSnippetLocked(sid, userID)
		}
	}
	for fid, f := range m.files {
		if f.ProjectID != nil && *f.ProjectID == id && f.UserID == userID {
			delete(m.files, fid)
		}
	}
	delete(m.projects, id)
	return nil
}

func (m *memStore) ownsProject(projectID *string, userID string) bool {
	if projectID == nil {
		return true
	}
	p, ok := m.projects[*projectID]
	return ok && p.UserID == userID
}

// --- snippets ---

func (m *memStore) ListSnippets(_ context.Context, userID, projectID string) ([]model.Snippet, error) {
	return m.filterSnippets(userID, projectID, func(*model.Snippet) bool { return true })
}

func (m *memStore) SearchSnippets(_ context.Context, userID, query, projectID string) ([]model.Snippet, error) {
	q := strings.ToLower(query)
	return m.filterSnippets(userID, projectID, func(s *model.Snippet) bool {
		return strings.Contains(strings.ToLower(s.Title), q) ||
			strings.Contains(strings.ToLower(s.Code), q) ||
			strings.Contains(strings.ToLower(s.Description), q)
	})
}

func (m *memStore) filterSnippets(userID, projectID string, keep func(*model.Snippet) bool) ([]model.Snippet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := []model.Snippet{}
	for _, s := range m.snippets {
		if s.UserID != userID {
			continue
		}
		if projectID != "" && (s.ProjectID == nil || *s.ProjectID != projectID) {
			continue
		}
		if keep(s) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *memStore) GetSnippet(_ context.Context, id, userID string) (*model.Snippet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	if s, ok := m.snippets[id]; ok && s.UserID == userID {
		cp := *s
		return &cp, nil
	}
	return nil, apperror.NotFound("snippet", id)
}

func (m *memStore) CreateSnippet(_ context.Context, s *model.Snippet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if !m.ownsProject(s.ProjectID, s.UserID) {
		return apperror.NotFound("project", *s.ProjectID)
	}
	s.ID = m.id()
	s.CreatedAt = m.now()
	s.UpdatedAt = s.CreatedAt
	stored := *s
	m.snippets[s.ID] = &stored
	return nil
}

func (m *memStore) UpdateSnippet(_ context.Context, id, userID string, patch model.SnippetPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	s, ok := m.snippets[id]
	if !ok || s.UserID != userID {
		return nil
	}
	if patch.ProjectID.Set && !m.ownsProject(patch.ProjectID.Value, userID) {
		return apperror.NotFound("project", *patch.ProjectID.Value)
	}
	if patch.Title.Set {
		s.Title = patch.Title.Value
	}
	if patch.Code.Set {
		s.Code = patch.Code.Value
	}
	if patch.Language.Set {
		s.Language = patch.Language.Value
	}
	if patch.Description.Set {
		s.Description = patch.Description.Value
	}
	if patch.ProjectID.Set {
		s.ProjectID = patch.ProjectID.Value
	}
	if patch.IsFavorite.Set {
		s.IsFavorite = patch.IsFavorite.Value
	}
	s.UpdatedAt = m.now()
	return nil
}

func (m *memStore) DeleteSnippet(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.deleteSnippetLocked(id, userID)
	return nil
}

func (m *memStore) deleteSnippetLocked(id, userID string) {
	s, ok := m.snippets[id]
	if !ok || s.UserID != userID {
		return
	}
	for nid, n := range m.notes {
		if n.SnippetID == id {
			delete(m.notes, nid)
		}
	}
	kept := m.chats[:0]
	for _, c := range m.chats {
		if c.SnippetID == nil || *c.SnippetID != id {
			kept = append(kept, c)
		}
	}
	m.chats = kept
	delete(m.snippets, id)
}

// --- notes ---

func (m *memStore) ListNotes(_ context.Context, snippetID, userID string) ([]model.LineNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := []model.LineNote{}
	for _, n := range m.notes {
		if n.SnippetID == snippetID && n.UserID == userID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineNumber < out[j].LineNumber })
	return out, nil
}

func (m *memStore) UpsertNote(_ context.Context, snippetID string, line int, content, userID string) (model.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return model.UpsertResult{}, m.failWith
	}
	if s, ok := m.snippets[snippetID]; !ok || s.UserID != userID {
		return model.UpsertResult{}, apperror.NotFound("snippet", snippetID)
	}
	for _, n := range m.notes {
		if n.SnippetID == snippetID && n.LineNumber == line && n.UserID == userID {
			n.Content = content
			n.UpdatedAt = m.now()
			return model.UpsertResult{ID: n.ID, Outcome: model.UpsertUpdated}, nil
		}
	}
	n := &model.LineNote{ID: m.id(), SnippetID: snippetID, UserID: userID, LineNumber: line, Content: content}
	n.CreatedAt = m.now()
	n.UpdatedAt = n.CreatedAt
	m.notes[n.ID] = n
	return model.UpsertResult{ID: n.ID, Outcome: model.UpsertCreated}, nil
}

func (m *memStore) DeleteNote(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if n, ok := m.notes[id]; ok && n.UserID == userID {
		delete(m.notes, id)
	}
	return nil
}

// --- files ---

func (m *memStore) ListFiles(_ context.Context, userID, projectID string) ([]model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := []model.FileRecord{}
	for _, f := range m.files {
		if f.UserID != userID {
			continue
		}
		if projectID != "" && (f.ProjectID == nil || *f.ProjectID != projectID) {
			continue
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) CreateFile(_ context.Context, f *model.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if !m.ownsProject(f.ProjectID, f.UserID) {
		return apperror.NotFound("project", *f.ProjectID)
	}
	f.ID = m.id()
	f.CreatedAt = m.now()
	stored := *f
	m.files[f.ID] = &stored
	return nil
}

func (m *memStore) DeleteFile(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if f, ok := m.files[id]; ok && f.UserID == userID {
		delete(m.files, id)
	}
	return nil
}

// --- chats ---

func (m *memStore) SaveChatMessage(_ context.Context, msg *model.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	msg.ID = m.id()
	msg.CreatedAt = m.now()
	m.chats = append(m.chats, *msg)
	return nil
}

func (m *memStore) ListChatHistory(_ context.Context, userID, snippetID string, limit int) ([]model.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := []model.ChatMessage{}
	for _, c := range m.chats {
		if c.UserID != userID {
			continue
		}
		if snippetID != "" && (c.SnippetID == nil || *c.SnippetID != snippetID) {
			continue
		}
		out = append(out, c)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) ClearChatHistory(_ context.Context, userID, snippetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	kept := m.chats[:0]
	for _, c := range m.chats {
		if c.UserID == userID && (snippetID == "" || (c.SnippetID != nil && *c.SnippetID == snippetID)) {
			continue
		}
		kept = append(kept, c)
	}
	m.chats = kept
	return nil
}

// =========================================================================
// OTHER FAKES
// =========================================================================

// fakeCompleter records the prompt it was given and returns reply or err.
type fakeCompleter struct {
	reply string
	err   error
	got   []llm.Message
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	f.calls++
	f.got = msgs
	return f.reply, f.err
}

// fakeLimiter denies once allowed calls have been used up; err overrides.
type fakeLimiter struct {
	allowed int
	err     error
	calls   int
}

func (f *fakeLimiter) Allow(context.Context, string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	if f.calls > f.allowed {
		return apperror.RateLimited("too many messages")
	}
	return nil
}

// fakeExecutor answers runs for the languages it knows.
type fakeExecutor struct {
	langs []string
	res   *executor.Result
	err   error
	got   executor.Request
}

func (f *fakeExecutor) Execute(_ context.Context, req executor.Request) (*executor.Result, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	for _, l := range f.langs {
		if l == req.Language {
			return f.res, nil
		}
	}
	return nil, executor.ErrUnsupportedLanguage
}

func (f *fakeExecutor) Languages() []string { return f.langs }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }
