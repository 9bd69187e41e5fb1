package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codevault/codevault/internal/model"
	"github.com/codevault/codevault/internal/service"
)

// SnippetHandler exposes snippet CRUD, search and sandbox runs.
type SnippetHandler struct {
	svc *service.SnippetService
}

func NewSnippetHandler(svc *service.SnippetService) *SnippetHandler {
	return &SnippetHandler{svc: svc}
}

func (h *SnippetHandler) Routes(r chi.Router) {
	r.Get("/snippets", h.HandleList)
	r.Post("/snippets", h.HandleCreate)
	// Registered before /snippets/{id} for readability; chi prefers static
	// segments over params either way.
	r.Get("/snippets/search", h.HandleSearch)
	r.Get("/snippets/{id}", h.HandleGet)
	r.Patch("/snippets/{id}", h.HandleUpdate)
	r.Delete("/snippets/{id}", h.HandleDelete)
	r.Post("/snippets/{id}/run", h.HandleRun)
}

type createSnippetRequest struct {
	Title       string  `json:"title"`
	Code        string  `json:"code"`
	Language    string  `json:"language"`
	Description string  `json:"description"`
	ProjectID   *string `json:"projectId"`
}

// HandleList returns the caller's snippets, optionally for one project.
//
// HTTP: GET /api/snippets?projectId=
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	projectID, err := optionalIDQuery(r, "projectId")
	if err != nil {
		writeError(w, err)
		return
	}
	snippets, err := h.svc.List(r.Context(), userID, projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippets)
}

// HandleCreate saves a new snippet.
//
// HTTP: POST /api/snippets
// BODY: {"title": "Fib", "code": "...", "language"?: "python", "projectId"?: "..."}
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req createSnippetRequest
	if err := decodeJSON(w, r, &req, defaultBodyLimit); err != nil {
		writeError(w, err)
		return
	}
	if err := optionalIDField("projectId", req.ProjectID); err != nil {
		writeError(w, err)
		return
	}

	snippet, err := h.svc.Create(r.Context(), userID, service.SnippetInput{
		Title:       req.Title,
		Code:        req.Code,
		Language:    req.Language,
		Description: req.Description,
		ProjectID:   req.ProjectID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snippet)
}

// HandleSearch finds snippets by case-insensitive substring.
//
// HTTP: GET /api/snippets/search?q=fib&projectId=
func (h *SnippetHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	projectID, err := optionalIDQuery(r, "projectId")
	if err != nil {
		writeError(w, err)
		return
	}
	snippets, err := h.svc.Search(r.Context(), userID, r.URL.Query().Get("q"), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippets)
}

// HTTP: GET /api/snippets/{id}
func (h *SnippetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	snippet, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleUpdate applies a partial update. {"projectId": null} moves the
// snippet out of its project; omitting projectId leaves it where it is.
//
// HTTP: PATCH /api/snippets/{id}
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var patch model.SnippetPatch
	if err := decodeJSON(w, r, &patch, defaultBodyLimit); err != nil {
		writeError(w, err)
		return
	}
	if patch.ProjectID.Set {
		if err := optionalIDField("projectId", patch.ProjectID.Value); err != nil {
			writeError(w, err)
			return
		}
	}
	if err := h.svc.Update(r.Context(), userID, id, patch); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse)
}

// HTTP: DELETE /api/snippets/{id}
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse)
}

// HandleRun executes the snippet's stored code in the sandbox. A program
// that fails is still a 200; its exit code and stderr are in the body.
//
// HTTP: POST /api/snippets/{id}/run
func (h *SnippetHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.svc.Run(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
