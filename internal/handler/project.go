package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codevault/codevault/internal/model"
	"github.com/codevault/codevault/internal/service"
)

// ProjectHandler exposes project CRUD under /api/projects.
type ProjectHandler struct {
	svc *service.ProjectService
}

func NewProjectHandler(svc *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

// Routes registers the project endpoints on an authenticated router.
func (h *ProjectHandler) Routes(r chi.Router) {
	r.Get("/projects", h.HandleList)
	r.Post("/projects", h.HandleCreate)
	r.Get("/projects/{id}", h.HandleGet)
	r.Patch("/projects/{id}", h.HandleUpdate)
	r.Delete("/projects/{id}", h.HandleDelete)
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// HandleList returns the caller's projects, most recently updated first.
//
// HTTP: GET /api/projects
func (h *ProjectHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	projects, err := h.svc.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// HandleCreate creates a project.
//
// HTTP: POST /api/projects
// BODY: {"name": "Algo", "description": "...", "color": "#6366f1"}
func (h *ProjectHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req createProjectRequest
	if err := decodeJSON(w, r, &req, defaultBodyLimit); err != nil {
		writeError(w, err)
		return
	}

	project, err := h.svc.Create(r.Context(), userID, service.ProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// HandleGet returns one project. Missing and foreign projects are both 404.
//
// HTTP: GET /api/projects/{id}
func (h *ProjectHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
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
	project, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// HandleUpdate applies a partial update. Only keys present in the body change.
//
// HTTP: PATCH /api/projects/{id}
// BODY: {"name"?: "...", "description"?: "...", "color"?: "#rrggbb"}
func (h *ProjectHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
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
	var patch model.ProjectPatch
	if err := decodeJSON(w, r, &patch, defaultBodyLimit); err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.Update(r.Context(), userID, id, patch); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse)
}

// HandleDelete deletes a project with its snippets, notes and file records.
//
// HTTP: DELETE /api/projects/{id}
func (h *ProjectHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
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
