package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codevault/codevault/internal/service"
)

// NoteHandler exposes per-line notes.
type NoteHandler struct {
	svc *service.NoteService
}

func NewNoteHandler(svc *service.NoteService) *NoteHandler {
	return &NoteHandler{svc: svc}
}

func (h *NoteHandler) Routes(r chi.Router) {
	r.Get("/snippets/{id}/notes", h.HandleList)
	r.Put("/snippets/{id}/notes/{line}", h.HandleUpsert)
	r.Delete("/notes/{id}", h.HandleDelete)
}

type upsertNoteRequest struct {
	Content string `json:"content"`
}

// HTTP: GET /api/snippets/{id}/notes
func (h *NoteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	snippetID, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	notes, err := h.svc.List(r.Context(), userID, snippetID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// HandleUpsert creates or replaces the note on one line.
//
// HTTP: PUT /api/snippets/{id}/notes/{line}
// BODY: {"content": "..."}
// RESPONSE: {"id": "...", "outcome": "created" | "updated"}
func (h *NoteHandler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	snippetID, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	line, err := positiveIntParam(r, "line")
	if err != nil {
		writeError(w, err)
		return
	}
	var req upsertNoteRequest
	if err := decodeJSON(w, r, &req, defaultBodyLimit); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.Upsert(r.Context(), userID, snippetID, line, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HTTP: DELETE /api/notes/{id}
func (h *NoteHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
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
