package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codevault/codevault/internal/service"
)

// FileHandler exposes file uploads. Bytes arrive base64-encoded in JSON,
// matching what a browser FileReader produces.
type FileHandler struct {
	svc       *service.FileService
	bodyLimit int64
}

// NewFileHandler sizes the body limit from the decoded upload cap: base64
// inflates by 4/3, plus room for the other JSON fields.
func NewFileHandler(svc *service.FileService, maxUploadBytes int64) *FileHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = service.DefaultMaxUploadBytes
	}
	return &FileHandler{
		svc:       svc,
		bodyLimit: maxUploadBytes/3*4 + 64<<10,
	}
}

func (h *FileHandler) Routes(r chi.Router) {
	r.Get("/files", h.HandleList)
	r.Post("/files", h.HandleUpload)
	r.Delete("/files/{id}", h.HandleDelete)
}

type uploadFileRequest struct {
	Filename   string  `json:"filename"`
	MimeType   string  `json:"mimeType"`
	FileSize   *int64  `json:"fileSize"`
	Base64Data string  `json:"base64Data"`
	ProjectID  *string `json:"projectId"`
}

// HTTP: GET /api/files?projectId=
func (h *FileHandler) HandleList(w http.ResponseWriter, r *http.Request) {
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
	files, err := h.svc.List(r.Context(), userID, projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// HandleUpload stores one file.
//
// HTTP: POST /api/files
// BODY: {"filename", "mimeType", "fileSize"?, "base64Data", "projectId"?}
func (h *FileHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req uploadFileRequest
	if err := decodeJSON(w, r, &req, h.bodyLimit); err != nil {
		writeError(w, err)
		return
	}
	if err := optionalIDField("projectId", req.ProjectID); err != nil {
		writeError(w, err)
		return
	}

	record, err := h.svc.Upload(r.Context(), userID, service.UploadInput{
		Filename:     req.Filename,
		MimeType:     req.MimeType,
		Base64Data:   req.Base64Data,
		DeclaredSize: req.FileSize,
		ProjectID:    req.ProjectID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// HandleDelete removes the file record; the stored bytes are kept.
//
// HTTP: DELETE /api/files/{id}
func (h *FileHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
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
