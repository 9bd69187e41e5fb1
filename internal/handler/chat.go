package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codevault/codevault/internal/service"
)

// ChatHandler exposes the assistant.
type ChatHandler struct {
	svc *service.ChatService
}

func NewChatHandler(svc *service.ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

func (h *ChatHandler) Routes(r chi.Router) {
	r.Post("/ai/chat", h.HandleChat)
	r.Get("/ai/history", h.HandleHistory)
	r.Delete("/ai/history", h.HandleClear)
}

type chatRequest struct {
	Message   string  `json:"message"`
	SnippetID *string `json:"snippetId"`
	Context   string  `json:"context"`
}

type chatResponse struct {
	Content string `json:"content"`
}

// HandleChat sends one message to the assistant and returns its reply.
//
// HTTP: POST /api/ai/chat
// BODY: {"message": "...", "snippetId"?: "...", "context"?: "<code>"}
// RESPONSE: {"content": "..."}
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req chatRequest
	if err := decodeJSON(w, r, &req, defaultBodyLimit); err != nil {
		writeError(w, err)
		return
	}
	if err := optionalIDField("snippetId", req.SnippetID); err != nil {
		writeError(w, err)
		return
	}

	reply, err := h.svc.Chat(r.Context(), userID, service.ChatInput{
		Message:     req.Message,
		SnippetID:   req.SnippetID,
		CodeContext: req.Context,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Content: reply.Content})
}

// HTTP: GET /api/ai/history?snippetId=
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	snippetID, err := optionalIDQuery(r, "snippetId")
	if err != nil {
		writeError(w, err)
		return
	}
	msgs, err := h.svc.History(r.Context(), userID, snippetID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// HTTP: DELETE /api/ai/history?snippetId=
func (h *ChatHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	snippetID, err := optionalIDQuery(r, "snippetId")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.ClearHistory(r.Context(), userID, snippetID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse)
}
