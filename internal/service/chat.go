package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codevault/codevault/internal/apperror"
	"github.com/codevault/codevault/internal/llm"
	"github.com/codevault/codevault/internal/model"
	"github.com/codevault/codevault/internal/ratelimit"
	"github.com/codevault/codevault/internal/repository"
)

const (
	// ChatContextLimit is how many past messages are sent to the model.
	ChatContextLimit = 20
	// ChatHistoryLimit is how many messages History returns.
	ChatHistoryLimit = 50
	// MaxCodeContextLength caps the code pasted into the system prompt.
	MaxCodeContextLength = 50000

	// FallbackReply is stored and returned when the model answers with nothing.
	FallbackReply = "Sorry, I couldn't generate a response."
)

const systemPrompt = `You are CodeVault AI, an expert programming assistant built into CodeVault, a code snippet repository.

You can:
- explain code line by line
- suggest improvements and optimizations
- help write documentation and notes
- answer technical programming questions
- spot bugs and problems in code
- recommend good practices

Be concise but complete. Format answers in Markdown.`

// ChatService is the assistant bridge: it keeps a per-user (optionally
// per-snippet) conversation and asks the completion service for replies.
type ChatService struct {
	chats     repository.ChatRepository
	snippets  repository.SnippetRepository
	completer llm.Completer
	limiter   ratelimit.Limiter
	logger    *slog.Logger
}

func NewChatService(
	chats repository.ChatRepository,
	snippets repository.SnippetRepository,
	completer llm.Completer,
	limiter ratelimit.Limiter,
	logger *slog.Logger,
) *ChatService {
	if completer == nil {
		completer = llm.Disabled{}
	}
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}
	return &ChatService{
		chats:     chats,
		snippets:  snippets,
		completer: completer,
		limiter:   limiter,
		logger:    logger,
	}
}

// ChatInput is one user turn. SnippetID scopes the conversation; CodeContext
// is the code the user is looking at, pasted verbatim into the prompt.
type ChatInput struct {
	Message     string
	SnippetID   *string
	CodeContext string
}

// Chat records the user's message, asks the model for a reply and records
// that too.
//
// WHAT IF THE MODEL FAILS?
// The user message stays persisted and the caller gets ErrUpstream. The
// next turn will include it in the context, which matches what the user sees
// in their history.
func (s *ChatService) Chat(ctx context.Context, userID string, in ChatInput) (*model.ChatMessage, error) {
	message, err := requireText("message", in.Message, MaxMessageLength)
	if err != nil {
		return nil, err
	}
	if err := maxLength("context", in.CodeContext, MaxCodeContextLength); err != nil {
		return nil, err
	}

	snippetID := trimOptional(in.SnippetID)
	if snippetID != nil {
		if _, err := s.snippets.GetSnippet(ctx, *snippetID, userID); err != nil {
			return nil, err
		}
	}

	if err := s.limiter.Allow(ctx, "chat:"+userID); err != nil {
		if errors.Is(err, apperror.ErrRateLimited) {
			return nil, err
		}
		// A broken limiter must not take the assistant down with it.
		s.logger.Warn("rate limiter unavailable, allowing chat",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
	}

	userMsg := &model.ChatMessage{
		UserID:    userID,
		SnippetID: snippetID,
		Role:      model.ChatRoleUser,
		Content:   message,
	}
	if err := s.chats.SaveChatMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("saving chat message: %w", err)
	}

	history, err := s.chats.ListChatHistory(ctx, userID, deref(snippetID), ChatContextLimit)
	if err != nil {
		return nil, fmt.Errorf("loading chat history: %w", err)
	}

	reply, err := s.completer.Complete(ctx, buildPrompt(history, in.CodeContext))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error("completion failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream("assistant", err)
	}
	if strings.TrimSpace(reply) == "" {
		reply = FallbackReply
	}

	assistantMsg := &model.ChatMessage{
		UserID:    userID,
		SnippetID: snippetID,
		Role:      model.ChatRoleAssistant,
		Content:   reply,
	}
	if err := s.chats.SaveChatMessage(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("saving assistant reply: %w", err)
	}

	s.logger.Info("assistant replied",
		slog.String("userID", userID),
		slog.Int("contextMessages", len(history)),
	)
	return assistantMsg, nil
}

// buildPrompt puts the system instruction first, then the stored history in
// chronological order. The current user turn is already the last history
// entry.
func buildPrompt(history []model.ChatMessage, codeContext string) []llm.Message {
	system := systemPrompt
	if strings.TrimSpace(codeContext) != "" {
		system += "\n\nCode the user is currently viewing:\n```\n" + codeContext + "\n```"
	}

	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, h := range history {
		switch h.Role {
		case model.ChatRoleUser:
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: h.Content})
		case model.ChatRoleAssistant:
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: h.Content})
		}
	}
	return msgs
}

// History returns the most recent ChatHistoryLimit messages, oldest first.
func (s *ChatService) History(ctx context.Context, userID, snippetID string) ([]model.ChatMessage, error) {
	msgs, err := s.chats.ListChatHistory(ctx, userID, strings.TrimSpace(snippetID), ChatHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("loading chat history: %w", err)
	}
	return msgs, nil
}

// ClearHistory deletes the caller's messages; snippetID == "" clears all.
func (s *ChatService) ClearHistory(ctx context.Context, userID, snippetID string) error {
	if err := s.chats.ClearChatHistory(ctx, userID, strings.TrimSpace(snippetID)); err != nil {
		return fmt.Errorf("clearing chat history: %w", err)
	}
	s.logger.Info("chat history cleared", slog.String("userID", userID))
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
