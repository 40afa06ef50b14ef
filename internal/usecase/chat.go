package usecase

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

// ChatService is stateless free chat on the lite model tier, with no
// interviewer persona.
type ChatService struct {
	Chat domain.ChatClient
}

// NewChatService constructs a ChatService.
func NewChatService(c domain.ChatClient) ChatService { return ChatService{Chat: c} }

// Reply returns the model's answer to the given conversation. The last
// message must come from the user.
func (s ChatService) Reply(ctx domain.Context, messages []domain.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("op=usecase.Chat: %w: messages required", domain.ErrInvalidArgument)
	}
	for i, m := range messages {
		switch m.Role {
		case "system", "user", "assistant":
		default:
			return "", fmt.Errorf("op=usecase.Chat: %w: message %d has role %q", domain.ErrInvalidArgument, i, m.Role)
		}
	}
	if last := messages[len(messages)-1]; last.Role != "user" || strings.TrimSpace(last.Content) == "" {
		return "", fmt.Errorf("op=usecase.Chat: %w: last message must be a non-empty user message", domain.ErrInvalidArgument)
	}
	reply, err := s.Chat.Chat(ctx, domain.ChatRequest{Tier: domain.TierLite, Messages: messages, Temperature: 0.7})
	if err != nil {
		return "", fmt.Errorf("op=usecase.Chat: %w", err)
	}
	return reply, nil
}
