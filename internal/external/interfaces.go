package external

import (
	"context"

	"birthdaybot/internal/types"
)

// SlackAPI is the Slack surface used by the celebration pipeline and the
// admin API.
type SlackAPI interface {
	UserStatus(ctx context.Context, userID string) (types.UserStatus, error)
	ChannelMembers(ctx context.Context, channelID string) (map[string]struct{}, error)
	UploadImage(ctx context.Context, img types.ImageRef) (UploadedFile, error)
	PostMessage(ctx context.Context, msg SlackMessage) (string, error)
}

// LanguageModel produces celebration text and artwork.
type LanguageModel interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

var (
	_ SlackAPI      = (*SlackClient)(nil)
	_ LanguageModel = (*OpenAIClient)(nil)
)
