package helpers

import (
	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

// MockContextOptions provides options for creating a mock update context
type MockContextOptions struct {
	UserID      int64
	Username    string
	FirstName   string
	ChatID      int64
	MessageID   int64
	MessageText string
}

// NewMockContext creates an ext.Context carrying a single private-chat message.
func NewMockContext(opts MockContextOptions) *ext.Context {
	if opts.UserID == 0 {
		opts.UserID = 12345
	}
	if opts.Username == "" {
		opts.Username = "testuser"
	}
	if opts.FirstName == "" {
		opts.FirstName = "Test"
	}
	if opts.ChatID == 0 {
		opts.ChatID = opts.UserID
	}
	if opts.MessageID == 0 {
		opts.MessageID = 1
	}

	user := &gotgbot.User{
		Id:        opts.UserID,
		FirstName: opts.FirstName,
		Username:  opts.Username,
	}
	chat := gotgbot.Chat{Id: opts.ChatID, Type: "private"}

	message := &gotgbot.Message{
		MessageId: opts.MessageID,
		From:      user,
		Chat:      chat,
		Text:      opts.MessageText,
	}

	return &ext.Context{
		Update:           &gotgbot.Update{Message: message},
		EffectiveUser:    user,
		EffectiveChat:    &chat,
		EffectiveMessage: message,
		Data:             make(map[string]interface{}),
	}
}

// NewSimpleMockContext creates a context for userID sending messageText
func NewSimpleMockContext(userID int64, messageText string) *ext.Context {
	return NewMockContext(MockContextOptions{
		UserID:      userID,
		MessageText: messageText,
	})
}
