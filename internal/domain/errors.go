package domain

import "errors"

// Storage-level sentinel errors. Repositories wrap these so services can
// translate them into the API error taxonomy without importing driver types.
var (
	ErrChannelNotFound      = errors.New("channel not found")
	ErrSubchannelNotFound   = errors.New("subchannel not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotificationNotFound = errors.New("notification not found")
)
