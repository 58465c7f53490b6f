package domain

import "context"

type ctxKey string

const conversationCtxKey ctxKey = "conversation_id"

// ContextWithConversationID returns a new context carrying the conversation ID.
func ContextWithConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, conversationCtxKey, conversationID)
}

// ConversationIDFrom returns the conversation ID stored in ctx, if any.
func ConversationIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(conversationCtxKey).(string)
	return v
}
