// Copyright (c) 2025 BVK Chaitanya

package gobs

type TelegramState struct {
	// UserChatIDMap maps telegram user names to their private chat ids.
	UserChatIDMap map[string]int64
}
