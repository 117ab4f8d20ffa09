// Copyright (c) 2025 BVK Chaitanya

package telegram

import (
	"fmt"
	"os"
	"slices"
)

type Secrets struct {
	BotToken string `json:"token" yaml:"token"`

	// AllowedUsers limits the bot to the listed user names. Empty list allows
	// everyone.
	AllowedUsers []string `json:"allowed_users" yaml:"allowed_users"`
}

func (v *Secrets) Check() error {
	if len(v.BotToken) == 0 {
		return fmt.Errorf("bot token cannot be empty: %w", os.ErrInvalid)
	}
	if slices.Contains(v.AllowedUsers, "") {
		return fmt.Errorf("empty string in allowed users is not a valid user name: %w", os.ErrInvalid)
	}
	users := slices.Clone(v.AllowedUsers)
	slices.Sort(users)
	if len(slices.Compact(users)) != len(v.AllowedUsers) {
		return fmt.Errorf("allowed users cannot have duplicates: %w", os.ErrInvalid)
	}
	return nil
}

func (v *Secrets) Clone() *Secrets {
	return &Secrets{
		BotToken:     v.BotToken,
		AllowedUsers: slices.Clone(v.AllowedUsers),
	}
}
