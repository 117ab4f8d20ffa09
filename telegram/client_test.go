// Copyright (c) 2025 BVK Chaitanya

package telegram

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/bvkgo/kv/kvmemdb"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/require"
	"github.com/visvasity/cli"
)

var testingSecrets *Secrets

func checkSecrets() bool {
	if testingSecrets != nil {
		return true
	}
	data, err := os.ReadFile("telegram-creds.json")
	if err != nil {
		return false
	}
	s := new(Secrets)
	if err := json.Unmarshal(data, s); err != nil {
		return false
	}
	if err := s.Check(); err != nil {
		return false
	}
	testingSecrets = s
	return true
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	if !checkSecrets() {
		t.Skip("no credentials")
		return
	}

	db := kvmemdb.New()
	c, err := New(ctx, db, testingSecrets)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}
	}()

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	t.Logf("Authorized on account %s", c.BotUserName())
	c.Broadcast(ctx, "hello")
}

func commandUpdate(text string, length int) *models.Update {
	return &models.Update{
		Message: &models.Message{
			Text: text,
			Entities: []models.MessageEntity{
				{Type: models.MessageEntityTypeBotCommand, Offset: 0, Length: length},
			},
		},
	}
}

func TestGetCommand(t *testing.T) {
	t.Parallel()

	c := new(Client)
	echo := func(ctx context.Context, args []string) error {
		_, err := cli.Stdout(ctx).Write([]byte(strings.Join(args, ",")))
		return err
	}
	require.NoError(t, c.addCommand("list", "Lists watches", echo))
	require.ErrorIs(t, c.addCommand("list", "Again", echo), os.ErrExist)
	require.ErrorIs(t, c.addCommand("", "Empty", echo), os.ErrInvalid)

	cmd, args, handler, err := c.getCommand(commandUpdate("/list a  b", 5))
	require.NoError(t, err)
	require.Equal(t, "list", cmd)
	require.Equal(t, []string{"a", "b"}, args)

	var sb strings.Builder
	require.NoError(t, handler(cli.WithStdout(context.Background(), &sb), args))
	require.Equal(t, "a,b", sb.String())

	cmd, _, _, err = c.getCommand(commandUpdate("/list@price_bot", 15))
	require.NoError(t, err)
	require.Equal(t, "list", cmd)

	cmd, _, _, err = c.getCommand(commandUpdate("/nope", 5))
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Equal(t, "nope", cmd)

	_, _, _, err = c.getCommand(&models.Update{Message: &models.Message{Text: "BTC"}})
	require.ErrorIs(t, err, os.ErrInvalid)

	_, _, _, err = c.getCommand(&models.Update{})
	require.ErrorIs(t, err, os.ErrInvalid)

	_, _, _, err = c.getCommand(commandUpdate("/x", 10))
	require.ErrorIs(t, err, os.ErrInvalid)
}

func TestCommandsSorted(t *testing.T) {
	t.Parallel()

	c := new(Client)
	noop := func(context.Context, []string) error { return nil }
	for _, name := range []string{"start", "help", "list"} {
		require.NoError(t, c.addCommand(name, "purpose of "+name, noop))
	}

	var names []string
	for _, cmd := range c.Commands() {
		names = append(names, cmd.Name)
	}
	require.Equal(t, []string{"help", "list", "start"}, names)
	require.Len(t, c.commands().Commands, 3)
}

func TestReplyMarkup(t *testing.T) {
	t.Parallel()

	remove, ok := replyMarkup(nil).(*models.ReplyKeyboardRemove)
	require.True(t, ok)
	require.True(t, remove.RemoveKeyboard)

	kb, ok := replyMarkup([]string{"Yes", "No"}).(*models.ReplyKeyboardMarkup)
	require.True(t, ok)
	require.True(t, kb.OneTimeKeyboard)
	require.Len(t, kb.Keyboard, 1)
	require.Equal(t, "Yes", kb.Keyboard[0][0].Text)
	require.Equal(t, "No", kb.Keyboard[0][1].Text)
}

func TestAllowedUsers(t *testing.T) {
	t.Parallel()

	open := &Client{secrets: &Secrets{BotToken: "x"}}
	require.True(t, open.isValidUser("anyone"))

	closed := &Client{secrets: &Secrets{BotToken: "x", AllowedUsers: []string{"alice"}}}
	require.True(t, closed.isValidUser("alice"))
	require.False(t, closed.isValidUser("bob"))
	require.False(t, closed.isValidUser(""))
}

func TestSecretsCheck(t *testing.T) {
	t.Parallel()

	require.Error(t, (&Secrets{}).Check())
	require.Error(t, (&Secrets{BotToken: "x", AllowedUsers: []string{""}}).Check())
	require.Error(t, (&Secrets{BotToken: "x", AllowedUsers: []string{"a", "b", "a"}}).Check())
	require.NoError(t, (&Secrets{BotToken: "x", AllowedUsers: []string{"a", "b"}}).Check())

	s := &Secrets{BotToken: "x", AllowedUsers: []string{"a"}}
	clone := s.Clone()
	clone.AllowedUsers[0] = "b"
	require.Equal(t, "a", s.AllowedUsers[0])
}

func TestChatIDContext(t *testing.T) {
	t.Parallel()

	_, ok := ChatID(context.Background())
	require.False(t, ok)

	id, ok := ChatID(WithChatID(context.Background(), -100123))
	require.True(t, ok)
	require.Equal(t, int64(-100123), id)
}

func TestStartAfterClose(t *testing.T) {
	t.Parallel()

	c := new(Client)
	require.NoError(t, c.Close())
	require.ErrorIs(t, c.Start(), os.ErrClosed)
	require.ErrorIs(t, c.Start(), os.ErrExist)
}
