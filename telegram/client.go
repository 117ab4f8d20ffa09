// Copyright (c) 2025 BVK Chaitanya

package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bvk/pricebot/ctxutil"
	"github.com/bvk/pricebot/gobs"
	"github.com/bvk/pricebot/kvutil"
	"github.com/bvk/pricebot/monitor"
	"github.com/bvk/pricebot/syncmap"
	"github.com/bvkgo/kv"
	"github.com/visvasity/cli"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type CmdFunc = cli.CmdFunc

type Command struct {
	Name    string
	Purpose string
	Handler CmdFunc
}

// Reply is the response to a free text message. Choices, when not empty,
// are shown to the user as a one time keyboard.
type Reply struct {
	Text    string
	Choices []string
}

// TextFunc handles messages that are not bot commands.
type TextFunc func(ctx context.Context, chatID int64, text string) (*Reply, error)

type chatIDKey struct{}

// ChatID returns the chat id of the message being handled by a command.
func ChatID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(chatIDKey{}).(int64)
	return id, ok
}

// WithChatID returns a context that carries the chat id for command handlers.
func WithChatID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, chatIDKey{}, id)
}

type Client struct {
	cg ctxutil.CloseGroup

	db kv.Database

	mu sync.Mutex

	bot *bot.Bot

	self *models.User

	secrets *Secrets

	state *gobs.TelegramState

	commandMap syncmap.Map[string, *Command]

	textHandler TextFunc

	started atomic.Bool
}

var _ monitor.Notifier = &Client{}

var start = time.Now()

func New(ctx context.Context, db kv.Database, secrets *Secrets) (_ *Client, status error) {
	if err := secrets.Check(); err != nil {
		return nil, err
	}

	c := &Client{
		db:      db,
		secrets: secrets.Clone(),
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(c.handler),
	}
	bot, err := bot.New(secrets.BotToken, opts...)
	if err != nil {
		return nil, err
	}
	c.bot = bot

	self, err := bot.GetMe(ctx)
	if err != nil {
		return nil, err
	}
	c.self = self

	state, err := kvutil.LoadDB(ctx, db, c.stateKey(), func() *gobs.TelegramState {
		return &gobs.TelegramState{UserChatIDMap: make(map[string]int64)}
	})
	if err != nil {
		return nil, err
	}
	if state.UserChatIDMap == nil {
		state.UserChatIDMap = make(map[string]int64)
	}
	c.state = state

	// Configure the built-in commands.
	c.commandMap.Store("uptime", &Command{
		Name:    "uptime",
		Purpose: "Prints pricebot uptime",
		Handler: c.uptime,
	})
	c.commandMap.Store("version", &Command{
		Name:    "version",
		Purpose: "Prints version information",
		Handler: c.version,
	})

	if ok, err := c.bot.SetMyCommands(ctx, c.commands()); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("could not set bot commands")
	}

	return c, nil
}

// Start begins receiving updates from telegram. Commands and the text
// handler must be registered before Start, otherwise early messages are
// answered without them.
func (c *Client) Start() error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("telegram client is already started: %w", os.ErrExist)
	}
	if !c.cg.Go(func(ctx context.Context) { c.bot.Start(ctx) }) {
		return fmt.Errorf("telegram client is closed: %w", os.ErrClosed)
	}
	return nil
}

func (c *Client) Close() error {
	c.cg.Close()
	return nil
}

func (c *Client) BotUserName() string {
	return c.self.Username
}

func (c *Client) stateKey() string {
	return path.Join("/telegram", c.self.Username, "state")
}

// SetTextHandler sets the handler for messages that are not bot commands.
func (c *Client) SetTextHandler(fn TextFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.textHandler = fn
}

func (c *Client) AddCommand(ctx context.Context, name, purpose string, handler CmdFunc) error {
	if err := c.addCommand(name, purpose, handler); err != nil {
		return err
	}
	if ok, err := c.bot.SetMyCommands(ctx, c.commands()); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("could not set bot commands")
	}
	return nil
}

func (c *Client) addCommand(name, purpose string, handler CmdFunc) error {
	if len(name) == 0 || len(purpose) == 0 || handler == nil {
		return os.ErrInvalid
	}
	cdata := &Command{
		Name:    name,
		Purpose: purpose,
		Handler: handler,
	}
	if _, loaded := c.commandMap.LoadOrStore(name, cdata); loaded {
		return os.ErrExist
	}
	return nil
}

// Commands returns all registered commands sorted by name.
func (c *Client) Commands() []*Command {
	var cmds []*Command
	for _, cdata := range c.commandMap.Range {
		cmds = append(cmds, cdata)
	}
	slices.SortFunc(cmds, func(a, b *Command) int { return strings.Compare(a.Name, b.Name) })
	return cmds
}

func (c *Client) commands() *bot.SetMyCommandsParams {
	var cmds []models.BotCommand
	for _, cdata := range c.Commands() {
		cmds = append(cmds, models.BotCommand{
			Command:     cdata.Name,
			Description: cdata.Purpose,
		})
	}
	p := &bot.SetMyCommandsParams{
		Commands: cmds,
	}
	return p
}

// getCommand returns os.ErrInvalid if the message is not a bot command and
// os.ErrNotExist if the command is unknown.
func (c *Client) getCommand(update *models.Update) (string, []string, CmdFunc, error) {
	if update.Message == nil {
		return "", nil, nil, os.ErrInvalid
	}
	if len(update.Message.Entities) == 0 {
		return "", nil, nil, os.ErrInvalid
	}
	entity := update.Message.Entities[0]
	if entity.Type != models.MessageEntityTypeBotCommand {
		return "", nil, nil, os.ErrInvalid
	}
	if entity.Offset != 0 {
		return "", nil, nil, os.ErrInvalid
	}
	text := update.Message.Text
	if len(text) < entity.Length || entity.Length < 2 || text[0] != '/' {
		return "", nil, nil, os.ErrInvalid
	}
	cmd := text[1:entity.Length]
	// Commands in group chats are suffixed with the bot name.
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	args := strings.Fields(strings.TrimSpace(text[entity.Length:]))
	cdata, ok := c.commandMap.Load(cmd)
	if !ok {
		return cmd, nil, nil, os.ErrNotExist
	}
	return cmd, args, cdata.Handler, nil
}

func (c *Client) isValidUser(user string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.secrets.AllowedUsers) == 0 {
		return true
	}
	return slices.Contains(c.secrets.AllowedUsers, user)
}

// SendMessage sends a plain text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	m := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if _, err := c.bot.SendMessage(ctx, m); err != nil {
		return fmt.Errorf("could not send message to chat %d: %w", chatID, err)
	}
	return nil
}

// Notify delivers a watch notification to the chat of the session.
func (c *Client) Notify(ctx context.Context, n *monitor.Notification) error {
	slog.Info("sending notification", "chat-id", n.Session, "at", n.At, "message", n.String())
	return c.SendMessage(ctx, int64(n.Session), n.String())
}

// Broadcast sends a message to every known chat. Failures are logged and
// ignored.
func (c *Client) Broadcast(ctx context.Context, text string) {
	c.mu.Lock()
	users := make(map[string]int64, len(c.state.UserChatIDMap))
	for user, cid := range c.state.UserChatIDMap {
		users[user] = cid
	}
	c.mu.Unlock()

	for user, cid := range users {
		if err := c.SendMessage(ctx, cid, text); err != nil {
			slog.Error("could not broadcast message (ignored)", "user", user, "err", err)
		}
	}
}

func (c *Client) handler(ctx context.Context, bot *bot.Bot, update *models.Update) {
	if bot != c.bot {
		slog.Error("handler invoked with invalid bot value", "want", c.bot, "got", bot)
		return
	}
	if update.Message == nil || update.Message.From == nil {
		return
	}

	sender := update.Message.From.Username
	if !c.isValidUser(sender) {
		slog.Warn("received message from unknown user (ignored)", "sender", sender, "message", update.Message.Text)
		return
	}

	if err := c.updateChatIDs(ctx, update); err != nil {
		slog.Warn("could not update chat id values (ignored)", "err", err)
	}

	if err := c.respond(ctx, update); err != nil {
		slog.Error("could not respond to user message (ignored)", "user", sender, "err", err)
		return
	}
}

func replyMarkup(choices []string) models.ReplyMarkup {
	if len(choices) == 0 {
		return &models.ReplyKeyboardRemove{RemoveKeyboard: true}
	}
	var row []models.KeyboardButton
	for _, choice := range choices {
		row = append(row, models.KeyboardButton{Text: choice})
	}
	return &models.ReplyKeyboardMarkup{
		Keyboard:        [][]models.KeyboardButton{row},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

func (c *Client) respond(ctx context.Context, update *models.Update) (status error) {
	True := true

	var reply string
	var markup models.ReplyMarkup
	defer func() {
		if len(reply) != 0 {
			p := &bot.SendMessageParams{
				ChatID: update.Message.Chat.ID,
				Text:   reply,
				ReplyParameters: &models.ReplyParameters{
					MessageID: update.Message.ID,
				},
				LinkPreviewOptions: &models.LinkPreviewOptions{
					IsDisabled: &True,
				},
				ReplyMarkup: markup,
			}
			if _, err := c.bot.SendMessage(ctx, p); err != nil {
				status = err
			}
		}
	}()

	defer func() {
		if status != nil {
			reply = status.Error()
			status = nil
		}
	}()

	chatID := update.Message.Chat.ID
	cmd, args, handler, err := c.getCommand(update)
	if errors.Is(err, os.ErrInvalid) {
		c.mu.Lock()
		textHandler := c.textHandler
		c.mu.Unlock()

		if textHandler == nil {
			return fmt.Errorf("send /help for the list of commands")
		}
		r, err := textHandler(ctx, chatID, update.Message.Text)
		if err != nil {
			return err
		}
		if r == nil {
			return nil
		}
		reply, markup = r.Text, replyMarkup(r.Choices)
		return nil
	}
	if err != nil {
		return fmt.Errorf("unknown command %q; send /help for the list of commands", cmd)
	}

	var sb strings.Builder
	if err := handler(cli.WithStdout(WithChatID(ctx, chatID), &sb), args); err != nil {
		sender := update.Message.From.Username
		slog.Error("could not handle user command (ignored)", "cmd", cmd, "user", sender, "err", err)
		return err
	}

	reply = sb.String()
	return nil
}

func (c *Client) updateChatIDs(ctx context.Context, update *models.Update) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sender := update.Message.From.Username
	if len(sender) == 0 {
		return nil
	}
	if id, ok := c.state.UserChatIDMap[sender]; !ok || id != update.Message.Chat.ID {
		c.state.UserChatIDMap[sender] = update.Message.Chat.ID
		slog.Info("updating chat id for user", "user", sender, "chat-id", update.Message.Chat.ID)

		if err := kvutil.SetDB(ctx, c.db, c.stateKey(), c.state); err != nil {
			slog.Error("could not save telegram state to the db", "err", err)
			return err
		}
	}
	return nil
}

func (c *Client) uptime(ctx context.Context, args []string) error {
	stdout := cli.Stdout(ctx)
	const day = 24 * time.Hour
	d := time.Since(start)
	if d < day {
		fmt.Fprintf(stdout, "%v", d)
		return nil
	}
	days := d / day
	fmt.Fprintf(stdout, "%dd%v", days, d%day)
	return nil
}

func (c *Client) version(ctx context.Context, _ []string) error {
	stdout := cli.Stdout(ctx)
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return fmt.Errorf("could not read build information")
	}
	// Do not print version information for the dependencies. It can overflow the
	// Telegram size limits.
	fmt.Fprintln(stdout, "Go: ", info.GoVersion)
	fmt.Fprintln(stdout, "Binary Path: ", info.Path)
	fmt.Fprintln(stdout, "Main Module Path: ", info.Main.Path)
	fmt.Fprintln(stdout, "Main Module Version: ", info.Main.Version)
	for _, s := range info.Settings {
		fmt.Fprintln(stdout, s.Key, ": ", s.Value)
	}
	return nil
}
