// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bvk/pricebot/telegram"
	"github.com/bvk/pricebot/watch"
	"github.com/shopspring/decimal"
	"github.com/visvasity/cli"
)

func (s *Server) setupTelegram(ctx context.Context) error {
	cmds := []struct {
		name    string
		purpose string
		handler telegram.CmdFunc
	}{
		{"start", "Add a pair to watch", s.cmdStart},
		{"help", "Show the list of commands", s.cmdHelp},
		{"list", "Show the watched pairs", s.cmdList},
		{"cancel", "Stop watching all pairs", s.cmdCancel},
	}
	for _, c := range cmds {
		if err := s.telegramClient.AddCommand(ctx, c.name, c.purpose, c.handler); err != nil {
			return fmt.Errorf("could not add telegram command %q: %w", c.name, err)
		}
	}
	s.telegramClient.SetTextHandler(s.handleText)
	return nil
}

func sessionFromContext(ctx context.Context) (watch.SessionID, error) {
	id, ok := telegram.ChatID(ctx)
	if !ok {
		return 0, fmt.Errorf("chat id is not known: %w", os.ErrInvalid)
	}
	return watch.SessionID(id), nil
}

func (s *Server) handleText(ctx context.Context, chatID int64, text string) (*telegram.Reply, error) {
	r := s.form.Handle(watch.SessionID(chatID), text)
	return &telegram.Reply{Text: r.Text, Choices: r.Choices}, nil
}

func (s *Server) cmdStart(ctx context.Context, args []string) error {
	id, err := sessionFromContext(ctx)
	if err != nil {
		return err
	}
	r := s.form.Start(id)
	fmt.Fprint(cli.Stdout(ctx), r.Text)
	return nil
}

func (s *Server) cmdCancel(ctx context.Context, args []string) error {
	id, err := sessionFromContext(ctx)
	if err != nil {
		return err
	}
	n := s.form.Cancel(id)
	fmt.Fprintf(cli.Stdout(ctx), "Stopped watching %d pair(s).", n)
	return nil
}

func (s *Server) cmdList(ctx context.Context, args []string) error {
	id, err := sessionFromContext(ctx)
	if err != nil {
		return err
	}
	stdout := cli.Stdout(ctx)
	ws := s.store.List(id)
	if len(ws) == 0 {
		fmt.Fprint(stdout, "No pairs are watched. Send /start to add one.")
		return nil
	}
	var lines []string
	for _, w := range ws {
		state := "watching"
		if !w.Armed {
			state = "incomplete"
		}
		lines = append(lines, fmt.Sprintf("%s/%s: min %s max %s (%s)", w.Symbol, s.opts.Currency, formatBound(w.Lower), formatBound(w.Upper), state))
	}
	fmt.Fprint(stdout, strings.Join(lines, "\n"))
	return nil
}

func (s *Server) cmdHelp(ctx context.Context, args []string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "I watch crypto currency prices in %s and notify you when a price leaves the range you give.\n", s.opts.Currency)
	if s.telegramClient != nil {
		sb.WriteString("\n")
		for _, c := range s.telegramClient.Commands() {
			fmt.Fprintf(&sb, "/%s - %s\n", c.Name, c.Purpose)
		}
	}
	fmt.Fprint(cli.Stdout(ctx), strings.TrimSpace(sb.String()))
	return nil
}

func formatBound(v *float64) string {
	if v == nil {
		return "-"
	}
	return decimal.NewFromFloat(*v).String()
}
