package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/npezzotti/go-fellowship/internal/pushworker"
	"github.com/npezzotti/go-fellowship/internal/realtime"
	"github.com/npezzotti/go-fellowship/internal/types"
	"github.com/spf13/cobra"
)

func newConversationsCmd(e *env) *cobra.Command {
	var with int

	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "List your conversations or start a new one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := e.authenticate(ctx, ""); err != nil {
				return err
			}

			if with > 0 {
				conv, err := e.api.CreateConversation(ctx, with)
				if err != nil {
					return fmt.Errorf("start conversation: %w", err)
				}
				fmt.Fprintf(e.out, "Started conversation %s with %s\n", conv.ExternalId, conv.OtherParty.DisplayName())
				return nil
			}

			convs, err := e.api.Conversations(ctx)
			if err != nil {
				return fmt.Errorf("list conversations: %w", err)
			}
			if len(convs) == 0 {
				fmt.Fprintln(e.out, "No conversations yet.")
				return nil
			}

			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWITH\tLAST MESSAGE")
			for _, c := range convs {
				last := "-"
				if c.LastMessageAt != nil {
					last = c.LastMessageAt.Local().Format("Jan 2 15:04")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ExternalId, c.OtherParty.DisplayName(), last)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&with, "with", 0, "start a conversation with this user id")
	return cmd
}

func newListenCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Show push notifications as they arrive",
		Long: `Stay connected and print every push notification. Type "open" and press
Enter to open the latest one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.listen(cmd.Context())
		},
	}
}

func (e *env) listen(ctx context.Context) error {
	if _, err := e.authenticate(ctx, ""); err != nil {
		return err
	}

	platform := newTerminalPlatform(e.out)
	worker := pushworker.New(platform, e.log.With().Str("component", "pushworker").Logger())
	if err := worker.Install(); err != nil {
		return err
	}

	feed, err := e.api.DialFeed(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		scanner := bufio.NewScanner(e.in)
		for scanner.Scan() {
			if strings.TrimSpace(scanner.Text()) != "open" {
				continue
			}
			n, ok := platform.lastShown()
			if !ok {
				fmt.Fprintln(e.out, "no open notification")
				continue
			}
			if err := worker.HandleClick(n); err != nil {
				e.log.Warn().Err(err).Msg("open notification failed")
			}
		}
	}()

	fmt.Fprintln(e.out, "Listening for notifications. Press Ctrl-C to stop.")
	return feed.Run(ctx, func(msg *realtime.ServerMessage) {
		if msg.Push == nil {
			return
		}
		data, err := json.Marshal(msg.Push)
		if err != nil {
			e.log.Error().Err(err).Msg("encode push payload")
			return
		}
		worker.HandlePush(data)
	})
}

func newAnnounceCmd(e *env) *cobra.Command {
	var title, body string

	cmd := &cobra.Command{
		Use:   "announce",
		Short: "Publish an announcement to every member (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if strings.TrimSpace(title) == "" {
				return errors.New("--title is required")
			}
			if _, err := e.authenticate(ctx, types.RoleAdmin); err != nil {
				return err
			}

			ann, err := e.api.CreateAnnouncement(ctx, title, body)
			if err != nil {
				return fmt.Errorf("publish announcement: %w", err)
			}
			fmt.Fprintf(e.out, "Published announcement %d: %s\n", ann.Id, ann.Title)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "announcement title")
	cmd.Flags().StringVar(&body, "body", "", "announcement body")
	return cmd
}

func newAnnouncementsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "announcements",
		Short: "List recent announcements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := e.authenticate(ctx, ""); err != nil {
				return err
			}

			anns, err := e.api.Announcements(ctx)
			if err != nil {
				return fmt.Errorf("list announcements: %w", err)
			}
			if len(anns) == 0 {
				fmt.Fprintln(e.out, "No announcements yet.")
				return nil
			}
			for _, a := range anns {
				fmt.Fprintf(e.out, "%s  %s\n", a.CreatedAt.Local().Format("Jan 2"), a.Title)
				if a.Body != "" {
					fmt.Fprintf(e.out, "    %s\n", a.Body)
				}
			}
			return nil
		},
	}
}
