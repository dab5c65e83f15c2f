package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/npezzotti/go-fellowship/internal/apiclient"
	"github.com/npezzotti/go-fellowship/internal/composer"
	"github.com/npezzotti/go-fellowship/internal/pushworker"
	"github.com/npezzotti/go-fellowship/internal/realtime"
	"github.com/npezzotti/go-fellowship/internal/transcript"
	"github.com/npezzotti/go-fellowship/internal/types"
	"github.com/spf13/cobra"
)

func newChatCmd(e *env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "chat <conversation-id>",
		Short: "Open a conversation",
		Long: `Open a conversation and chat in it. Type a message and press Enter to send.
"/open" opens the latest notification and "/quit" leaves.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.chat(cmd.Context(), args[0], limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "number of recent messages to load")
	return cmd
}

// chatSession wires one open conversation to the terminal.
type chatSession struct {
	e        *env
	conv     *conversation
	scr      *screen
	scroller *transcript.AutoScroller
	platform *terminalPlatform
	worker   *pushworker.Worker
	feed     *apiclient.Feed
	cancel   context.CancelFunc

	draft      string
	lastTyping time.Time

	// outstanding notification dispatches
	wg sync.WaitGroup
}

func (e *env) chat(ctx context.Context, conversationId string, limit int) error {
	st, err := e.authenticate(ctx, "")
	if err != nil {
		return err
	}

	convs, err := e.api.Conversations(ctx)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	var info *types.Conversation
	for i := range convs {
		if convs[i].ExternalId == conversationId {
			info = &convs[i]
			break
		}
	}
	if info == nil {
		return fmt.Errorf("conversation %q not found", conversationId)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cs := &chatSession{
		e:        e,
		conv:     newConversation(*info, *st.User),
		scr:      newScreen(e.out, "/messages?conversation="+conversationId, e.cfg.TypingWindow),
		platform: newTerminalPlatform(e.out),
		cancel:   cancel,
	}
	cs.scroller = transcript.NewAutoScroller(cs.scr, e.cfg.ScrollDelay)
	defer cs.scroller.Stop()
	cs.platform.attach(cs.scr)
	cs.worker = pushworker.New(cs.platform, e.log.With().Str("component", "pushworker").Logger())
	if err := cs.worker.Install(); err != nil {
		e.log.Warn().Err(err).Msg("push worker not active")
	}

	cs.refresh()
	cs.load(ctx, limit)

	feed, err := e.api.DialFeed(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("realtime feed unavailable")
		cs.scr.setStatus("offline: new messages appear after you send one")
	} else {
		cs.feed = feed
		if err := feed.Subscribe(conversationId); err != nil {
			e.log.Warn().Err(err).Msg("subscribe failed")
		}
		go func() {
			if err := feed.Run(ctx, cs.handleFrame); err != nil {
				e.log.Warn().Err(err).Msg("realtime feed closed")
			}
		}()
	}

	comp := &composer.Composer{
		Value:    func() string { return cs.draft },
		OnChange: func(v string) { cs.draft = v },
		OnSend:   func() { cs.submit(ctx) },
		OnTyping: cs.typing,
		Log:      e.log,
	}

	err = comp.Run(ctx, bufio.NewReader(e.in))
	cs.wg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (cs *chatSession) refresh() {
	v := cs.conv.view()
	cs.scr.setView(v)
	cs.scroller.Observe(v)
}

// load fetches the recent messages. A failed fetch leaves an empty
// transcript rather than an error.
func (cs *chatSession) load(ctx context.Context, limit int) {
	msgs, err := cs.e.api.Messages(ctx, cs.conv.info.ExternalId, limit)
	if err != nil {
		cs.e.log.Error().Err(err).Msg("failed to load messages")
		msgs = nil
	}
	cs.conv.load(msgs)
	cs.refresh()

	if err == nil {
		cs.markRead(ctx)
	}
}

func (cs *chatSession) markRead(ctx context.Context) {
	if _, err := cs.e.api.MarkRead(ctx, cs.conv.info.ExternalId); err != nil {
		cs.e.log.Warn().Err(err).Msg("mark read failed")
	}
}

func (cs *chatSession) handleFrame(msg *realtime.ServerMessage) {
	switch {
	case msg.Message != nil:
		if cs.conv.add(*msg.Message) {
			cs.refresh()
			if msg.Message.SenderId != cs.conv.me.Id {
				ctx, cancel := context.WithTimeout(context.Background(), cs.e.cfg.Timeout)
				cs.markRead(ctx)
				cancel()
			}
		}
	case msg.Read != nil:
		if cs.conv.markRead(*msg.Read) {
			cs.refresh()
		}
	case msg.Typing != nil:
		if msg.Typing.ConversationId == cs.conv.info.ExternalId && msg.Typing.UserId != cs.conv.me.Id {
			cs.scr.setStatus(cs.conv.info.OtherParty.DisplayName() + " is typing...")
		}
	case msg.Push != nil:
		data, err := json.Marshal(msg.Push)
		if err != nil {
			cs.e.log.Error().Err(err).Msg("encode push payload")
			return
		}
		cs.worker.HandlePush(data)
	case msg.Response != nil && msg.Response.Error != "":
		cs.e.log.Warn().Int("code", msg.Response.ResponseCode).Str("error", msg.Response.Error).Msg("feed request failed")
	}
}

// typing tells the other party at most twice per typing window.
func (cs *chatSession) typing() {
	if cs.feed == nil {
		return
	}
	now := time.Now()
	if now.Sub(cs.lastTyping) < cs.e.cfg.TypingWindow/2 {
		return
	}
	cs.lastTyping = now
	if err := cs.feed.Typing(cs.conv.info.ExternalId); err != nil {
		cs.e.log.Debug().Err(err).Msg("typing frame not sent")
	}
}

func (cs *chatSession) submit(ctx context.Context) {
	text := strings.TrimSpace(cs.draft)
	cs.draft = ""

	switch text {
	case "":
		cs.scr.ScrollToEnd()
		return
	case "/quit":
		cs.cancel()
		return
	case "/open":
		n, ok := cs.platform.lastShown()
		if !ok {
			cs.scr.setStatus("no open notification")
			return
		}
		if err := cs.worker.HandleClick(n); err != nil {
			cs.e.log.Warn().Err(err).Msg("open notification failed")
		}
		return
	}

	sent, err := cs.e.api.SendMessage(ctx, cs.conv.info.ExternalId, text)
	if err != nil {
		cs.e.log.Error().Err(err).Msg("send failed")
		cs.scr.setStatus("message not sent")
		return
	}
	if cs.conv.add(sent) {
		cs.refresh()
	}

	me := cs.conv.me
	recipient := cs.conv.info.OtherParty.Id
	cs.wg.Add(1)
	go func() {
		defer cs.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), cs.e.cfg.Timeout)
		defer cancel()
		res := cs.e.notifier.NotifyNewMessage(ctx, recipient, me.DisplayName(), text, cs.conv.info.ExternalId)
		if !res.Success {
			cs.e.log.Warn().Str("error", res.Error).Msg("message notification not sent")
		}
	}()
}
