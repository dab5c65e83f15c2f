package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/npezzotti/go-fellowship/internal/pushworker"
	"github.com/npezzotti/go-fellowship/internal/transcript"
)

const (
	clearScreen = "\033[H\033[2J"
	prompt      = "> "
)

// screen draws one conversation. It is the transcript's viewport and the
// push worker's only window.
type screen struct {
	out io.Writer
	url string

	mu        sync.Mutex
	view      transcript.View
	status    string
	statusAt  time.Time
	statusTTL time.Duration
	banners   []string
	now       func() time.Time
}

func newScreen(out io.Writer, url string, statusTTL time.Duration) *screen {
	return &screen{
		out:       out,
		url:       url,
		statusTTL: statusTTL,
		now:       time.Now,
	}
}

func (s *screen) setView(v transcript.View) {
	s.mu.Lock()
	s.view = v
	s.mu.Unlock()
}

// setStatus shows a transient line such as a typing indicator.
func (s *screen) setStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.statusAt = s.now()
	s.mu.Unlock()
	s.ScrollToEnd()
}

func (s *screen) addBanner(banner string) {
	s.mu.Lock()
	s.banners = append(s.banners, banner)
	if len(s.banners) > 3 {
		s.banners = s.banners[len(s.banners)-3:]
	}
	s.mu.Unlock()
	s.ScrollToEnd()
}

// ScrollToEnd redraws the screen with the newest entries at the bottom,
// right above the prompt.
func (s *screen) ScrollToEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString(clearScreen)
	for _, banner := range s.banners {
		b.WriteString(banner)
		b.WriteByte('\n')
	}
	if err := s.view.Render(&b); err != nil {
		fmt.Fprintf(&b, "render failed: %v\n", err)
	}
	if s.status != "" && s.now().Sub(s.statusAt) < s.statusTTL {
		b.WriteString(s.status)
		b.WriteByte('\n')
	}
	b.WriteString(prompt)

	io.WriteString(s.out, b.String())
}

func (s *screen) URL() string {
	return s.url
}

func (s *screen) Focus() error {
	s.ScrollToEnd()
	return nil
}

// banner is a notification shown in the terminal.
type banner struct {
	title  string
	data   map[string]any
	closed atomic.Bool
}

func (b *banner) Close() {
	b.closed.Store(true)
}

func (b *banner) Data() map[string]any {
	return b.data
}

// terminalPlatform hosts the push worker in a terminal: notifications are
// printed banners and the open screen, if any, is the only window.
type terminalPlatform struct {
	out    io.Writer
	show   func(string)
	window pushworker.Window

	mu     sync.Mutex
	last   *banner
	opened []string
}

func newTerminalPlatform(out io.Writer) *terminalPlatform {
	return &terminalPlatform{out: out}
}

// attach routes banners to a screen instead of straight to out.
func (p *terminalPlatform) attach(s *screen) {
	p.mu.Lock()
	p.window = s
	p.show = s.addBanner
	p.mu.Unlock()
}

func (p *terminalPlatform) SkipWaiting() error {
	return nil
}

func (p *terminalPlatform) ClaimClients() error {
	return nil
}

func (p *terminalPlatform) ShowNotification(title string, opts pushworker.NotificationOptions) error {
	line := "\a[notification] " + title
	if opts.Body != "" {
		line += ": " + opts.Body
	}
	if opts.Tag != "" {
		line += " (" + opts.Tag + ")"
	}

	p.mu.Lock()
	p.last = &banner{title: title, data: opts.Data}
	show := p.show
	p.mu.Unlock()

	if show != nil {
		show(line)
		return nil
	}
	_, err := fmt.Fprintln(p.out, line)
	return err
}

func (p *terminalPlatform) Windows() ([]pushworker.Window, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.window == nil {
		return nil, nil
	}
	return []pushworker.Window{p.window}, nil
}

// OpenWindow cannot open a view from inside another one, so it prints the
// command that would.
func (p *terminalPlatform) OpenWindow(url string) error {
	p.mu.Lock()
	p.opened = append(p.opened, url)
	p.mu.Unlock()

	_, err := fmt.Fprintf(p.out, "\nopen %s with: %s\n", url, commandFor(url))
	return err
}

// lastShown returns the most recent notification that is still open.
func (p *terminalPlatform) lastShown() (*banner, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil || p.last.closed.Load() {
		return nil, false
	}
	return p.last, true
}

// commandFor maps a notification URL to the churchctl command showing it.
func commandFor(url string) string {
	switch {
	case strings.HasPrefix(url, "/messages?conversation="):
		return "churchctl chat " + strings.TrimPrefix(url, "/messages?conversation=")
	case strings.HasPrefix(url, "/messages"):
		return "churchctl conversations"
	case strings.HasPrefix(url, "/announcements"):
		return "churchctl announcements"
	default:
		return "churchctl listen"
	}
}
