package pushworker

import (
	"errors"
	"testing"

	"github.com/npezzotti/go-fellowship/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shownNotification struct {
	title string
	opts  NotificationOptions
}

type fakeWindow struct {
	url     string
	focused int
}

func (w *fakeWindow) URL() string  { return w.url }
func (w *fakeWindow) Focus() error { w.focused++; return nil }

type fakePlatform struct {
	calls    []string
	shown    []shownNotification
	windows  []*fakeWindow
	opened   []string
	showErr  error
	claimErr error
}

func (p *fakePlatform) SkipWaiting() error {
	p.calls = append(p.calls, "skip_waiting")
	return nil
}

func (p *fakePlatform) ClaimClients() error {
	p.calls = append(p.calls, "claim_clients")
	return p.claimErr
}

func (p *fakePlatform) ShowNotification(title string, opts NotificationOptions) error {
	if p.showErr != nil {
		return p.showErr
	}
	p.shown = append(p.shown, shownNotification{title: title, opts: opts})
	return nil
}

func (p *fakePlatform) Windows() ([]Window, error) {
	out := make([]Window, len(p.windows))
	for i, w := range p.windows {
		out[i] = w
	}
	return out, nil
}

func (p *fakePlatform) OpenWindow(url string) error {
	p.opened = append(p.opened, url)
	return nil
}

type clicked struct {
	data   map[string]any
	closed bool
}

func (c *clicked) Close()               { c.closed = true }
func (c *clicked) Data() map[string]any { return c.data }

func TestInstall(t *testing.T) {
	p := &fakePlatform{}
	w := New(p, testutil.TestLogger(t))
	assert.Equal(t, StateInstalling, w.State())

	require.NoError(t, w.Install())

	assert.Equal(t, []string{"skip_waiting", "claim_clients"}, p.calls)
	assert.Equal(t, StateActive, w.State())
}

func TestInstall_ClaimFailure(t *testing.T) {
	p := &fakePlatform{claimErr: errors.New("no clients")}
	w := New(p, testutil.TestLogger(t))

	assert.Error(t, w.Install())
	assert.Equal(t, StateInstalling, w.State())
}

func TestHandlePush(t *testing.T) {
	tcases := []struct {
		name      string
		data      []byte
		wantShown bool
	}{
		{name: "nil payload", data: nil},
		{name: "empty payload", data: []byte{}},
		{name: "plain text", data: []byte("not json")},
		{name: "truncated json", data: []byte(`{"title":"hi"`)},
		{name: "json array", data: []byte(`[1,2,3]`)},
		{name: "wrong field type", data: []byte(`{"title":42}`)},
		{name: "json null", data: []byte(`null`)},
		{name: "empty object", data: []byte(`{}`)},
		{name: "body without title", data: []byte(`{"body":"b"}`)},
		{name: "valid", data: []byte(`{"title":"Prayer meeting","body":"Tonight at 7","tag":"event-reminder","data":{"url":"/events/e1"}}`), wantShown: true},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakePlatform{}
			w := New(p, testutil.TestLogger(t))
			require.NoError(t, w.Install())

			var shown bool
			assert.NotPanics(t, func() { shown = w.HandlePush(tc.data) })
			assert.Equal(t, tc.wantShown, shown)

			if !tc.wantShown {
				assert.Empty(t, p.shown, "no notification expected")
				assert.Equal(t, StateActive, w.State())
				return
			}

			require.Len(t, p.shown, 1)
			n := p.shown[0]
			assert.Equal(t, "Prayer meeting", n.title)
			assert.Equal(t, "Tonight at 7", n.opts.Body)
			assert.Equal(t, "event-reminder", n.opts.Tag)
			assert.Equal(t, "/events/e1", n.opts.Data["url"])
			assert.Equal(t, []int{100, 50, 100}, n.opts.Vibrate)
			assert.False(t, n.opts.RequireInteraction)
			assert.Equal(t, StateNotificationReceived, w.State())
		})
	}
}

func TestHandlePush_ShowFailure(t *testing.T) {
	p := &fakePlatform{showErr: errors.New("permission denied")}
	w := New(p, testutil.TestLogger(t))

	assert.False(t, w.HandlePush([]byte(`{"title":"x"}`)))
}

func TestHandleClick(t *testing.T) {
	tcases := []struct {
		name        string
		data        map[string]any
		windows     []string
		wantFocused int
		wantOpened  []string
	}{
		{
			name:       "no data opens root",
			data:       nil,
			wantOpened: []string{"/"},
		},
		{
			name:       "non-string url opens root",
			data:       map[string]any{"url": 12},
			wantOpened: []string{"/"},
		},
		{
			name:        "focuses matching window",
			data:        map[string]any{"url": "/messages?conversation=abc"},
			windows:     []string{"http://localhost:8000/", "http://localhost:8000/messages?conversation=abc"},
			wantFocused: 1,
		},
		{
			name:       "opens when no window matches",
			data:       map[string]any{"url": "/announcements"},
			windows:    []string{"/messages"},
			wantOpened: []string{"/announcements"},
		},
		{
			name:        "root matches empty path",
			data:        nil,
			windows:     []string{"http://localhost:8000"},
			wantFocused: 1,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakePlatform{}
			for _, u := range tc.windows {
				p.windows = append(p.windows, &fakeWindow{url: u})
			}
			w := New(p, testutil.TestLogger(t))
			n := &clicked{data: tc.data}

			require.NoError(t, w.HandleClick(n))

			assert.True(t, n.closed)
			assert.Equal(t, tc.wantOpened, p.opened)
			focused := 0
			for _, win := range p.windows {
				focused += win.focused
			}
			assert.Equal(t, tc.wantFocused, focused)
			assert.Equal(t, StateNotificationInteracted, w.State())
		})
	}
}

func TestHandleSubscriptionChange(t *testing.T) {
	p := &fakePlatform{}
	w := New(p, testutil.TestLogger(t))
	require.NoError(t, w.Install())

	w.HandleSubscriptionChange()

	assert.Equal(t, []string{"skip_waiting", "claim_clients"}, p.calls)
	assert.Empty(t, p.shown)
	assert.Empty(t, p.opened)
}

func Test_sameURL(t *testing.T) {
	assert.True(t, sameURL("/messages", "/messages"))
	assert.True(t, sameURL("https://church.example.org/messages", "/messages"))
	assert.False(t, sameURL("https://a.example.org/messages", "https://b.example.org/messages"))
	assert.False(t, sameURL("/messages?conversation=a", "/messages?conversation=b"))
	assert.False(t, sameURL("/messages", "/events"))
}
