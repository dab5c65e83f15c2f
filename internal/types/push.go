package types

const (
	NotificationMessage       = "message"
	NotificationPrayerRequest = "prayer_request"
	NotificationEvent         = "event"
	NotificationAnnouncement  = "announcement"
)

// Notification is the payload handed to the push function.
type Notification struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Type  string         `json:"type,omitempty"`
	Icon  string         `json:"icon,omitempty"`
	Badge string         `json:"badge,omitempty"`
	Tag   string         `json:"tag,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// PushPayload is what a subscribed client receives and displays.
type PushPayload struct {
	Title string         `json:"title"`
	Body  string         `json:"body,omitempty"`
	Icon  string         `json:"icon,omitempty"`
	Badge string         `json:"badge,omitempty"`
	Tag   string         `json:"tag,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

func (n Notification) Payload() PushPayload {
	return PushPayload{
		Title: n.Title,
		Body:  n.Body,
		Icon:  n.Icon,
		Badge: n.Badge,
		Tag:   n.Tag,
		Data:  n.Data,
	}
}

type PushRequest struct {
	UserIds          []int        `json:"user_ids"`
	Notification     Notification `json:"notification"`
	CheckPreferences bool         `json:"check_preferences,omitempty"`
}

type PushReport struct {
	Delivered int `json:"delivered"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}
