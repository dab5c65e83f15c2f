package transcript

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const lineWidth = 72

// Render writes the view as plain text, own messages flush right.
func (v View) Render(w io.Writer) error {
	var b strings.Builder

	if v.Title != "" {
		fmt.Fprintf(&b, "── %s ──\n", v.Title)
	}

	switch v.State {
	case StateLoading:
		b.WriteString(LoadingText + "\n")
	case StateEmpty:
		b.WriteString(EmptyText + "\n")
	default:
		for _, e := range v.Entries {
			b.WriteString(e.line())
			b.WriteByte('\n')
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (e Entry) line() string {
	text := fmt.Sprintf("[%s] %s", e.CreatedAt.Local().Format("15:04"), e.Content)
	if !e.Own {
		return text
	}

	text += " " + e.Delivery.Mark()
	if pad := lineWidth - utf8.RuneCountInString(text); pad > 0 {
		return strings.Repeat(" ", pad) + text
	}
	return text
}
