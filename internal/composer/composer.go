// Package composer implements a controlled message input. The text is owned
// by the caller; the composer only reports edits, typing and send requests.
package composer

import (
	"context"
	"errors"
	"io"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	KeyEnter     = '\r'
	KeyNewline   = '\n'
	KeyBackspace = '\b'
	KeyDelete    = 0x7f
)

type Composer struct {
	Value    func() string
	OnChange func(string)
	OnSend   func()
	OnTyping func()

	Log zerolog.Logger
}

func (c *Composer) value() string {
	if c.Value == nil {
		return ""
	}
	return c.Value()
}

// Keystroke applies one key. The commit key sends; every other key edits
// the value and signals typing.
func (c *Composer) Keystroke(r rune) {
	switch r {
	case KeyEnter, KeyNewline:
		c.Submit()
		return
	case KeyBackspace, KeyDelete:
		v := c.value()
		if v != "" {
			_, size := utf8.DecodeLastRuneInString(v)
			v = v[:len(v)-size]
		}
		c.change(v)
	default:
		c.change(c.value() + string(r))
	}

	c.typing()
}

// Submit is the send control.
func (c *Composer) Submit() {
	if c.OnSend != nil {
		c.OnSend()
	}
}

func (c *Composer) change(v string) {
	if c.OnChange != nil {
		c.OnChange(v)
	}
}

func (c *Composer) typing() {
	if c.OnTyping == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.Log.Warn().Interface("panic", r).Msg("typing callback panicked")
		}
	}()
	c.OnTyping()
}

// Run feeds keystrokes from in until it is exhausted or ctx is done.
func (c *Composer) Run(ctx context.Context, in io.RuneReader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		r, _, err := in.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		c.Keystroke(r)
	}
}
