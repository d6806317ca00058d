package bridge

import "unicode/utf8"

// TextCursor tracks how much of a growing decoded text has already been
// emitted, so backends only ever hand out the unseen suffix. A trailing
// partial UTF-8 sequence is held back until the rest of its bytes arrive.
type TextCursor struct {
	full string
	sent int
}

// Advance records full as the text decoded so far and returns the part of it
// that has not been returned before. If the decoder revised text that was
// already emitted, only bytes past the emitted length are considered.
func (c *TextCursor) Advance(full string) string {
	c.full = full
	end := completeLen(full)
	if end <= c.sent {
		return ""
	}
	out := full[c.sent:end]
	c.sent = end
	return out
}

// Append adds a raw piece to the decoded text and returns what became emittable.
func (c *TextCursor) Append(piece string) string {
	return c.Advance(c.full + piece)
}

// Flush returns any held-back bytes. Call it once the backend is finished.
func (c *TextCursor) Flush() string {
	if c.sent >= len(c.full) {
		return ""
	}
	out := c.full[c.sent:]
	c.sent = len(c.full)
	return out
}

// Emitted is the text handed out so far.
func (c *TextCursor) Emitted() string { return c.full[:c.sent] }

// completeLen returns len(s) minus a trailing incomplete rune, if any.
func completeLen(s string) int {
	for i := len(s) - 1; i >= 0 && i >= len(s)-utf8.UTFMax; i-- {
		if utf8.RuneStart(s[i]) {
			if utf8.FullRuneInString(s[i:]) {
				return len(s)
			}
			return i
		}
	}
	return len(s)
}

// SplitRunes cuts s into one string per character.
func SplitRunes(s string) []string {
	out := make([]string, 0, utf8.RuneCountInString(s))
	for len(s) > 0 {
		_, n := utf8.DecodeRuneInString(s)
		out = append(out, s[:n])
		s = s[n:]
	}
	return out
}
