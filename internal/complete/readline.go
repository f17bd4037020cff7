package complete

import (
	"context"
	"strings"
)

// shellSpecial lists the characters escaped when a completion is inserted
// outside quotes.
const shellSpecial = " \t\n\\'\"`$&|;<>()[]{}*?!#~"

// ReadlineAdapter plugs an Engine into github.com/chzyer/readline, which
// expects candidates as suffixes of the word under the cursor.
type ReadlineAdapter struct {
	Engine *Engine
	// State is called on every completion request.
	State func() State
	Ctx   context.Context
}

// Do implements readline.AutoCompleter.
func (a *ReadlineAdapter) Do(line []rune, pos int) ([][]rune, int) {
	if pos > len(line) {
		pos = len(line)
	}
	buffer := string(line[:pos])

	ctx := a.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	candidates := a.Engine.Complete(ctx, a.State(), buffer)
	if len(candidates) == 0 {
		return nil, 0
	}

	raw, quote := lastWord(buffer)
	typed := ""
	if tokens, trailing := Tokenize(buffer); len(tokens) > 0 && !trailing {
		typed = tokens[len(tokens)-1]
	}

	out := make([][]rune, 0, len(candidates))
	for _, c := range candidates {
		if !strings.HasPrefix(c, typed) {
			continue
		}
		suffix := c[len(typed):]
		if quote == 0 {
			suffix = escape(suffix)
		}
		if len(candidates) == 1 && !strings.HasSuffix(c, "/") {
			if quote != 0 {
				suffix += string(quote)
			}
			suffix += " "
		}
		out = append(out, []rune(suffix))
	}
	return out, len([]rune(raw))
}

// lastWord returns the raw text of the word under the cursor and the quote
// character that is still open at the end of the buffer, if any.
func lastWord(buffer string) (string, rune) {
	start := 0
	var quote rune
	escaped := false
	for i, r := range buffer {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == ' ' || r == '\t' || r == '\n':
			start = i + 1
		}
	}
	return buffer[start:], quote
}

func escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(shellSpecial, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
