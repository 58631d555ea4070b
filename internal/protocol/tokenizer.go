// Package protocol implements the line-oriented WebIssues wire format:
// the quoted-argument tokenizer used for every response line and stored
// view definition, and the typed row dispatch over single-letter tags.
package protocol

import "strings"

// DefaultDelimiter separates tokens in protocol lines.
const DefaultDelimiter = ' '

// DefaultQuote is the quote character for protocol lines and stored
// view definitions.
const DefaultQuote = '\''

// ParseLine splits a protocol line into tokens using the default
// delimiter and quote characters.
func ParseLine(text string) ([]string, error) {
	return ParseLineWith(text, DefaultDelimiter, DefaultQuote)
}

// ParseLineWith splits text into ordered tokens.
//
// Tokens are separated by runs of delim outside quotes. A token that
// begins with the quote character ends at the next unescaped quote;
// inside it, backslash-quote decodes to a literal quote and backslash-n
// decodes to a newline, while every other backslash sequence passes
// through literally. A token that does not begin with the quote
// character is read verbatim up to the next unescaped delimiter, even
// when it contains quote or brace characters. An empty quoted token
// yields an empty string.
//
// Brace-delimited sub-content is opaque here; callers re-tokenize it
// with their own delimiter and quote (see view definitions).
//
// Returns MalformedLineError when a quoted token is never closed.
func ParseLineWith(text string, delim, quote byte) ([]string, error) {
	var tokens []string
	i := 0
	for i < len(text) {
		// Skip runs of the delimiter between tokens.
		for i < len(text) && text[i] == delim {
			i++
		}
		if i >= len(text) {
			break
		}

		var tok strings.Builder
		if text[i] == quote {
			i++ // opening quote
			closed := false
			for i < len(text) {
				c := text[i]
				if c == '\\' && i+1 < len(text) {
					switch text[i+1] {
					case quote:
						tok.WriteByte(quote)
					case 'n':
						tok.WriteByte('\n')
					default:
						tok.WriteByte('\\')
						tok.WriteByte(text[i+1])
					}
					i += 2
					continue
				}
				if c == quote {
					closed = true
					i++
					break
				}
				tok.WriteByte(c)
				i++
			}
			if !closed {
				return nil, malformed(text, "unbalanced quote")
			}
		} else {
			for i < len(text) {
				c := text[i]
				if c == '\\' && i+1 < len(text) {
					tok.WriteByte(c)
					tok.WriteByte(text[i+1])
					i += 2
					continue
				}
				if c == delim {
					break
				}
				tok.WriteByte(c)
				i++
			}
		}
		tokens = append(tokens, tok.String())
	}
	return tokens, nil
}

// Quote wraps s in protocol quotes for embedding in a command line.
// The quote character is escaped as backslash-quote and newlines as
// backslash-n; all other characters are emitted verbatim, matching what
// ParseLineWith decodes.
//
// Strings containing backslashes do not round-trip: a backslash is
// emitted verbatim and the decoder treats it as the start of an escape,
// so it can swallow the following character or the closing quote.
// Callers embedding arbitrary names must reject or strip backslashes
// first.
func Quote(s string) string {
	return QuoteWith(s, DefaultQuote)
}

// QuoteWith is Quote with an explicit quote character.
func QuoteWith(s string, quote byte) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(quote)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case quote:
			b.WriteByte('\\')
			b.WriteByte(quote)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(s[i])
		}
	}
	b.WriteByte(quote)
	return b.String()
}
