// Package segment breaks oversized replies into chunks that fit a channel's
// length limit, preferring paragraph, then sentence, then word boundaries.
package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	paragraphSep = "\n\n"
	wordSep      = " "
)

// Split returns text as an ordered list of chunks of at most maxLen
// characters. A single word longer than maxLen is emitted on its own and is
// the only case where a chunk exceeds the limit. maxLen <= 0 disables
// splitting. Oversized text made only of whitespace yields no chunks.
func Split(text string, maxLen int) []string {
	if maxLen <= 0 || utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	b := &builder{max: maxLen}
	for _, paragraph := range strings.Split(text, paragraphSep) {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		if length(paragraph) <= maxLen {
			b.add(paragraph, paragraphSep)
			continue
		}

		// the first unit of a paragraph keeps the paragraph separator
		sep := paragraphSep
		for _, sentence := range Sentences(paragraph) {
			if length(sentence) <= maxLen {
				b.add(sentence, sep)
				sep = wordSep
				continue
			}
			for _, word := range strings.Fields(sentence) {
				b.add(word, sep)
				sep = wordSep
			}
		}
	}
	b.flush()
	return b.chunks
}

// Sentences splits text after '.', '!' or '?' when followed by whitespace.
// The terminal punctuation stays with its sentence; the whitespace is dropped.
func Sentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		end := i + utf8.RuneLen(r)
		next, size := utf8.DecodeRuneInString(text[end:])
		if size == 0 || !unicode.IsSpace(next) {
			continue
		}
		if s := strings.TrimSpace(text[start:end]); s != "" {
			out = append(out, s)
		}
		start = end
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

type builder struct {
	max     int
	chunks  []string
	current strings.Builder
	size    int
}

// add appends unit to the chunk being assembled, joined by sep, or flushes
// and starts a new chunk with unit when it would not fit.
func (b *builder) add(unit, sep string) {
	n := length(unit)
	if b.size == 0 {
		b.current.WriteString(unit)
		b.size = n
		return
	}
	if b.size+length(sep)+n > b.max {
		b.flush()
		b.current.WriteString(unit)
		b.size = n
		return
	}
	b.current.WriteString(sep)
	b.current.WriteString(unit)
	b.size += length(sep) + n
}

func (b *builder) flush() {
	if chunk := strings.TrimSpace(b.current.String()); chunk != "" {
		b.chunks = append(b.chunks, chunk)
	}
	b.current.Reset()
	b.size = 0
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}
