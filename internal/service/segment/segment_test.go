package segment

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertBounded(t *testing.T, chunks []string, maxLen int) {
	t.Helper()
	for i, chunk := range chunks {
		assert.NotEmpty(t, chunk, "chunk %d is empty", i)
		if n := utf8.RuneCountInString(chunk); n > maxLen {
			// only a single oversized word may exceed the limit
			assert.Len(t, strings.Fields(chunk), 1, "chunk %d has %d chars", i, n)
		}
	}
}

func assertReconstructs(t *testing.T, text string, chunks []string) {
	t.Helper()
	assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(chunks, " ")))
}

func TestSplitShortTextIsSingleChunk(t *testing.T) {
	for _, text := range []string{"", "oi", "  padded  ", strings.Repeat("a", 300)} {
		assert.Equal(t, []string{text}, Split(text, 300))
	}
}

func TestSplitNonPositiveLimitDisablesSplitting(t *testing.T) {
	text := strings.Repeat("word ", 200)
	assert.Equal(t, []string{text}, Split(text, 0))
}

func TestSplitLongParagraphWithoutBreaks(t *testing.T) {
	words := make([]string, 0, 113)
	for i := 0; i < 113; i++ {
		words = append(words, "workout")
	}
	text := strings.Join(words, " ")
	require.GreaterOrEqual(t, len(text), 900)

	chunks := Split(text, 300)

	assert.GreaterOrEqual(t, len(chunks), 3)
	assert.LessOrEqual(t, len(chunks), 4)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 300)
		for _, w := range strings.Fields(chunk) {
			assert.Equal(t, "workout", w, "word split mid-stream")
		}
	}
	assertReconstructs(t, text, chunks)
}

func TestSplitPacksParagraphs(t *testing.T) {
	p1 := strings.Repeat("a", 120)
	p2 := strings.Repeat("b", 120)
	p3 := strings.Repeat("c", 120)
	text := p1 + "\n\n" + p2 + "\n\n" + p3

	chunks := Split(text, 300)

	require.Len(t, chunks, 2)
	assert.Equal(t, p1+"\n\n"+p2, chunks[0])
	assert.Equal(t, p3, chunks[1])
}

func TestSplitFallsBackToSentences(t *testing.T) {
	sentence := "Seu treino personalizado fica pronto em minutos e se adapta ao seu corpo."
	text := strings.Repeat(sentence+" ", 10)

	chunks := Split(text, 160)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 160)
		assert.True(t, strings.HasSuffix(chunk, "."), "chunk should end on a sentence: %q", chunk)
	}
	assertReconstructs(t, text, chunks)
}

func TestSplitOversizedWordIsOwnChunk(t *testing.T) {
	long := strings.Repeat("x", 50)
	text := "short words " + long + " tail"

	chunks := Split(text, 20)

	assert.Equal(t, []string{"short words", long, "tail"}, chunks)
	assertBounded(t, chunks, 20)
}

func TestSplitCountsCharactersNotBytes(t *testing.T) {
	text := strings.Repeat("ção ", 30)
	require.Greater(t, len(text), 100)
	require.LessOrEqual(t, utf8.RuneCountInString(text), 120)

	assert.Len(t, Split(text, 120), 1)
}

func TestSplitMixedStructure(t *testing.T) {
	text := "Olá! Eu sou a Aleen.\n\n" +
		strings.Repeat("Cada plano considera sua rotina, seu objetivo e seu nível atual. ", 8) +
		"\n\n" + strings.Repeat("supercalifragilistic ", 3) + "\n\nAté logo!"

	chunks := Split(text, 100)

	assertBounded(t, chunks, 100)
	assertReconstructs(t, text, chunks)
	assert.True(t, strings.HasPrefix(chunks[0], "Olá! Eu sou a Aleen.\n\nCada plano"), chunks[0])
	assert.True(t, strings.HasSuffix(chunks[len(chunks)-1], "Até logo!"))
}

func TestSplitWhitespaceOnly(t *testing.T) {
	assert.Empty(t, Split(strings.Repeat(" \n\n ", 50), 10))
}

func TestSentences(t *testing.T) {
	got := Sentences("Hi there! How are you? Fine. 3.5kg is fine.")
	assert.Equal(t, []string{"Hi there!", "How are you?", "Fine.", "3.5kg is fine."}, got)
}
