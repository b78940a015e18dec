package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateTitle_ShortQuestionUnchanged(t *testing.T) {
	require.Equal(t, "What is the MOQ for lanyards?", GenerateTitle("What is the MOQ for lanyards?"))
}

func TestGenerateTitle_TrimsAndSanitizes(t *testing.T) {
	require.Equal(t, "Hello world! Is this really 1?", GenerateTitle("  Hello, world!   Is this (really) #1?\n"))
	require.Equal(t, "multi line question", GenerateTitle("multi\n\tline   question"))
	require.Equal(t, "", GenerateTitle("   "))
}

func TestGenerateTitle_TruncatesAtWordBoundary(t *testing.T) {
	in := "How do I order custom printed lanyards with our company logo for the next events"
	require.Len(t, in, 80)

	title := GenerateTitle(in)
	require.Equal(t, "How do I order custom printed lanyards with...", title)
	require.LessOrEqual(t, len(title), maxTitleLength)
}

func TestGenerateTitle_HardCutWhenNoLateSpace(t *testing.T) {
	require.Equal(t,
		"Supercalifragilisticexpialidocious_and_more_wor...",
		GenerateTitle("Supercalifragilisticexpialidocious_and_more_words_without_any_spaces_here ok"),
	)
	// the only spaces sit before index 20, so the cut is hard
	require.Equal(t,
		"Short prefix then averyveryveryverylongwordthat...",
		GenerateTitle("Short prefix then averyveryveryverylongwordthatkeepsgoingandgoingandgoing"),
	)
}

func TestGenerateTitle_ExactlyFiftyCharacters(t *testing.T) {
	in := "abcdefghij abcdefghij abcdefghij abcdefghij abcdefg"
	require.Len(t, in, 51)
	require.Equal(t, in[:50], GenerateTitle(in[:50]))
}
