package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWordStampsFlattensSegments(t *testing.T) {
	data := []byte(`{
		"segments": [
			{"words": [
				{"word": " He ", "start": 0.0, "end": 0.3},
				{"word": "opened", "start": 0.3, "end": 0.8}
			]},
			{"words": [
				{"word": "the", "start": 0.8, "end": 1.0},
				{"word": "door", "start": 1.0, "end": 1.4}
			]}
		]
	}`)
	words, err := parseWordStamps(data)
	require.NoError(t, err)
	require.Len(t, words, 4)
	assert.Equal(t, "He", words[0].Word, "words are trimmed")
	assert.Equal(t, "door", words[3].Word)
	assert.Equal(t, 1.4, words[3].End)
}

func TestParseWordStampsRepairsRegressions(t *testing.T) {
	data := []byte(`{
		"segments": [
			{"words": [
				{"word": "one", "start": 0.0, "end": 0.5},
				{"word": "two", "start": 0.45, "end": 0.4},
				{"word": "three", "start": 0.9, "end": 1.2}
			]}
		]
	}`)
	words, err := parseWordStamps(data)
	require.NoError(t, err)
	for i := 1; i < len(words); i++ {
		assert.GreaterOrEqual(t, words[i].Start, words[i-1].Start)
		assert.GreaterOrEqual(t, words[i].End, words[i].Start)
	}
}

func TestParseWordStampsDropsEmptyWords(t *testing.T) {
	data := []byte(`{
		"segments": [
			{"words": [
				{"word": "  ", "start": 0.0, "end": 0.2},
				{"word": "hello", "start": 0.2, "end": 0.6}
			]}
		]
	}`)
	words, err := parseWordStamps(data)
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, "hello", words[0].Word)
}

func TestParseWordStampsRejectsEmptyTranscript(t *testing.T) {
	_, err := parseWordStamps([]byte(`{"segments": []}`))
	assert.Error(t, err)

	_, err = parseWordStamps([]byte(`not json`))
	assert.Error(t, err)
}
