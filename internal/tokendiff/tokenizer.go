package tokendiff

import "regexp"

// Tokenizer splits revision text into the token list that the diff engine
// operates over. Swapping the Tokenizer is how a caller plugs in a different
// tokenization scheme without touching the diff algorithm (spec §9, "Diff
// engine plug-ability").
type Tokenizer func(text string) []string

// tokenPattern splits text into maximal runs of whitespace or non-whitespace,
// so joining the returned tokens back together losslessly reconstructs the
// original text. This mirrors the word-and-whitespace tokenization used by
// the reference Python 'deltas' tokenizers this engine replaces.
var tokenPattern = regexp.MustCompile(`\s+|\S+`)

// DefaultTokenizer is the whitespace/non-whitespace run tokenizer used when
// no Tokenizer is configured.
func DefaultTokenizer(text string) []string {
	if text == "" {
		return nil
	}

	return tokenPattern.FindAllString(text, -1)
}
