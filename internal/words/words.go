// Package words supplies candidate target words for new games.
//
// Lists are one word per line, normalized to lowercase; non-alphabetic
// entries and words shorter than two letters are dropped. A small embedded
// list keeps the server usable when no file is configured.
package words

import (
	"bufio"
	"context"
	"crypto/rand"
	_ "embed"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/randomlysa/hangman-api/internal/domain"
)

//go:embed default_words.txt
var embeddedWords string

// Source draws uniformly random words within a length range.
type Source struct {
	words []string
}

// Load builds a Source from the given word file, or from the embedded
// default list when path is empty.
func Load(path string) (*Source, error) {
	if path == "" {
		return &Source{words: normalizeLines(embeddedWords)}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening word file: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if w, ok := normalize(sc.Text()); ok {
			out = append(out, w)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading word file: %w", err)
	}
	return &Source{words: out}, nil
}

// Count returns the number of loaded words.
func (s *Source) Count() int {
	return len(s.words)
}

// Pick returns a uniformly random word with minLetters <= len <= maxLetters,
// or ErrNoWordsAvailable when the filtered candidate set is empty.
func (s *Source) Pick(ctx context.Context, minLetters, maxLetters int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var candidates []string
	for _, w := range s.words {
		if len(w) >= minLetters && len(w) <= maxLetters {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		return "", domain.ErrNoWordsAvailable
	}

	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(candidates))))
	if err != nil {
		return "", fmt.Errorf("picking word: %w", err)
	}
	return candidates[n.Int64()], nil
}

func normalizeLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if w, ok := normalize(line); ok {
			out = append(out, w)
		}
	}
	return out
}

func normalize(line string) (string, bool) {
	w := strings.TrimSpace(strings.ToLower(line))
	if len(w) < 2 || !isAlpha(w) {
		return "", false
	}
	return w, true
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
