package installer

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// numberPattern matches, in order of preference, integers with thousands
// groups separated by comma, dot, apostrophe or a space ("1,204", "1.204",
// "1'204", "1 204"), decimals ("4.5", "4,8") and plain integers.
var numberPattern = regexp.MustCompile(`(\d{1,3}(?:[,.' ’]\d{3})+\b)|(\d+[.,]\d+)|(\d+)`)

// ratingSuffixes mark a number as a star rating or its scale when they follow it.
var ratingSuffixes = []string{"star", "stern", "★", "☆", "out of", "von", "/"}

// ratingPrefixes mark a number as the scale of a rating ("4 out of 5", "4/5").
var ratingPrefixes = []string{"out of", "von", "/"}

// ParseReviewCount extracts a review count from free text such as
// "(1,204 reviews)", "87 Bewertungen", "4.5 stars (120)" or "312". Decimals
// and numbers that belong to a rating are ignored. A number in parentheses
// wins, then the last number followed by a word, then the last number.
// Returns 0 when nothing parses.
func ParseReviewCount(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	var inParens, beforeWord, last []int
	for _, loc := range numberPattern.FindAllStringSubmatchIndex(text, -1) {
		if loc[4] >= 0 {
			continue
		}
		start, end := loc[0], loc[1]
		if isRating(text[:start], text[end:]) {
			continue
		}
		span := []int{start, end}
		last = span
		if parenDepth(text[:start]) > 0 {
			inParens = span
		}
		if followedByWord(text[end:]) {
			beforeWord = span
		}
	}

	pick := last
	switch {
	case inParens != nil:
		pick = inParens
	case beforeWord != nil:
		pick = beforeWord
	}
	if pick == nil {
		return 0
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, text[pick[0]:pick[1]])

	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

func isRating(before, after string) bool {
	after = strings.ToLower(strings.TrimLeft(after, " \t"))
	for _, s := range ratingSuffixes {
		if strings.HasPrefix(after, s) {
			return true
		}
	}
	before = strings.ToLower(strings.TrimRight(before, " \t"))
	for _, p := range ratingPrefixes {
		if strings.HasSuffix(before, p) {
			return true
		}
	}
	return false
}

func parenDepth(s string) int {
	return strings.Count(s, "(") - strings.Count(s, ")")
}

func followedByWord(rest string) bool {
	rest = strings.TrimLeft(rest, " \t")
	for _, r := range rest {
		return unicode.IsLetter(r)
	}
	return false
}
