package postprocess

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reFree   = regexp.MustCompile(`(?i)free`)
	reDollar = regexp.MustCompile(`\$(\d+)`)
)

// NormalizePrice returns the first dollar amount in text as a baseline for
// sorting and filtering. Free, blank and unrecognised prices are all 0, so a
// zero result does not prove the event costs nothing; keep the text for display.
func NormalizePrice(text string) int {
	if strings.TrimSpace(text) == "" || reFree.MatchString(text) {
		return 0
	}
	m := reDollar.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// DisplayPrice is the text shown next to an event, TBA when the listing had none.
func DisplayPrice(text string, unknown string) string {
	if t := strings.TrimSpace(text); t != "" {
		return t
	}
	return unknown
}
