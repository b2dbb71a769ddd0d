package reference

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var seqPadRe = regexp.MustCompile(`\{SEQ(\d+)\}`)

// Format renders a reference template such as "Q-{YYYY}{MM}-{SEQ4}".
// Supported tokens: {YYYY} {YY} {MM} {DD} {SEQ} {SEQn}.
func Format(template string, issuedAt time.Time, seq int64) (string, error) {
	if template == "" {
		return "", ErrEmptyTemplate
	}
	if seq <= 0 {
		return "", fmt.Errorf("invalid reference sequence: %d", seq)
	}

	out := template
	out = strings.ReplaceAll(out, "{YYYY}", issuedAt.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", issuedAt.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", issuedAt.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", issuedAt.Format("02"))
	out = strings.ReplaceAll(out, "{SEQ}", strconv.FormatInt(seq, 10))

	out = seqPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := seqPadRe.FindStringSubmatch(m)
		if len(match) != 2 {
			return m
		}
		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 {
			return m
		}
		return fmt.Sprintf("%0*d", width, seq)
	})

	if strings.ContainsAny(out, "{}") {
		return "", fmt.Errorf("unresolved token in reference format: %s", out)
	}

	return out, nil
}

// Period returns the counter bucket implied by the finest date token in the
// template. A monthly template restarts numbering every month.
func Period(template string, at time.Time) string {
	switch {
	case strings.Contains(template, "{DD}"):
		return at.Format("20060102")
	case strings.Contains(template, "{MM}"):
		return at.Format("200601")
	case strings.Contains(template, "{YYYY}"), strings.Contains(template, "{YY}"):
		return at.Format("2006")
	default:
		return "all"
	}
}
