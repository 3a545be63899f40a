package otp

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPatterns are tried in order; specific phrasings come before the bare-digits
// fallback so incidental numbers (phone numbers, dates) lose to a labelled code.
var DefaultPatterns = []string{
	`OTP code is[:\s]*([0-9]{4,8})`,
	`Your One[- ]Time Password.*?([0-9]{4,8})`,
	`Your OTP code is[:\s]*([0-9]{4,8})`,
	`\b([0-9]{4,8})\b`,
}

// CompilePatterns compiles expressions case-insensitively with dot matching
// newlines. Every expression must have a capture group; the first group is the code.
func CompilePatterns(exprs []string) ([]*regexp.Regexp, error) {
	if len(exprs) == 0 {
		exprs = DefaultPatterns
	}
	out := make([]*regexp.Regexp, 0, len(exprs))
	for i, expr := range exprs {
		re, err := regexp.Compile("(?is)" + expr)
		if err != nil {
			return nil, fmt.Errorf("otp pattern %d (%q): %w", i, expr, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("otp pattern %d (%q) has no capture group", i, expr)
		}
		out = append(out, re)
	}
	return out, nil
}

var defaultCompiled = mustCompile(DefaultPatterns)

func mustCompile(exprs []string) []*regexp.Regexp {
	res, err := CompilePatterns(exprs)
	if err != nil {
		panic(err)
	}
	return res
}

// Match returns the first group of the first pattern that matches. When the text
// looks like HTML, its visible text is tried before the raw markup for each pattern.
func Match(patterns []*regexp.Regexp, text string) (string, bool) {
	if text == "" {
		return "", false
	}
	if len(patterns) == 0 {
		patterns = defaultCompiled
	}
	candidates := []string{text}
	if looksLikeHTML(text) {
		if visible := VisibleText(text); visible != "" {
			candidates = []string{visible, text}
		}
	}
	for _, re := range patterns {
		for _, c := range candidates {
			if m := re.FindStringSubmatch(c); len(m) > 1 && m[1] != "" {
				return m[1], true
			}
		}
	}
	return "", false
}

func looksLikeHTML(s string) bool {
	i := strings.IndexByte(s, '<')
	return i >= 0 && strings.IndexByte(s[i:], '>') > 0
}
