package osc

import (
	"regexp"
	"strings"
)

// patternToRegexp turns an OSC address pattern into a regular expression.
// Wildcards never cross a '/' boundary, and ',' separates alternatives only
// inside '{...}'.
func patternToRegexp(pattern string) string {
	var sb strings.Builder
	braces, inBracket := 0, false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if inBracket {
			switch c {
			case ']':
				inBracket = false
				sb.WriteByte(c)
			case '\\':
				sb.WriteString(`\\`)
			default:
				sb.WriteByte(c)
			}
			continue
		}
		switch {
		case c == '*':
			sb.WriteString("[^/]*")
		case c == '?':
			sb.WriteString("[^/]")
		case c == '[':
			inBracket = true
			sb.WriteByte('[')
			if i+1 < len(pattern) && pattern[i+1] == '!' {
				sb.WriteByte('^')
				i++
			}
		case c == '{':
			braces++
			sb.WriteString("(?:")
		case c == '}' && braces > 0:
			braces--
			sb.WriteByte(')')
		case c == ',' && braces > 0:
			sb.WriteByte('|')
		default:
			sb.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
		}
	}
	return sb.String()
}

// Pattern is a compiled OSC address pattern.
type Pattern struct {
	source string
	re     *regexp.Regexp
}

// CompilePattern compiles an OSC address pattern such as "/mixer/*/fader"
// or "/key/{1,2}".
func CompilePattern(pattern string) (*Pattern, error) {
	re, err := regexp.Compile("^(?:" + patternToRegexp(pattern) + ")$")
	if err != nil {
		return nil, err
	}
	return &Pattern{source: pattern, re: re}, nil
}

// Match reports whether the concrete address addr is selected by the pattern.
func (p *Pattern) Match(addr string) bool {
	return p.re.MatchString(addr)
}

// String returns the pattern source.
func (p *Pattern) String() string {
	return p.source
}
