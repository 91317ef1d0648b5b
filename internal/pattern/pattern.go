// Package pattern implements the date pattern shared by index naming and
// index retention.
//
// The grammar is deliberately small:
//
//	yyyy   four digit year
//	MM     two digit month
//	dd     two digit day of month
//	'...'  quoted literal text ('' is a literal quote)
//
// Any other non-letter character is literal. Unquoted letters outside the
// tokens above are rejected, so "logs-yyyy.MM.dd" must be written as
// "'logs-'yyyy.MM.dd".
package pattern

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type kind int

const (
	literal kind = iota
	year
	month
	day
)

type segment struct {
	kind kind
	text string
}

func (s segment) width() int {
	if s.kind == year {
		return 4
	}
	return 2
}

// Pattern is a compiled index name pattern.
type Pattern struct {
	src      string
	segments []segment
}

// ErrEmpty is returned by Compile for an empty pattern.
var ErrEmpty = errors.New("empty index name pattern")

// Compile parses src into a Pattern. The pattern must contain each of the
// year, month and day tokens exactly once so that formatting and parsing
// round-trip to the same calendar date.
func Compile(src string) (*Pattern, error) {
	if src == "" {
		return nil, ErrEmpty
	}
	p := &Pattern{src: src}
	seen := map[kind]int{}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			p.segments = append(p.segments, segment{kind: literal, text: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '\'':
			end := i + 1
			for {
				j := strings.IndexByte(src[end:], '\'')
				if j < 0 {
					return nil, fmt.Errorf("pattern %q: unterminated quote at offset %d", src, i)
				}
				lit.WriteString(src[end : end+j])
				end += j + 1
				// '' inside a quoted section is an escaped quote
				if end < len(src) && src[end] == '\'' {
					lit.WriteByte('\'')
					end++
					continue
				}
				break
			}
			if end == i+2 {
				// a bare '' outside quotes
				lit.WriteByte('\'')
			}
			i = end
		case isLetter(c):
			j := i
			for j < len(src) && src[j] == c {
				j++
			}
			run := src[i:j]
			var k kind
			switch run {
			case "yyyy":
				k = year
			case "MM":
				k = month
			case "dd":
				k = day
			default:
				return nil, fmt.Errorf("pattern %q: unsupported token %q (quote literal text)", src, run)
			}
			flush()
			p.segments = append(p.segments, segment{kind: k})
			seen[k]++
			i = j
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()
	for _, k := range []kind{year, month, day} {
		if seen[k] != 1 {
			return nil, fmt.Errorf("pattern %q: yyyy, MM and dd must each appear exactly once", src)
		}
	}
	return p, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(src string) *Pattern {
	p, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source pattern.
func (p *Pattern) String() string { return p.src }

// Format renders t, converted to UTC, through the pattern.
func (p *Pattern) Format(t time.Time) string {
	t = t.UTC()
	var b strings.Builder
	for _, s := range p.segments {
		switch s.kind {
		case literal:
			b.WriteString(s.text)
		case year:
			fmt.Fprintf(&b, "%04d", t.Year())
		case month:
			fmt.Fprintf(&b, "%02d", int(t.Month()))
		case day:
			fmt.Fprintf(&b, "%02d", t.Day())
		}
	}
	return b.String()
}

// Parse matches name against the pattern and returns the calendar date it
// encodes at midnight UTC. ok is false when name does not match the pattern
// or encodes an impossible date.
func (p *Pattern) Parse(name string) (date time.Time, ok bool) {
	var y, m, d int
	rest := name
	for _, s := range p.segments {
		if s.kind == literal {
			if !strings.HasPrefix(rest, s.text) {
				return time.Time{}, false
			}
			rest = rest[len(s.text):]
			continue
		}
		w := s.width()
		if len(rest) < w || !allDigits(rest[:w]) {
			return time.Time{}, false
		}
		n, err := strconv.Atoi(rest[:w])
		if err != nil {
			return time.Time{}, false
		}
		rest = rest[w:]
		switch s.kind {
		case year:
			y = n
		case month:
			m = n
		case day:
			d = n
		}
	}
	if rest != "" {
		return time.Time{}, false
	}
	date = time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if date.Year() != y || int(date.Month()) != m || date.Day() != d {
		return time.Time{}, false
	}
	return date, true
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
