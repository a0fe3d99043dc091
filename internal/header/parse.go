// Package header reads version macros out of a C firmware header.
//
// Only quoted string definitions are recognised, one per line:
//
//	line  := ws* "#" ws* "define" ws+ NAME ws+ '"' VALUE '"' rest
//	NAME  := [A-Za-z_][A-Za-z0-9_]*
//	VALUE := one or more characters other than '"'
//
// Anything after the closing quote is ignored. Lines that do not match the
// grammar (numeric defines, includes, code) are skipped.
package header

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// bom is the UTF-8 byte order mark some editors put at the start of a file.
const bom = "\ufeff"

// Define is a quoted string definition found in a header.
type Define struct {
	Name  string
	Value string
	Line  int
}

// Defines is the ordered list of definitions in a header.
type Defines []Define

// Lookup returns the value of the first definition of name.
func (d Defines) Lookup(name string) (string, bool) {
	for _, def := range d {
		if def.Name == name {
			return def.Value, true
		}
	}
	return "", false
}

// Parse scans r line by line and collects every quoted string definition.
// Lines have no length limit. A leading byte order mark is ignored. On a read
// error the definitions collected so far are returned with the error.
func Parse(r io.Reader) (Defines, error) {
	var defs Defines

	br := bufio.NewReader(r)
	lineNo := 0
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			lineNo++
			if lineNo == 1 {
				line = strings.TrimPrefix(line, bom)
			}
			line = strings.TrimRight(line, "\r\n")
			if name, value, ok := ParseLine(line); ok {
				defs = append(defs, Define{Name: name, Value: value, Line: lineNo})
			}
		}

		if err == io.EOF {
			return defs, nil
		}
		if err != nil {
			return defs, fmt.Errorf("read header line %d: %w", lineNo+1, err)
		}
	}
}

// ParseLine parses a single header line.
// ok is false when the line is not a quoted string definition.
func ParseLine(line string) (name, value string, ok bool) {
	s := trimSpace(line)
	if !strings.HasPrefix(s, "#") {
		return "", "", false
	}

	s = trimSpace(s[1:])
	if !strings.HasPrefix(s, "define") {
		return "", "", false
	}

	s, ok = skipSpace(s[len("define"):])
	if !ok {
		return "", "", false
	}

	n := identLen(s)
	if n == 0 {
		return "", "", false
	}
	name = s[:n]

	s, ok = skipSpace(s[n:])
	if !ok || !strings.HasPrefix(s, `"`) {
		return "", "", false
	}

	s = s[1:]
	end := strings.IndexByte(s, '"')
	if end <= 0 {
		return "", "", false
	}

	return name, s[:end], true
}

func trimSpace(s string) string {
	return strings.TrimLeft(s, " \t")
}

// skipSpace strips leading blanks and reports whether there was at least one.
func skipSpace(s string) (string, bool) {
	t := trimSpace(s)
	return t, len(t) < len(s)
}

// identLen returns the length of the C identifier at the start of s.
func identLen(s string) int {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return i
		}
	}
	return len(s)
}
