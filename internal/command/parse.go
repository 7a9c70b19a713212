// Package command splits a free-text command line into a program and its
// arguments.
package command

import "strings"

// Parse splits line into a program name and argument list.
//
// Tokens are separated by unquoted spaces; runs of spaces never produce
// empty tokens. Single or double quotes group characters, including spaces,
// into one token and are themselves dropped. A backslash takes the next
// character literally, inside quotes as well. Adjacent quoted and unquoted
// segments join into a single token, so a"b"c yields abc.
//
// Parse never fails: an unterminated quote runs to the end of the line.
// An empty or blank line yields ("", nil).
func Parse(line string) (string, []string) {
	var (
		tokens  []string
		current strings.Builder
		quote   byte // active quote character, 0 when outside quotes
	)

	// Every special character is ASCII, so scanning bytes leaves
	// multi-byte and invalid UTF-8 sequences untouched.
	for i := 0; i < len(line); i++ {
		c := line[i]

		switch {
		case c == '\\' && i+1 < len(line):
			i++
			current.WriteByte(line[i])
		case quote == 0 && (c == '"' || c == '\''):
			quote = c
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && c == ' ':
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			current.WriteByte(c)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	if len(tokens) == 0 {
		return "", nil
	}
	return tokens[0], tokens[1:]
}
