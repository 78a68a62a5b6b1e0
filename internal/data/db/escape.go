package db

import (
	"errors"
	"strings"
	"unicode/utf8"
)

var errInvalidUTF8 = errors.New("input is not valid UTF-8")

// escapeMySQL mirrors mysql_real_escape_string for a utf8mb4 connection.
// The output is at most twice the length of the input.
func escapeMySQL(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case 0:
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		case 0x1a:
			b.WriteString(`\Z`)
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

// escapeQuotes doubles single quotes, the standard-conforming string escape
// used by postgres and sqlite.
func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func escape(driver Driver, s string) (string, error) {
	if !utf8.ValidString(s) {
		return "", errInvalidUTF8
	}

	switch driver {
	case DriverMySQL:
		return escapeMySQL(s), nil
	default:
		if strings.IndexByte(s, 0) >= 0 {
			return "", errors.New("input contains a NUL byte")
		}
		return escapeQuotes(s), nil
	}
}
