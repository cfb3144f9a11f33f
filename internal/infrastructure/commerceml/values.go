package commerceml

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// DateLayouts are the only date formats the exchange produces.
var DateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"02.01.2006",
}

var decimalPattern = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)

// digit group separators 1C writes into numbers
var numberSpaces = strings.NewReplacer(
	" ", "",
	"\u00a0", "",
	"\u202f", "",
	"\u2009", "",
	"\t", "",
)

var errEmptyNumber = errors.New("empty number")

// ParseDecimal parses a number independent of locale: group spaces are
// dropped and a comma decimal separator is accepted.
func ParseDecimal(s string) (decimal.Decimal, error) {
	clean := numberSpaces.Replace(strings.TrimSpace(s))
	if clean == "" {
		return decimal.Zero, errEmptyNumber
	}
	clean = strings.Replace(clean, ",", ".", 1)
	if !decimalPattern.MatchString(clean) {
		return decimal.Zero, fmt.Errorf("invalid number %q", s)
	}
	return decimal.NewFromString(clean)
}

// ParseDate parses s with one of DateLayouts in loc and returns it in UTC.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range DateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// charsetReader decodes the single-byte Cyrillic code pages 1C may emit.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-8", "utf8", "":
		return input, nil
	case "windows-1251", "cp1251", "cp-1251":
		return transform.NewReader(input, charmap.Windows1251.NewDecoder()), nil
	case "koi8-r":
		return transform.NewReader(input, charmap.KOI8R.NewDecoder()), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, label)
}

// sizeLimitedReader fails with ErrDocumentTooLarge instead of silently
// truncating like io.LimitReader.
type sizeLimitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *sizeLimitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		// allow a clean EOF exactly at the limit
		var one [1]byte
		n, err := l.r.Read(one[:])
		if n > 0 {
			return 0, ErrDocumentTooLarge
		}
		return 0, err
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	return n, err
}
