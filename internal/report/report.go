// Package report formats controller status lines and decodes the single
// byte commands a host sends over the serial link.
package report

import (
	"io"
	"strconv"
	"strings"

	"codeberg.org/mutker/fanctl/internal/control"
	"codeberg.org/mutker/fanctl/internal/errors"
)

const (
	tempPrefix = "T: "
	tempSuffix = "°C, D: "
)

// AppendStatus appends the status line for s, without a line terminator:
//
//	T: 41°C, D:  60.00%
func AppendStatus(dst []byte, s control.Status) []byte {
	pm := s.Permyriad()

	dst = append(dst, tempPrefix...)
	dst = strconv.AppendInt(dst, int64(s.Temperature.Int()), 10)
	dst = append(dst, tempSuffix...)
	dst = appendPadded(dst, pm/100, 3, ' ')
	dst = append(dst, '.')
	dst = appendPadded(dst, pm%100, 2, '0')

	return append(dst, '%')
}

// Format returns the status line for s.
func Format(s control.Status) string {
	return string(AppendStatus(make([]byte, 0, 32), s))
}

func appendPadded(dst []byte, v uint32, width int, pad byte) []byte {
	var buf [10]byte
	digits := strconv.AppendUint(buf[:0], uint64(v), 10)
	for i := len(digits); i < width; i++ {
		dst = append(dst, pad)
	}

	return append(dst, digits...)
}

// Reading is a status line decoded on the host.
type Reading struct {
	// Temperature in whole °C, as rounded by the controller.
	Temperature int
	// Permyriad is the duty in hundredths of a percent.
	Permyriad int
}

// DutyPercent returns the duty as a percentage.
func (r Reading) DutyPercent() float64 {
	return float64(r.Permyriad) / 100
}

// Parse decodes a status line produced by AppendStatus. Surrounding
// whitespace and a trailing CR are ignored.
func Parse(line string) (Reading, error) {
	errFactory := errors.New()
	malformed := func() (Reading, error) {
		return Reading{}, errFactory.WithData(errors.ErrMalformedLine, strconv.Quote(line))
	}

	s := strings.TrimSpace(line)
	if !strings.HasPrefix(s, tempPrefix) || !strings.HasSuffix(s, "%") {
		return malformed()
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, tempPrefix), "%")

	temp, duty, ok := strings.Cut(s, tempSuffix)
	if !ok {
		return malformed()
	}

	t, err := strconv.Atoi(temp)
	if err != nil {
		return malformed()
	}

	whole, frac, ok := strings.Cut(strings.TrimSpace(duty), ".")
	if !ok || len(frac) != 2 {
		return malformed()
	}
	w, err := strconv.Atoi(whole)
	if err != nil || w < 0 {
		return malformed()
	}
	f, err := strconv.Atoi(frac)
	if err != nil || f < 0 {
		return malformed()
	}

	return Reading{Temperature: t, Permyriad: w*100 + f}, nil
}

// WriteStatus writes the status line and a newline to w. Partial writes are not
// retried; the next periodic report supersedes a lost one.
func WriteStatus(w io.Writer, s control.Status) error {
	var buf [48]byte
	line := append(AppendStatus(buf[:0], s), '\n')

	_, err := w.Write(line)
	return err
}
