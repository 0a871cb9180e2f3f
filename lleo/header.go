package lleo

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
)

const (
	keyStartDate = "Start date"
	keyStartTime = "Start time"
	keyInterval  = "Interval(Sec)"
	keyDataSize  = "Data size"
)

// Start date/time layouts seen in logger exports. Colons are stripped from the
// header before parsing.
var startLayouts = []string{
	"2006/01/02 150405",
	"02/01/2006 150405",
	"01/02/2006 030405 PM",
	"02/01/2006 030405 PM",
}

// Header is the parsed header block of one channel file.
type Header struct {
	Channel string
	Fields  map[string]string
	Lines   int
}

func (h *Header) Start() (time.Time, error) {
	date, okD := h.Fields[keyStartDate]
	clock, okT := h.Fields[keyStartTime]
	if !okD || !okT {
		return time.Time{}, fmt.Errorf("%s: header missing %q or %q", h.Channel, keyStartDate, keyStartTime)
	}
	return parseStart(date, clock)
}

func (h *Header) Interval() (float64, error) {
	v, ok := h.Fields[keyInterval]
	if !ok {
		return 0, fmt.Errorf("%s: header missing %q", h.Channel, keyInterval)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("%s: bad %s %q", h.Channel, keyInterval, v)
	}
	return f, nil
}

func parseStart(date, clock string) (time.Time, error) {
	s := date + " " + clock
	for _, layout := range startLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized start date/time %q", s)
}

// decode wraps r so that ISO-8859-1 bytes come out as UTF-8.
func decode(r io.Reader) io.Reader {
	return charmap.ISO8859_1.NewDecoder().Reader(r)
}

func parseHeaderLine(line string) (key, val string) {
	line = strings.NewReplacer(":", "", `"`, "").Replace(line)
	parts := strings.SplitN(line, ",", 2)
	key = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		val = strings.TrimSpace(parts[1])
	}
	return key, val
}

// isDataLine reports whether the first field of line is a number.
func isDataLine(line string) bool {
	f := firstField(line)
	if f == "" {
		return false
	}
	_, err := strconv.ParseFloat(f, 64)
	return err == nil
}

func firstField(line string) string {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == ';'
	})
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ReadChannelFile reads one channel export: a "File name" line, a channel
// name line, key/value header lines, then one sample per line.
func ReadChannelFile(r io.Reader) (*Header, []float64, error) {
	sc := bufio.NewScanner(decode(r))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	h := &Header{Fields: make(map[string]string)}
	var values []float64
	inData := false
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if !inData {
			if isDataLine(line) {
				inData = true
				h.Lines = lineNum - 1
			} else {
				switch lineNum {
				case 1:
					// file name
				case 2:
					_, h.Channel = parseHeaderLine(line)
				default:
					if line != "" {
						k, v := parseHeaderLine(line)
						h.Fields[k] = v
					}
				}
				continue
			}
		}
		f := firstField(line)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	if !inData {
		h.Lines = lineNum
	}
	return h, values, nil
}

// sumBlocks sums consecutive blocks of n samples, dropping a trailing partial
// block.
func sumBlocks(values []float64, n int) []float64 {
	if n <= 1 {
		return values
	}
	out := make([]float64, 0, len(values)/n)
	for i := 0; i+n <= len(values); i += n {
		sum := 0.0
		for _, v := range values[i : i+n] {
			sum += v
		}
		out = append(out, sum)
	}
	return out
}
