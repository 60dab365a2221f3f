package catalog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/metrics"
)

// ErrMalformed is wrapped by every element-set decoding error.
var ErrMalformed = errors.New("malformed element set")

// LineLength is the fixed width of an element-set line.
const LineLength = 69

var nameStrip = regexp.MustCompile(`[^\w\s-]`)

// Parse reads name-line plus two-line element text from r. A block may omit the
// name line, in which case the catalog number doubles as the name. Blocks with
// bad line prefixes or undecodable fields are skipped with a warning; the
// scanner resynchronizes on the next line that starts a plausible block.
func Parse(r io.Reader, source string, logger *slog.Logger) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", source, err)
	}

	var records []Record
	for i := 0; i+1 < len(lines); {
		name, line1, line2, width := block(lines, i)
		if width == 0 {
			logger.Warn("skipping malformed catalog entry", "source", source, "line_index", i, "text", lines[i])
			metrics.CatalogSkipped.Inc()
			i++
			continue
		}

		rec, err := NewRecord(name, line1, line2)
		if err != nil {
			logger.Warn("skipping undecodable catalog entry", "source", source, "line_index", i, "name", name, "error", err)
			metrics.CatalogSkipped.Inc()
			i += width
			continue
		}
		rec.Source = source
		records = append(records, rec)
		i += width
	}

	return records, nil
}

// ParseBytes is Parse over an in-memory source.
func ParseBytes(src Source, logger *slog.Logger) ([]Record, error) {
	return Parse(bytes.NewReader(src.Data), src.Name, logger)
}

// block identifies the element set starting at lines[i]. width is the number of
// lines consumed, or 0 if no block starts there.
func block(lines []string, i int) (name, line1, line2 string, width int) {
	if strings.HasPrefix(lines[i], "1 ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], "2 ") {
		return "", lines[i], lines[i+1], 2
	}
	if i+2 < len(lines) && strings.HasPrefix(lines[i+1], "1 ") && strings.HasPrefix(lines[i+2], "2 ") {
		return lines[i], lines[i+1], lines[i+2], 3
	}
	return "", "", "", 0
}

// NewRecord builds a classified record from a name and two element lines.
// The name is classified as given and stored sanitized.
func NewRecord(name, line1, line2 string) (Record, error) {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	id, el, err := DecodeElements(line1, line2)
	if err != nil {
		return Record{}, err
	}

	// Three-line sources often prefix the name line with "0 ".
	name = strings.TrimPrefix(strings.TrimSpace(name), "0 ")
	if name == "" {
		name = id
	}

	c := Classify(name)
	clean := SanitizeName(name)
	if clean == "" {
		clean = id
	}

	return Record{
		ID:       id,
		Name:     clean,
		Line1:    line1,
		Line2:    line2,
		Group:    c.Group,
		Operator: c.Operator,
		Mission:  c.Mission,
		Country:  c.Country,
		Elements: el,
		Inactive: c.Group == GroupDebris || LooksInactive(name),
	}, nil
}

// SanitizeName drops every character other than letters, digits, underscore,
// whitespace and hyphen, then trims.
func SanitizeName(name string) string {
	return strings.TrimSpace(nameStrip.ReplaceAllString(name, ""))
}

// DecodeElements validates both lines and decodes the catalog number and mean
// elements. Every field the SGP4 initializer reads is checked here, so a line
// pair that decodes cleanly is safe to hand to the propagator.
func DecodeElements(line1, line2 string) (string, Elements, error) {
	if len(line1) != LineLength {
		return "", Elements{}, fmt.Errorf("%w: line 1 length %d, expected %d", ErrMalformed, len(line1), LineLength)
	}
	if len(line2) != LineLength {
		return "", Elements{}, fmt.Errorf("%w: line 2 length %d, expected %d", ErrMalformed, len(line2), LineLength)
	}
	if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
		return "", Elements{}, fmt.Errorf("%w: bad line prefixes", ErrMalformed)
	}

	id := strings.TrimSpace(line1[2:7])
	if id == "" || strings.ContainsRune(id, ' ') {
		return "", Elements{}, fmt.Errorf("%w: bad catalog number %q", ErrMalformed, line1[2:7])
	}
	if id2 := strings.TrimSpace(line2[2:7]); id2 != id {
		return "", Elements{}, fmt.Errorf("%w: catalog number mismatch %q vs %q", ErrMalformed, id, id2)
	}
	// The SGP4 initializer reads the catalog number as an integer, so
	// alpha-5 designators are rejected here.
	if _, err := strconv.Atoi(id); err != nil {
		return "", Elements{}, fmt.Errorf("%w: bad catalog number %q", ErrMalformed, id)
	}

	epoch, err := parseEpoch(line1[18:32])
	if err != nil {
		return "", Elements{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var el Elements
	el.Epoch = epoch

	fields := []struct {
		name string
		text string
		dst  *float64
	}{
		{"mean motion derivative", line1[33:43], nil},
		{"second derivative", exponent(line1[44:52]), nil},
		{"bstar", exponent(line1[53:61]), &el.BStar},
		{"inclination", line2[8:16], &el.Inclination},
		{"raan", line2[17:25], &el.RAAN},
		{"eccentricity", "." + line2[26:33], &el.Eccentricity},
		{"argument of perigee", line2[34:42], &el.ArgPerigee},
		{"mean anomaly", line2[43:51], &el.MeanAnomaly},
		{"mean motion", line2[52:63], &el.MeanMotion},
	}
	for _, f := range fields {
		v, err := field(f.text)
		if err != nil {
			return "", Elements{}, fmt.Errorf("%w: %s: %v", ErrMalformed, f.name, err)
		}
		if f.dst != nil {
			*f.dst = v
		}
	}

	if el.MeanMotion <= 0 {
		return "", Elements{}, fmt.Errorf("%w: mean motion %g must be positive", ErrMalformed, el.MeanMotion)
	}

	return id, el, nil
}

// exponent expands the implied-decimal form "±NNNNN±E" to "±.NNNNNe±E".
func exponent(s string) string {
	return s[:1] + "." + s[1:6] + "e" + s[6:8]
}

// field parses a fixed-width numeric column. Leading padding of at most two
// spaces is accepted; interior blanks are not.
func field(s string) (float64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty field")
	}
	if strings.ContainsRune(trimmed, ' ') {
		return 0, fmt.Errorf("embedded blank in %q", s)
	}
	if len(s)-len(strings.TrimLeft(s, " ")) > 2 {
		return 0, fmt.Errorf("excess padding in %q", s)
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

// parseEpoch converts YYDDD.DDDDDDDD to an instant. Years 57-99 map to the
// 1900s, 00-56 to the 2000s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch %q too short", s)
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	day, err := strconv.ParseFloat(strings.TrimSpace(s[2:]), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}
	if day < 1 || day >= 367 {
		return time.Time{}, fmt.Errorf("epoch day %v out of range", day)
	}

	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return start.Add(time.Duration((day - 1) * float64(24*time.Hour))), nil
}
