package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FlexBool decodes the boolean flavours a spreadsheet cell can produce:
// true, "TRUE", "true" and 1. Anything else is false.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("FlexBool: %w", err)
	}

	switch v := raw.(type) {
	case bool:
		*b = FlexBool(v)
	case string:
		*b = FlexBool(v == "TRUE" || v == "true")
	case float64:
		*b = FlexBool(v == 1)
	default:
		*b = false
	}

	return nil
}

func (b FlexBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(b))
}

// FlexInt decodes numbers that may arrive as JSON numbers or numeric strings.
// Empty strings and null decode to zero.
type FlexInt int

func (i *FlexInt) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("FlexInt: %w", err)
	}

	switch v := raw.(type) {
	case float64:
		*i = FlexInt(math.Round(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			*i = 0
			return nil
		}

		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("FlexInt: invalid number %q", v)
		}
		*i = FlexInt(math.Round(f))
	case nil:
		*i = 0
	default:
		return fmt.Errorf("FlexInt: unsupported value %s", string(data))
	}

	return nil
}

func (i FlexInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(i))
}

// FlexString decodes a cell that may hold either text or a number
// (house numbers, coordinates, postcodes).
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("FlexString: %w", err)
	}

	switch v := raw.(type) {
	case string:
		*s = FlexString(v)
	case float64:
		*s = FlexString(strconv.FormatFloat(v, 'f', -1, 64))
	case bool:
		*s = FlexString(strconv.FormatBool(v))
	default:
		*s = ""
	}

	return nil
}

var clockRegex = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

// ClockTime is a time of day in canonical 24h HH:MM form. A value that cannot
// be interpreted decodes to the empty string and is replaced with a default by
// the caller.
type ClockTime string

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("ClockTime: %w", err)
	}

	*c = ClockTime(NormalizeClock(raw))

	return nil
}

// Or returns the clock value, or fallback when it is empty.
func (c ClockTime) Or(fallback string) ClockTime {
	if c == "" {
		return ClockTime(fallback)
	}

	return c
}

// NormalizeClock converts the formats the sheet returns for time cells
// ("8:00", "1899-12-30T08:00:00.000Z", 0.3333) into HH:MM. It returns "" when
// the value is not recognised.
func NormalizeClock(value any) string {
	switch v := value.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return ""
		}

		if clockRegex.MatchString(s) {
			if len(s) == 4 {
				return "0" + s
			}

			return s
		}

		if strings.Contains(s, "T") {
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return ""
			}
			t = t.UTC()

			return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
		}
	case float64:
		if v >= 0 && v < 1 {
			totalMin := int(math.Round(v * 24 * 60))

			return fmt.Sprintf("%02d:%02d", totalMin/60, totalMin%60)
		}
	}

	return ""
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
}

// ParseTimestamp parses the timestamp formats used by log rows and last_seen.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
