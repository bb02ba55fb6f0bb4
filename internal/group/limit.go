package group

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// unlimitedSentinel is the wire value the backend uses for "no limit".
const unlimitedSentinel = "-1"

// NoLimitLabel is what Display shows for an unlimited group.
const NoLimitLabel = "No limit"

// Limit is a group's size limit in KB. The backend sends it as a
// numeric string; "-1" means the group has no limit. The raw wire value is
// kept so it can be relayed unchanged to the limit-management flow.
//
// A group without a limit value (null, missing or blank) has no limit: the
// zero Limit is unlimited and reads back as "-1".
type Limit struct {
	raw string
}

// ParseLimit wraps a wire value. A blank value is unlimited.
func ParseLimit(s string) Limit {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoLimit()
	}
	return Limit{raw: s}
}

// NoLimit returns the unlimited value.
func NoLimit() Limit {
	return Limit{raw: unlimitedSentinel}
}

// LimitKB returns a limit of kb kilobytes.
func LimitKB(kb int64) Limit {
	return Limit{raw: strconv.FormatInt(kb, 10)}
}

// Unlimited reports whether the limit is the "-1" sentinel or unset.
func (l Limit) Unlimited() bool {
	return l.raw == "" || l.raw == unlimitedSentinel
}

// KB returns the numeric limit. ok is false for the unlimited sentinel and
// for values that are not integers.
func (l Limit) KB() (kb int64, ok bool) {
	if l.Unlimited() {
		return 0, false
	}
	n, err := strconv.ParseInt(l.raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// String returns the raw wire value, "-1" when unset.
func (l Limit) String() string {
	if l.raw == "" {
		return unlimitedSentinel
	}
	return l.raw
}

// Display is the value shown to users.
func (l Limit) Display() string {
	if l.Unlimited() {
		return NoLimitLabel
	}
	return l.raw
}

// UnmarshalJSON accepts a string or a bare number.
func (l *Limit) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = NoLimit()
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding limit: %w", err)
		}
		*l = ParseLimit(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding limit: %w", err)
	}
	*l = ParseLimit(n.String())
	return nil
}

// MarshalJSON writes the raw value as a string, the way the backend sends it.
func (l Limit) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}
