package identity

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Key segments.
const (
	Prefix        = "draft"
	SentinelName  = "anonymous"
	SentinelPhone = "new"
)

// Key is a parsed draft key.
type Key struct {
	Period string
	Name   string // slugged
	Phone  string
}

// String formats k back into its storage form.
func (k Key) String() string {
	return Prefix + ":" + k.Period + ":" + k.Name + ":" + k.Phone
}

// Segment returns the "<name>:<phone>" identity part of k.
func (k Key) Segment() string {
	return k.Name + ":" + k.Phone
}

// Provisional reports whether either identity part is still a sentinel.
func (k Key) Provisional() bool {
	return k.Name == SentinelName || k.Phone == SentinelPhone
}

// Build formats a key from already-resolved parts. The name is slugged.
func Build(period, name, phone string) string {
	return Key{Period: period, Name: Slug(name), Phone: clean(phone)}.String()
}

// Parse splits a key produced by Build.
func Parse(key string) (Key, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != Prefix {
		return Key{}, fmt.Errorf("parse key %q: want %s:<period>:<name>:<phone>", key, Prefix)
	}
	return Key{Period: parts[1], Name: parts[2], Phone: parts[3]}, nil
}

// IsProvisionalKey reports whether key still carries a sentinel. Unparsable
// keys are not provisional.
func IsProvisionalKey(key string) bool {
	k, err := Parse(key)
	return err == nil && k.Provisional()
}

// Segment returns the identity segment used by store lookups for a resolved
// name and phone.
func Segment(name, phone string) string {
	return Slug(name) + ":" + clean(phone)
}

// Matches reports whether key belongs to who. who is either a full identity
// segment ("jo:9876543210") or a bare phone number.
func Matches(key, who string) bool {
	k, err := Parse(key)
	if err != nil || who == "" {
		return false
	}
	if strings.Contains(who, ":") {
		return k.Segment() == who
	}
	return k.Phone == who
}

// Slug normalises a display name for use inside a key: NFC, case folded,
// inner whitespace collapsed to "_". Colons are replaced so the key stays
// parsable.
func Slug(name string) string {
	s := norm.NFC.String(strings.TrimSpace(name))
	s = cases.Fold().String(s)
	s = strings.Join(strings.Fields(s), "_")
	return clean(s)
}

func clean(s string) string {
	return strings.ReplaceAll(s, ":", "-")
}
