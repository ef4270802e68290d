package identity

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/draftkeep/internal/form"
)

// Policy decides when typed identity input is complete enough to produce a
// canonical key.
type Policy struct {
	MinNameRunes int
	PhoneDigits  int
}

// DefaultPolicy is a name of at least 2 characters and a 10 digit phone.
func DefaultPolicy() Policy {
	return Policy{MinNameRunes: 2, PhoneDigits: 10}
}

// Inputs are the raw identity fields as currently typed.
type Inputs struct {
	Name  string
	Phone string
}

// Confirmed is an identity the user picked from a known-identity list. Its
// fields are used verbatim.
type Confirmed struct {
	Name  string
	Phone string
}

// Resolver maps identity inputs to draft keys.
//
// Thread-safety: Resolver is immutable after construction and safe for
// concurrent use.
type Resolver struct {
	policy Policy
	now    func() time.Time
}

// NewResolver creates a resolver. Zero policy fields take their defaults and
// a nil now uses time.Now; now is only consulted to default the period.
func NewResolver(policy Policy, now func() time.Time) *Resolver {
	def := DefaultPolicy()
	if policy.MinNameRunes <= 0 {
		policy.MinNameRunes = def.MinNameRunes
	}
	if policy.PhoneDigits <= 0 {
		policy.PhoneDigits = def.PhoneDigits
	}
	if now == nil {
		now = time.Now
	}
	return &Resolver{policy: policy, now: now}
}

// Policy returns the effective policy.
func (r *Resolver) Policy() Policy {
	return r.policy
}

// Period returns period, or the current reporting period if it is empty.
func (r *Resolver) Period(period string) string {
	if strings.TrimSpace(period) == "" {
		return form.CurrentPeriod(r.now())
	}
	return period
}

// ResolveKey returns the key the draft for these inputs is filed under.
func (r *Resolver) ResolveKey(in Inputs, confirmed *Confirmed, period string) string {
	name, phone := r.resolve(in, confirmed)
	return Build(r.Period(period), name, phone)
}

// IsStable reports whether ResolveKey would return a canonical key, i.e. one
// without sentinels.
func (r *Resolver) IsStable(in Inputs, confirmed *Confirmed) bool {
	if confirmed != nil {
		return true
	}
	return r.nameComplete(in.Name) && r.phoneComplete(in.Phone)
}

// EnumerateLegacyKeys returns the current key followed by every key that an
// earlier, less complete state of the same inputs could have produced.
// Duplicates are removed; order is kept.
func (r *Resolver) EnumerateLegacyKeys(in Inputs, confirmed *Confirmed, period string) []string {
	p := r.Period(period)
	name, phone := r.resolve(in, confirmed)

	keys := []string{
		Build(p, name, phone),
		Build(p, name, SentinelPhone),
		Build(p, SentinelName, phone),
		Build(p, SentinelName, SentinelPhone),
	}
	if confirmed != nil {
		rawName, rawPhone := r.resolve(in, nil)
		keys = append(keys,
			Build(p, rawName, rawPhone),
			Build(p, rawName, SentinelPhone),
		)
	}

	seen := make(map[string]bool, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func (r *Resolver) resolve(in Inputs, confirmed *Confirmed) (name, phone string) {
	if confirmed != nil {
		return confirmed.Name, confirmed.Phone
	}
	name = SentinelName
	if r.nameComplete(in.Name) {
		name = strings.TrimSpace(in.Name)
	}
	phone = SentinelPhone
	if r.phoneComplete(in.Phone) {
		phone = strings.TrimSpace(in.Phone)
	}
	return name, phone
}

func (r *Resolver) nameComplete(name string) bool {
	n := norm.NFC.String(strings.TrimSpace(name))
	return utf8.RuneCountInString(n) >= r.policy.MinNameRunes
}

func (r *Resolver) phoneComplete(phone string) bool {
	phone = strings.TrimSpace(phone)
	if len(phone) != r.policy.PhoneDigits {
		return false
	}
	for _, c := range phone {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
