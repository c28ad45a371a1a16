// Package identity maps incident records to canonical contributor keys.
//
// Records carrying a contributor ID are keyed "user:<id>". Anonymous records
// are keyed "anon:<name>:<origin>" from their snapshot, so two anonymous
// contributors who
// typed the same name and origin merge into one identity. That is a known
// approximation, not a guarantee of identity.
package identity

import (
	"net/url"
	"strings"

	"github.com/straywatch/straywatch-api/internal/models"
)

const (
	// AnonymousName is the placeholder display name for contributors without one.
	AnonymousName = "Anonymous"

	unknownOrigin = "unknown"
	userPrefix    = "user:"
	anonPrefix    = "anon:"
)

// Text is an optional display value. The zero value is None.
type Text struct {
	value string
	ok    bool
}

// Some returns a present Text. Blank input is treated as None.
func Some(v string) Text {
	v = strings.TrimSpace(v)
	if v == "" {
		return Text{}
	}
	return Text{value: v, ok: true}
}

// None returns an absent Text.
func None() Text { return Text{} }

// FromPtr converts a nullable column value.
func FromPtr(p *string) Text {
	if p == nil {
		return None()
	}
	return Some(*p)
}

// Get returns the value and whether it is present.
func (t Text) Get() (string, bool) { return t.value, t.ok }

// Or returns the value, or def when absent.
func (t Text) Or(def string) string {
	if t.ok {
		return t.value
	}
	return def
}

// Ptr returns the value as a nullable pointer.
func (t Text) Ptr() *string {
	if !t.ok {
		return nil
	}
	v := t.value
	return &v
}

// Profile is the display metadata attached to a contributor.
type Profile struct {
	Name   Text
	Origin Text
}

// Identity is the resolved identity of one record.
type Identity struct {
	Key           string
	ContributorID *string
	Profile       Profile
}

// Resolve returns the canonical identity for rec.
func Resolve(rec models.IncidentRecord) Identity {
	p := Profile{
		Name:   FromPtr(rec.ContributorName),
		Origin: FromPtr(rec.ContributorFrom),
	}
	if id, ok := FromPtr(rec.ContributorID).Get(); ok {
		return Identity{Key: UserKey(id), ContributorID: &id, Profile: p}
	}
	return Identity{Key: AnonymousKey(p), Profile: p}
}

// UserKey builds the key for a record carrying a contributor ID. User and
// anonymous keys live under different prefixes, so no contributor ID can
// collide with a synthesised anonymous key.
func UserKey(contributorID string) string {
	return userPrefix + contributorID
}

// AnonymousKey builds the key for a record without a contributor ID.
// Components are escaped so a ':' inside a name cannot collide with another key.
func AnonymousKey(p Profile) string {
	return anonPrefix + url.QueryEscape(p.Name.Or(AnonymousName)) + ":" + url.QueryEscape(p.Origin.Or(unknownOrigin))
}

// IsAnonymousKey reports whether key was synthesised for an anonymous contributor.
func IsAnonymousKey(key string) bool {
	return strings.HasPrefix(key, anonPrefix)
}

// Override is an authoritative display profile for one identity, normally the
// viewer's own account profile. It never applies to any other key.
type Override struct {
	Key     string
	Profile Profile
}

// Apply writes the override's present fields onto agg when the keys match.
func (o *Override) Apply(agg *models.ContributorAggregate) {
	if o == nil || o.Key == "" || agg.IdentityKey != o.Key {
		return
	}
	if name, ok := o.Profile.Name.Get(); ok {
		agg.DisplayName = name
	}
	if origin, ok := o.Profile.Origin.Get(); ok {
		agg.DisplayOrigin = &origin
	}
}
