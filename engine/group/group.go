// Package group groups and ranks normalized profiles and photos.
//
// Profile groupings sort descending by key and then group adjacent equal
// keys, so groups come out in key-descending order and items keep their
// relative input order within a group. Photo groupings run the other way,
// chronologically.
package group

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/WessleyAI/vk-insights/engine/domain"
	"github.com/WessleyAI/vk-insights/pkg/fn"
)

// Field selects the grouping key for profiles.
type Field string

const (
	FieldCity       Field = "city"
	FieldBirthDate  Field = "bdate"
	FieldPlatform   Field = "platform"
	FieldOccupation Field = "occupation"
)

// Fields lists every supported grouping key.
var Fields = []Field{FieldCity, FieldBirthDate, FieldPlatform, FieldOccupation}

// ErrUnknownField is returned by ParseField for unsupported keys.
var ErrUnknownField = errors.New("unknown grouping field")

// ParseField validates a grouping key name.
func ParseField(s string) (Field, error) {
	f := Field(s)
	if slices.Contains(Fields, f) {
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Group is one key value with the profiles that share it.
type Group struct {
	Key   string           `json:"key"`
	Items []domain.Profile `json:"items"`
}

type keyed struct {
	key string
	p   domain.Profile
}

// keyOf returns a profile's grouping key, or false when the profile lacks the
// fields the key needs.
func keyOf(p domain.Profile, field Field) (string, bool) {
	switch field {
	case FieldCity:
		if p.City == nil {
			return "", false
		}
		return p.City.Title, true
	case FieldBirthDate:
		if p.BirthDate == nil || p.BirthDate.Year == nil {
			return "", false
		}
		// Zero padding keeps string order equal to (year, month) order.
		return fmt.Sprintf("%04d-%02d", *p.BirthDate.Year, p.BirthDate.Month), true
	case FieldPlatform:
		return p.Platform, p.Platform != ""
	case FieldOccupation:
		if p.Occupation == nil || p.Occupation.Type != domain.OccupationWork {
			return "", false
		}
		return p.Occupation.Name, true
	}
	return "", false
}

// By groups profiles by field. Nothing is computed until the sequence is
// ranged over; each iteration recomputes from profiles.
func By(profiles []domain.Profile, field Field) iter.Seq[Group] {
	return func(yield func(Group) bool) {
		items := fn.FilterMap(profiles, func(p domain.Profile) (keyed, bool) {
			k, ok := keyOf(p, field)
			return keyed{key: k, p: p}, ok
		})
		slices.SortStableFunc(items, func(a, b keyed) int {
			return cmp.Compare(b.key, a.key)
		})
		for k, run := range fn.Runs(items, func(it keyed) string { return it.key }) {
			g := Group{Key: k, Items: fn.Map(run, func(it keyed) domain.Profile { return it.p })}
			if !yield(g) {
				return
			}
		}
	}
}
