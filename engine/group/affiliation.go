package group

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/WessleyAI/vk-insights/engine/domain"
)

// Affiliation is a university identified by ID with every name profiles
// used for it.
type Affiliation struct {
	ID    int64    `json:"id"`
	Names []string `json:"names"`
	Count int      `json:"count"`
}

// MostFrequentAffiliation ranks universities by the number of distinct
// profiles referencing them, through either a universities entry or a
// university-type occupation. A profile naming the same ID twice counts once.
// Ties rank by ascending ID. At most top entries are returned.
func MostFrequentAffiliation(profiles []domain.Profile, top int) []Affiliation {
	if top <= 0 {
		return nil
	}

	counts := make(map[int64]int)
	names := make(map[int64]map[string]struct{})
	addName := func(id int64, name string) {
		if names[id] == nil {
			names[id] = make(map[string]struct{})
		}
		if name = strings.TrimSpace(name); name != "" {
			names[id][name] = struct{}{}
		}
	}

	for _, p := range profiles {
		seen := make(map[int64]bool)
		for _, u := range p.Universities {
			if u.ID == nil || *u.ID == 0 {
				continue
			}
			addName(*u.ID, u.Name)
			seen[*u.ID] = true
		}
		if occ := p.Occupation; occ != nil && occ.Type == domain.OccupationUniversity &&
			occ.ID != nil && *occ.ID != 0 && !seen[*occ.ID] {
			addName(*occ.ID, occ.Name)
			seen[*occ.ID] = true
		}
		for id := range seen {
			counts[id]++
		}
	}

	ranked := make([]Affiliation, 0, len(counts))
	for id, n := range counts {
		ranked = append(ranked, Affiliation{
			ID:    id,
			Names: slices.Sorted(maps.Keys(names[id])),
			Count: n,
		})
	}
	slices.SortFunc(ranked, func(a, b Affiliation) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return ranked[:min(top, len(ranked))]
}

// MostFrequentCity returns the city title shared by the most profiles. Ties
// go to the city seen first. It returns false when no profile has a city.
func MostFrequentCity(profiles []domain.Profile) (string, bool) {
	counts := make(map[string]int)
	var order []string
	for _, p := range profiles {
		if p.City == nil {
			continue
		}
		if counts[p.City.Title] == 0 {
			order = append(order, p.City.Title)
		}
		counts[p.City.Title]++
	}
	if len(order) == 0 {
		return "", false
	}
	best := order[0]
	for _, title := range order[1:] {
		if counts[title] > counts[best] {
			best = title
		}
	}
	return best, true
}
