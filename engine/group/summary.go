package group

import "github.com/WessleyAI/vk-insights/engine/domain"

// Summary condenses a profile set for reports.
type Summary struct {
	Profiles         int           `json:"profiles"`
	MostFrequentCity string        `json:"most_frequent_city,omitempty"`
	TopAffiliations  []Affiliation `json:"top_affiliations,omitempty"`
}

// Summarize computes the profile count, the most frequent city and the top
// affiliations.
func Summarize(profiles []domain.Profile, top int) Summary {
	s := Summary{
		Profiles:        len(profiles),
		TopAffiliations: MostFrequentAffiliation(profiles, top),
	}
	s.MostFrequentCity, _ = MostFrequentCity(profiles)
	return s
}
