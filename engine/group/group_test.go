package group

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/WessleyAI/vk-insights/engine/domain"
)

func id(v int64) *int64 { return &v }
func year(v int) *int   { return &v }

func inCity(pid int64, title string) domain.Profile {
	return domain.Profile{ID: pid, City: &domain.City{ID: pid, Title: title}}
}

func ids(ps []domain.Profile) []int64 {
	out := make([]int64, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestParseField(t *testing.T) {
	for _, f := range Fields {
		got, err := ParseField(string(f))
		if err != nil || got != f {
			t.Fatalf("ParseField(%q) = %q, %v", f, got, err)
		}
	}
	if _, err := ParseField("university"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestBy_City(t *testing.T) {
	profiles := []domain.Profile{
		inCity(1, "Moscow"),
		inCity(2, "Makhachkala"),
		{ID: 3},
		inCity(4, "Moscow"),
	}

	groups := slices.Collect(By(profiles, FieldCity))

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Key != "Moscow" || !slices.Equal(ids(groups[0].Items), []int64{1, 4}) {
		t.Fatalf("first group: %s %v", groups[0].Key, ids(groups[0].Items))
	}
	if groups[1].Key != "Makhachkala" || !slices.Equal(ids(groups[1].Items), []int64{2}) {
		t.Fatalf("second group: %s %v", groups[1].Key, ids(groups[1].Items))
	}
}

func TestBy_BirthDate(t *testing.T) {
	profiles := []domain.Profile{
		{ID: 1, BirthDate: &domain.BirthDate{Day: 24, Month: 6, Year: year(1984)}},
		{ID: 2, BirthDate: &domain.BirthDate{Day: 7, Month: 1}},
		{ID: 3, BirthDate: &domain.BirthDate{Day: 1, Month: 11, Year: year(1983)}},
		{ID: 4, BirthDate: &domain.BirthDate{Day: 25, Month: 6, Year: year(1984)}},
		{ID: 5, BirthDate: &domain.BirthDate{Day: 2, Month: 9, Year: year(1984)}},
		{ID: 6},
	}

	var keys []string
	var members [][]int64
	for g := range By(profiles, FieldBirthDate) {
		keys = append(keys, g.Key)
		members = append(members, ids(g.Items))
	}

	if want := []string{"1984-09", "1984-06", "1983-11"}; !slices.Equal(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	if !slices.Equal(members[1], []int64{1, 4}) {
		t.Fatalf("1984-06 members = %v", members[1])
	}
}

func TestBy_PlatformAndOccupation(t *testing.T) {
	profiles := []domain.Profile{
		{ID: 1, Platform: "iPhone app", Occupation: &domain.Occupation{Name: "Clinic", Type: domain.OccupationWork}},
		{ID: 2, Platform: "desktop web", Occupation: &domain.Occupation{Name: "RSMU", Type: domain.OccupationUniversity}},
		{ID: 3, Platform: "iPhone app", Occupation: &domain.Occupation{Name: "Hospital", Type: domain.OccupationWork}},
		{ID: 4, Occupation: &domain.Occupation{Name: "Clinic", Type: domain.OccupationWork}},
	}

	var platforms []string
	for g := range By(profiles, FieldPlatform) {
		platforms = append(platforms, g.Key)
	}
	if want := []string{"iPhone app", "desktop web"}; !slices.Equal(platforms, want) {
		t.Fatalf("platform keys = %v, want %v", platforms, want)
	}

	occ := slices.Collect(By(profiles, FieldOccupation))
	if len(occ) != 2 || occ[0].Key != "Hospital" || occ[1].Key != "Clinic" {
		t.Fatalf("unexpected occupation groups %+v", occ)
	}
	if !slices.Equal(ids(occ[1].Items), []int64{1, 4}) {
		t.Fatalf("Clinic members = %v", ids(occ[1].Items))
	}
}

func TestBy_EachProfileOnce(t *testing.T) {
	var profiles []domain.Profile
	cities := []string{"Moscow", "Stavropol", "Moscow", "Ulan-Ude", "Stavropol", "Moscow"}
	for i, c := range cities {
		profiles = append(profiles, inCity(int64(i), c))
	}
	seen := make(map[int64]int)
	prev := ""
	for g := range By(profiles, FieldCity) {
		if prev != "" && g.Key >= prev {
			t.Fatalf("groups not descending: %q after %q", g.Key, prev)
		}
		prev = g.Key
		for _, p := range g.Items {
			seen[p.ID]++
		}
	}
	if len(seen) != len(profiles) {
		t.Fatalf("expected %d profiles, saw %d", len(profiles), len(seen))
	}
	for pid, n := range seen {
		if n != 1 {
			t.Fatalf("profile %d seen %d times", pid, n)
		}
	}
}

func TestBy_EarlyStopAndUnknownField(t *testing.T) {
	profiles := []domain.Profile{inCity(1, "A"), inCity(2, "B")}
	n := 0
	for range By(profiles, FieldCity) {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("expected early stop after 1 group, got %d", n)
	}
	if got := slices.Collect(By(profiles, Field("zodiac"))); len(got) != 0 {
		t.Fatalf("unknown field should yield nothing, got %v", got)
	}
}

func TestMostFrequentAffiliation_MergesNamesByID(t *testing.T) {
	profiles := []domain.Profile{
		{ID: 1, Universities: []domain.University{{ID: id(330), Name: "RSMU"}}},
		{ID: 2, Occupation: &domain.Occupation{ID: id(330), Type: domain.OccupationUniversity, Name: "RSMU (old)"}},
	}

	got := MostFrequentAffiliation(profiles, 1)

	if len(got) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(got))
	}
	if got[0].Count != 2 || !slices.Equal(got[0].Names, []string{"RSMU", "RSMU (old)"}) {
		t.Fatalf("unexpected affiliation %+v", got[0])
	}
}

func TestMostFrequentAffiliation_CountsProfileOnce(t *testing.T) {
	profiles := []domain.Profile{
		{
			ID:           1,
			Universities: []domain.University{{ID: id(618), Name: "DGMA\r\n"}, {ID: id(618), Name: "DGMA"}},
			Occupation:   &domain.Occupation{ID: id(618), Type: domain.OccupationUniversity, Name: "DSMU"},
		},
		{ID: 2, Universities: []domain.University{{ID: id(41), Name: "NWSMU"}}},
		{ID: 3, Occupation: &domain.Occupation{ID: id(41), Type: domain.OccupationWork, Name: "NWSMU"}},
	}

	got := MostFrequentAffiliation(profiles, 5)

	if len(got) != 2 {
		t.Fatalf("expected 2 affiliations, got %+v", got)
	}
	if got[0].ID != 41 || got[0].Count != 1 || got[1].ID != 618 || got[1].Count != 1 {
		t.Fatalf("ties should rank by id: %+v", got)
	}
	if !slices.Equal(got[1].Names, []string{"DGMA"}) {
		t.Fatalf("names should be trimmed and deduplicated: %q", got[1].Names)
	}
}

func TestMostFrequentAffiliation_TopCount(t *testing.T) {
	profiles := []domain.Profile{
		{ID: 1, Universities: []domain.University{{ID: id(1), Name: "A"}, {ID: id(2), Name: "B"}}},
		{ID: 2, Universities: []domain.University{{ID: id(2), Name: "B"}, {ID: id(3), Name: "C"}}},
		{ID: 3, Universities: []domain.University{{ID: id(2), Name: "B"}, {ID: id(3), Name: "C"}}},
		{ID: 4, Universities: []domain.University{{Name: "no id"}, {ID: id(0), Name: "zero id"}}},
	}

	tests := []struct {
		top  int
		want []int64
	}{
		{0, nil},
		{-1, nil},
		{1, []int64{2}},
		{2, []int64{2, 3}},
		{10, []int64{2, 3, 1}},
	}
	for _, tt := range tests {
		got := MostFrequentAffiliation(profiles, tt.top)
		var gotIDs []int64
		for _, a := range got {
			gotIDs = append(gotIDs, a.ID)
		}
		if !slices.Equal(gotIDs, tt.want) {
			t.Errorf("top %d: got %v, want %v", tt.top, gotIDs, tt.want)
		}
	}
	if got := MostFrequentAffiliation(nil, 1); len(got) != 0 {
		t.Fatalf("no profiles should yield nothing, got %v", got)
	}
}

func TestSameSurnameFamily(t *testing.T) {
	profiles := []domain.Profile{
		{ID: 1, LastName: "Petrova"},
		{ID: 2, LastName: "Ivanov"},
		{ID: 3, LastName: "Petrov"},
		{ID: 4, LastName: "Petrovskaya"},
	}

	tests := []struct {
		target string
		want   []int64
	}{
		{"Petrov", []int64{1, 3}},
		{"petrova", []int64{1, 3}},
		{"IVANOVA", []int64{2}},
		{"Smol", nil},
		{"Petrovskaya", []int64{4}},
	}
	for _, tt := range tests {
		got := ids(slices.Collect(SameSurnameFamily(tt.target, profiles)))
		if len(got) == 0 {
			got = nil
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.target, got, tt.want)
		}
	}
}

func TestSameSurnameFamily_ExactFallback(t *testing.T) {
	profiles := []domain.Profile{{ID: 1, LastName: "Smol"}, {ID: 2, LastName: "Smolov"}}
	got := ids(slices.Collect(SameSurnameFamily("smol", profiles)))
	if !slices.Equal(got, []int64{1}) {
		t.Fatalf("got %v, want exact match only", got)
	}
}

func TestSameSurnameFamily_Cyrillic(t *testing.T) {
	profiles := []domain.Profile{{ID: 1, LastName: "Петрова"}, {ID: 2, LastName: "Петров"}}
	got := ids(slices.Collect(SameSurnameFamily("петров", profiles)))
	if !slices.Equal(got, []int64{2}) {
		t.Fatalf("got %v, want exact match for suffix-less Cyrillic target", got)
	}
}

func TestMostFrequentCity(t *testing.T) {
	tests := []struct {
		name     string
		profiles []domain.Profile
		want     string
		ok       bool
	}{
		{"none", []domain.Profile{{ID: 1}}, "", false},
		{"majority", []domain.Profile{inCity(1, "Makhachkala"), inCity(2, "Moscow"), inCity(3, "Moscow")}, "Moscow", true},
		{"tie goes to first seen", []domain.Profile{inCity(1, "Stavropol"), inCity(2, "Moscow"), inCity(3, "Moscow"), inCity(4, "Stavropol")}, "Stavropol", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MostFrequentCity(tt.profiles)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("got %q %v, want %q %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestPhotosByDate(t *testing.T) {
	day1 := time.Date(2023, 8, 29, 10, 0, 0, 0, time.UTC).Unix()
	day2 := time.Date(2023, 8, 30, 23, 59, 0, 0, time.UTC).Unix()
	photos := []domain.Photo{
		{ID: 1, Date: day2},
		{ID: 2, Date: day1 + 3600},
		{ID: 3, Date: day1},
	}

	groups := slices.Collect(PhotosByDate(photos, nil))

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Date != "29-08-2023" || groups[1].Date != "30-08-2023" {
		t.Fatalf("unexpected dates %q %q", groups[0].Date, groups[1].Date)
	}
	if groups[0].Photos[0].ID != 3 || groups[0].Photos[1].ID != 2 {
		t.Fatalf("photos within a day should be chronological: %+v", groups[0].Photos)
	}
	if photos[0].ID != 1 {
		t.Fatal("input slice was reordered")
	}
}

func TestPhotosByDate_Location(t *testing.T) {
	msk := time.FixedZone("MSK", 3*3600)
	ts := time.Date(2023, 8, 29, 22, 30, 0, 0, time.UTC).Unix()
	groups := slices.Collect(PhotosByDate([]domain.Photo{{ID: 1, Date: ts}}, msk))
	if len(groups) != 1 || groups[0].Date != "30-08-2023" {
		t.Fatalf("expected day in MSK, got %+v", groups)
	}
}

func TestSummarize(t *testing.T) {
	profiles := []domain.Profile{
		inCity(1, "Moscow"),
		{ID: 2, City: &domain.City{Title: "Moscow"}, Universities: []domain.University{{ID: id(330), Name: "RSMU"}}},
	}
	s := Summarize(profiles, 3)
	if s.Profiles != 2 || s.MostFrequentCity != "Moscow" || len(s.TopAffiliations) != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
}
