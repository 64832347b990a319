package transform

import (
	"regexp"
	"strconv"

	"github.com/WessleyAI/vk-insights/engine/domain"
)

// Pass names for profile records.
const (
	PassBirthDate = "bdate"
	PassPlatform  = "platform"
)

var bdatePattern = regexp.MustCompile(`^(\d{1,2})[.-](\d{1,2})(?:[.-](\d{4}))?$`)

var platformLabels = map[int]string{
	1: "mobile-web",
	2: "iPhone app",
	3: "iPad app",
	4: "Android app",
	5: "Windows Phone app",
	6: "Windows 10 app",
	7: "desktop web",
}

// Profiles returns a transformer with every profile pass registered.
func Profiles() *Transformer[domain.Profile] {
	return New[domain.Profile]().
		Register(PassBirthDate, BirthDatePass).
		Register(PassPlatform, PlatformPass)
}

// ParseBirthDate parses "D.M.YYYY" or "D.M" ('-' also separates) into a
// BirthDate.
func ParseBirthDate(raw string) (domain.BirthDate, bool) {
	m := bdatePattern.FindStringSubmatch(raw)
	if m == nil {
		return domain.BirthDate{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return domain.BirthDate{}, false
	}
	bd := domain.BirthDate{Day: day, Month: month}
	if m[3] != "" {
		year, _ := strconv.Atoi(m[3])
		bd.Year = &year
	}
	return bd, true
}

// BirthDatePass fills BirthDate from the raw bdate text. A profile whose
// bdate cannot be parsed keeps its raw text, gets no BirthDate and is
// reported with a DataError.
func BirthDatePass(p domain.Profile) (domain.Profile, error) {
	if p.BDate == "" {
		return p, nil
	}
	bd, ok := ParseBirthDate(p.BDate)
	if !ok {
		return p, &DataError{RecordID: p.ID, Field: "bdate", Value: p.BDate}
	}
	out := p.Clone()
	out.BirthDate = &bd
	return out, nil
}

// PlatformLabel maps a last-seen platform code to its label.
func PlatformLabel(code int) (string, bool) {
	label, ok := platformLabels[code]
	return label, ok
}

// PlatformPass fills Platform from last_seen.platform. Unknown codes leave
// Platform empty.
func PlatformPass(p domain.Profile) (domain.Profile, error) {
	if p.LastSeen == nil || p.LastSeen.Platform == nil {
		return p, nil
	}
	label, ok := PlatformLabel(*p.LastSeen.Platform)
	if !ok {
		return p, nil
	}
	out := p.Clone()
	out.Platform = label
	return out, nil
}
