package group

import (
	"cmp"
	"iter"
	"slices"
	"time"

	"github.com/WessleyAI/vk-insights/engine/domain"
	"github.com/WessleyAI/vk-insights/pkg/fn"
)

// DateLayout is the display format of photo group keys.
const DateLayout = "02-01-2006"

// PhotoGroup is the photos taken on one calendar day.
type PhotoGroup struct {
	Date   string         `json:"date"`
	Photos []domain.Photo `json:"photos"`
}

// PhotosByDate groups photos by the day their timestamp falls on in loc,
// oldest day first. A nil loc means UTC.
func PhotosByDate(photos []domain.Photo, loc *time.Location) iter.Seq[PhotoGroup] {
	if loc == nil {
		loc = time.UTC
	}
	return func(yield func(PhotoGroup) bool) {
		sorted := slices.Clone(photos)
		slices.SortStableFunc(sorted, func(a, b domain.Photo) int {
			return cmp.Compare(a.Date, b.Date)
		})
		day := func(p domain.Photo) string {
			return time.Unix(p.Date, 0).In(loc).Format(DateLayout)
		}
		for d, run := range fn.Runs(sorted, day) {
			if !yield(PhotoGroup{Date: d, Photos: run}) {
				return
			}
		}
	}
}
