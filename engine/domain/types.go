// Package domain defines the API data contract (profiles, photos and the
// response envelope) and validates raw fetch results against it. It is the
// gate between transport and the transform and grouping stages.
package domain

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Occupation types.
const (
	OccupationWork       = "work"
	OccupationUniversity = "university"
)

// APIError is the error branch of an envelope.
type APIError struct {
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
	Details   string `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.ErrorCode, e.ErrorMsg)
}

func (e *APIError) UnmarshalJSON(data []byte) error {
	type alias APIError
	aux := struct {
		ErrorCode *int    `json:"error_code"`
		ErrorMsg  *string `json:"error_msg"`
		*alias
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.ErrorCode == nil {
		return missing("error_code")
	}
	if aux.ErrorMsg == nil {
		return missing("error_msg")
	}
	e.ErrorCode, e.ErrorMsg = *aux.ErrorCode, *aux.ErrorMsg
	return nil
}

type City struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func (c *City) UnmarshalJSON(data []byte) error {
	type alias City
	aux := struct {
		ID    *int64  `json:"id"`
		Title *string `json:"title"`
		*alias
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.ID == nil {
		return missing("city.id")
	}
	if aux.Title == nil {
		return missing("city.title")
	}
	c.ID, c.Title = *aux.ID, *aux.Title
	return nil
}

// Photo is a photo a user is tagged on.
type Photo struct {
	AlbumID   int64  `json:"album_id"`
	Date      int64  `json:"date"`
	ID        int64  `json:"id"`
	OwnerID   int64  `json:"owner_id"`
	PostID    *int64 `json:"post_id,omitempty"`
	Text      string `json:"text,omitempty"`
	TagsCount *int   `json:"tags_count,omitempty"`
}

func (p *Photo) UnmarshalJSON(data []byte) error {
	type alias Photo
	aux := struct {
		AlbumID *int64 `json:"album_id"`
		Date    *int64 `json:"date"`
		ID      *int64 `json:"id"`
		OwnerID *int64 `json:"owner_id"`
		*alias
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	for _, f := range []struct {
		name string
		v    *int64
	}{{"album_id", aux.AlbumID}, {"date", aux.Date}, {"id", aux.ID}, {"owner_id", aux.OwnerID}} {
		if f.v == nil {
			return missing(f.name)
		}
	}
	p.AlbumID, p.Date, p.ID, p.OwnerID = *aux.AlbumID, *aux.Date, *aux.ID, *aux.OwnerID
	return nil
}

// Occupation is a profile's current workplace or university.
type Occupation struct {
	Name string `json:"name"`
	Type string `json:"type"`
	ID   *int64 `json:"id,omitempty"`
}

func (o *Occupation) UnmarshalJSON(data []byte) error {
	type alias Occupation
	aux := struct {
		Name *string `json:"name"`
		Type *string `json:"type"`
		*alias
	}{alias: (*alias)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Name == nil {
		return missing("occupation.name")
	}
	if aux.Type == nil {
		return missing("occupation.type")
	}
	o.Name, o.Type = *aux.Name, *aux.Type
	return nil
}

// University is one education entry. ID is the affiliation identity; Name
// is free text and may differ between profiles for the same ID.
type University struct {
	ID              *int64 `json:"id,omitempty"`
	Name            string `json:"name,omitempty"`
	ChairName       string `json:"chair_name,omitempty"`
	City            int64  `json:"city,omitempty"`
	EducationForm   string `json:"education_form,omitempty"`
	EducationStatus string `json:"education_status,omitempty"`
	Faculty         int64  `json:"faculty,omitempty"`
	FacultyName     string `json:"faculty_name,omitempty"`
	Graduation      int    `json:"graduation,omitempty"`
}

type LastSeen struct {
	Time     *int64 `json:"time,omitempty"`
	Platform *int   `json:"platform,omitempty"`
}

// BirthDate is a normalized birth date. Year is nil when the profile hides it.
type BirthDate struct {
	Day   int  `json:"day"`
	Month int  `json:"month"`
	Year  *int `json:"year,omitempty"`
}

func (b BirthDate) String() string {
	if b.Year == nil {
		return fmt.Sprintf("%d.%d", b.Day, b.Month)
	}
	return fmt.Sprintf("%d.%d.%d", b.Day, b.Month, *b.Year)
}

// Profile is a user record. BDate holds the raw text from the API;
// BirthDate and Platform are filled by the transform stage.
type Profile struct {
	ID           int64        `json:"id"`
	FirstName    string       `json:"first_name"`
	LastName     string       `json:"last_name"`
	LastSeen     *LastSeen    `json:"last_seen,omitempty"`
	BDate        string       `json:"bdate,omitempty"`
	BirthDate    *BirthDate   `json:"birth_date,omitempty"`
	City         *City        `json:"city,omitempty"`
	MobilePhone  string       `json:"mobile_phone,omitempty"`
	Sex          int          `json:"sex,omitempty"`
	Universities []University `json:"universities,omitempty"`
	Occupation   *Occupation  `json:"occupation,omitempty"`
	Platform     string       `json:"platform,omitempty"`
	About        string       `json:"about,omitempty"`
	Deactivated  string       `json:"deactivated,omitempty"`
	IsClosed     bool         `json:"is_closed"`
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	type alias Profile
	aux := struct {
		ID        *int64  `json:"id"`
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		*alias
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.ID == nil {
		return missing("id")
	}
	if aux.FirstName == nil {
		return missing("first_name")
	}
	if aux.LastName == nil {
		return missing("last_name")
	}
	p.ID, p.FirstName, p.LastName = *aux.ID, *aux.FirstName, *aux.LastName
	return nil
}

// Clone returns a deep copy so transform passes never share state with
// their input.
func (p Profile) Clone() Profile {
	out := p
	if p.LastSeen != nil {
		ls := *p.LastSeen
		out.LastSeen = &ls
	}
	if p.BirthDate != nil {
		bd := *p.BirthDate
		if bd.Year != nil {
			y := *bd.Year
			bd.Year = &y
		}
		out.BirthDate = &bd
	}
	if p.City != nil {
		c := *p.City
		out.City = &c
	}
	if p.Occupation != nil {
		o := *p.Occupation
		out.Occupation = &o
	}
	out.Universities = slices.Clone(p.Universities)
	return out
}

// Entity is the set of record kinds a collection may hold.
type Entity interface {
	Profile | Photo
}

// Collection is the success payload of an envelope. Items are of one kind.
type Collection[T Entity] struct {
	Count int `json:"count,omitempty"`
	Items []T `json:"items"`
}
