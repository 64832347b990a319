package vkapi

import (
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"strings"
)

// Request is a single fetchable target.
type Request struct {
	URL string `json:"url"`
}

// Pair is a (source, target) user pair for mutual-friend lookups.
type Pair struct {
	Source int64 `json:"source"`
	Target int64 `json:"target"`
}

// Generator produces request sequences from identifiers.
type Generator struct {
	cfg Config
}

// NewGenerator returns a Generator bound to cfg. Missing fields in cfg fall
// back to the defaults.
func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (g *Generator) Config() Config { return g.cfg }

// Friends yields one friends.get request per user id.
func (g *Generator) Friends(ids []int64) iter.Seq[Request] {
	return func(yield func(Request) bool) {
		for _, id := range ids {
			q := url.Values{
				"user_id": {strconv.FormatInt(id, 10)},
				"count":   {strconv.Itoa(g.cfg.Count)},
				"fields":  {strings.Join(g.cfg.Fields, ",")},
			}
			if !yield(g.request("friends.get", q)) {
				return
			}
		}
	}
}

// Mutual yields one friends.getMutual request per pair.
func (g *Generator) Mutual(pairs []Pair) iter.Seq[Request] {
	return func(yield func(Request) bool) {
		for _, p := range pairs {
			q := url.Values{
				"source_uid":  {strconv.FormatInt(p.Source, 10)},
				"target_uids": {strconv.FormatInt(p.Target, 10)},
				"count":       {strconv.Itoa(g.cfg.Count)},
			}
			if !yield(g.request("friends.getMutual", q)) {
				return
			}
		}
	}
}

// Photos yields one photos.getUserPhotos request per user id. The method
// lists the photos the user is tagged on.
func (g *Generator) Photos(ids []int64) iter.Seq[Request] {
	return func(yield func(Request) bool) {
		for _, id := range ids {
			q := url.Values{
				"user_id": {strconv.FormatInt(id, 10)},
				"count":   {strconv.Itoa(g.cfg.Count)},
			}
			if !yield(g.request("photos.getUserPhotos", q)) {
				return
			}
		}
	}
}

func (g *Generator) request(method string, q url.Values) Request {
	q.Set("access_token", g.cfg.Token)
	q.Set("v", g.cfg.Version)
	return Request{URL: g.cfg.BaseURL + "/" + method + "?" + q.Encode()}
}

// PhotoLink returns the public page of a photo.
func PhotoLink(ownerID, photoID int64) string {
	return fmt.Sprintf("https://vk.com/photo%d_%d", ownerID, photoID)
}
