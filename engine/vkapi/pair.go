package vkapi

import (
	"fmt"
	"regexp"
	"strconv"
)

var pairPattern = regexp.MustCompile(`^\(\s*(-?\d+)\s*,\s*(-?\d+)\s*\)$`)

// ParseError reports an identifier argument that cannot be used to build a
// request.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s", e.Input, e.Reason)
}

// ParsePair parses the literal "(a,b)" pair form.
func ParsePair(text string) (Pair, error) {
	m := pairPattern.FindStringSubmatch(text)
	if m == nil {
		return Pair{}, &ParseError{Input: text, Reason: "expected (source,target)"}
	}
	src, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Pair{}, &ParseError{Input: text, Reason: "source id out of range"}
	}
	dst, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return Pair{}, &ParseError{Input: text, Reason: "target id out of range"}
	}
	return Pair{Source: src, Target: dst}, nil
}

// ParsePairs parses every item before returning, failing on the first
// malformed one.
func ParsePairs(texts []string) ([]Pair, error) {
	pairs := make([]Pair, 0, len(texts))
	for _, t := range texts {
		p, err := ParsePair(t)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// ParseIDs parses decimal user ids.
func ParseIDs(texts []string) ([]int64, error) {
	ids := make([]int64, 0, len(texts))
	for _, t := range texts {
		id, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return nil, &ParseError{Input: t, Reason: "expected a numeric user id"}
		}
		ids = append(ids, id)
	}
	return ids, nil
}
