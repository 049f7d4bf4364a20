package domain

import (
	"encoding/json"
	"sort"
)

// StringSet is a set of string tokens (e.g. partial_reason entries) that
// marshals as a sorted JSON array rather than an object (spec §4.6 "sets
// emitted as sorted arrays"). Giving it its own MarshalJSON means a set
// field nested inside a struct still serializes as an array when the
// struct is JSON round-tripped through interface{}, which a bare
// map[string]struct{} cannot survive since encoding/json has no way to
// unmarshal a JSON object back into that type.
type StringSet map[string]struct{}

func (s StringSet) MarshalJSON() ([]byte, error) {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return json.Marshal(out)
}

func (s *StringSet) UnmarshalJSON(b []byte) error {
	var arr []string
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	out := make(StringSet, len(arr))
	for _, v := range arr {
		out[v] = struct{}{}
	}
	*s = out
	return nil
}

// Add records tok in the set (idempotent). It panics on a nil set;
// callers own allocation via make(StringSet).
func (s StringSet) Add(tok string) {
	s[tok] = struct{}{}
}

// Has reports whether tok is in the set.
func (s StringSet) Has(tok string) bool {
	_, ok := s[tok]
	return ok
}
