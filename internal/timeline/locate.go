package timeline

import (
	"fmt"
	"strings"
)

// NotFoundError reports a lookup that matched no record.
type NotFoundError struct {
	Name string
	Kind RecordType
}

func (e *NotFoundError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("no %s named %q found in the build timeline", strings.ToLower(string(e.Kind)), e.Name)
	}
	return fmt.Sprintf("no record named %q found in the build timeline", e.Name)
}

// Candidate identifies one of several records that matched an exact-mode
// lookup, so the caller can disambiguate by kind or id.
type Candidate struct {
	Type RecordType `json:"type"`
	ID   string     `json:"id"`
	Name string     `json:"name"`
}

// AmbiguousError reports an exact-mode lookup that matched more than one
// record.
type AmbiguousError struct {
	Name       string
	Candidates []Candidate
}

func (e *AmbiguousError) Error() string {
	parts := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		parts[i] = fmt.Sprintf("%s %q (id %s)", strings.ToLower(string(c.Type)), c.Name, c.ID)
	}
	return fmt.Sprintf("%q matches %d records: %s; narrow the name or pass a kind", e.Name, len(e.Candidates), strings.Join(parts, ", "))
}

// FindRecord resolves a name (optionally narrowed by kind) against a flat
// record set. With exact matching the name must equal the record's name;
// otherwise a case-insensitive substring match is used. Zero matches is a
// NotFoundError; two or more is an AmbiguousError listing every candidate.
// Name comparison is case-insensitive in both modes.
func FindRecord(records []Record, name string, kind RecordType, exact bool) (*Record, error) {
	var matches []*Record
	for i := range records {
		rec := &records[i]
		if kind != "" && rec.Type != kind {
			continue
		}
		if matchesName(rec.Name, name, exact) {
			matches = append(matches, rec)
		}
	}

	switch len(matches) {
	case 0:
		return nil, &NotFoundError{Name: name, Kind: kind}
	case 1:
		return matches[0], nil
	}

	candidates := make([]Candidate, len(matches))
	for i, m := range matches {
		candidates[i] = Candidate{Type: m.Type, ID: m.ID, Name: m.Name}
	}
	return nil, &AmbiguousError{Name: name, Candidates: candidates}
}

func matchesName(recordName, query string, exact bool) bool {
	if exact {
		return strings.EqualFold(recordName, query)
	}
	return strings.Contains(strings.ToLower(recordName), strings.ToLower(query))
}

// FindStageJobs collects every Job record whose parent chain leads back to
// the given stage, in the order they appear in the record set.
func FindStageJobs(records []Record, stage *Record) []*Record {
	byID := make(map[string]*Record, len(records))
	for i := range records {
		byID[records[i].ID] = &records[i]
	}

	var jobs []*Record
	for i := range records {
		rec := &records[i]
		if rec.Type != TypeJob {
			continue
		}
		if descendsFrom(rec, stage.ID, byID) {
			jobs = append(jobs, rec)
		}
	}
	return jobs
}

// descendsFrom walks the parent chain from rec toward the roots. The visit
// set guards against malformed cyclic input from the remote API.
func descendsFrom(rec *Record, ancestorID string, byID map[string]*Record) bool {
	seen := map[string]bool{}
	for cur := rec; cur != nil && cur.ParentID != ""; {
		if seen[cur.ID] {
			return false
		}
		seen[cur.ID] = true
		if cur.ParentID == ancestorID {
			return true
		}
		cur = byID[cur.ParentID]
	}
	return false
}
