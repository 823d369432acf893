// Package mutator generates single-fault request mutations for active scans.
// Every mutation differs from its base request in exactly one parameter, so a
// finding on the mutated response can be attributed to that parameter alone.
package mutator

import (
	"iter"
	"log/slog"
	"strings"

	"github.com/fluxfuzzer/fluxscan/internal/payloads"
	"github.com/fluxfuzzer/fluxscan/pkg/types"
)

// Kind identifies which part of the request a mutation touches
type Kind int

const (
	KindQueryReplace Kind = iota // existing query parameter value replaced
	KindQueryAppend              // synthetic query parameter appended
	KindFormReplace              // existing form field value replaced
	KindFormAppend               // synthetic form field appended
	KindJSONReplace              // string value of a top-level JSON key replaced
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindQueryReplace:
		return "query-replace"
	case KindQueryAppend:
		return "query-append"
	case KindFormReplace:
		return "form-replace"
	case KindFormAppend:
		return "form-append"
	case KindJSONReplace:
		return "json-replace"
	default:
		return "unknown"
	}
}

// QueryParamName is the synthetic query parameter appended for a category.
func QueryParamName(c types.Category) string {
	return "fluxscan_test_" + c.String()
}

// FormParamName is the synthetic form field appended for a category.
func FormParamName(c types.Category) string {
	return "fluxscan_test_form_" + c.String()
}

// Mutation is one derived request plus the context needed to attribute a finding
type Mutation struct {
	Category  types.Category
	Payload   string
	Parameter string
	Kind      Kind
	Request   *types.Request
}

// PayloadRef returns the payload carried by the mutation.
func (m *Mutation) PayloadRef() types.Payload {
	return types.Payload{Category: m.Category, Value: m.Payload}
}

// Engine produces mutation sequences from a payload catalog
type Engine struct {
	catalog *payloads.Catalog
	logger  *slog.Logger
}

// NewEngine creates a mutation engine. A nil catalog selects payloads.Default().
func NewEngine(catalog *payloads.Catalog, logger *slog.Logger) *Engine {
	if catalog == nil {
		catalog = payloads.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{catalog: catalog, logger: logger}
}

// Mutations prepares the mutation sequence for base. Body parsing happens
// once here; a malformed JSON body disables only the JSON phase.
func (e *Engine) Mutations(base *types.BaseRequest) *Sequence {
	s := &Sequence{
		base:    base,
		entries: e.catalog.Entries(),
	}

	contentType := strings.ToLower(base.ContentType)
	if contentType == "" {
		if v, ok := base.Headers.Get("Content-Type"); ok {
			contentType = strings.ToLower(v)
		}
	}

	switch {
	case strings.Contains(contentType, "application/x-www-form-urlencoded"):
		s.form = parseForm(base.Body)
	case strings.Contains(contentType, "application/json"):
		if len(base.Body) > 0 {
			obj, err := parseJSONObject(base.Body)
			if err != nil {
				s.bodyErr = err
				e.logger.Warn("skipping JSON body mutations",
					slog.String("request_id", base.ID),
					slog.String("error", err.Error()),
				)
			} else {
				s.json = obj
			}
		}
	}

	s.slots = len(base.Query) + 1
	if s.form != nil {
		s.slots += len(s.form.names) + 1
	}
	if s.json != nil {
		s.slots += len(s.json.fields)
	}

	return s
}

// --- Sequence ---

// Sequence is a lazy, finite and restartable stream of mutations.
// It is read-only once built and may be iterated concurrently.
type Sequence struct {
	base    *types.BaseRequest
	entries []payloads.Entry
	form    *formBody
	json    *jsonObject
	bodyErr error
	slots   int // mutations per payload
}

// Err reports why a body phase was skipped, wrapping ErrMalformedBody.
func (s *Sequence) Err() error {
	return s.bodyErr
}

// Count returns the total number of mutations the sequence yields.
func (s *Sequence) Count() int {
	n := 0
	for _, e := range s.entries {
		n += len(e.Values)
	}
	return n * s.slots
}

// Iterator returns a fresh cursor positioned at the first mutation.
func (s *Sequence) Iterator() *Iterator {
	return &Iterator{seq: s}
}

// All exposes the sequence as a range-over-func iterator.
func (s *Sequence) All() iter.Seq[*Mutation] {
	return func(yield func(*Mutation) bool) {
		it := s.Iterator()
		for {
			m, ok := it.Next()
			if !ok || !yield(m) {
				return
			}
		}
	}
}

// Iterator walks a Sequence one mutation at a time. Not safe for concurrent use.
type Iterator struct {
	seq   *Sequence
	entry int
	value int
	slot  int
}

// Next builds and returns the next mutation, or false when exhausted.
// Ordering: category, then payload, then query, form and JSON phases.
func (it *Iterator) Next() (*Mutation, bool) {
	entries := it.seq.entries
	for it.entry < len(entries) {
		e := entries[it.entry]
		if it.value >= len(e.Values) {
			it.entry++
			it.value = 0
			it.slot = 0
			continue
		}
		if it.slot >= it.seq.slots {
			it.value++
			it.slot = 0
			continue
		}

		m := it.seq.build(e.Category, e.Values[it.value], it.slot)
		it.slot++
		return m, true
	}
	return nil, false
}

// build maps a slot index within one payload to its mutation.
func (s *Sequence) build(cat types.Category, payload string, slot int) *Mutation {
	m := &Mutation{Category: cat, Payload: payload}
	req := s.base.ToRequest()
	m.Request = req

	nq := len(s.base.Query)
	switch {
	case slot < nq:
		req.Query[slot] = req.Query[slot].WithValue(payload)
		m.Kind = KindQueryReplace
		m.Parameter = req.Query[slot].Name
		return m
	case slot == nq:
		name := QueryParamName(cat)
		req.Query = append(req.Query, types.Param{Name: name, Value: payload})
		m.Kind = KindQueryAppend
		m.Parameter = name
		return m
	}
	slot -= nq + 1

	if s.form != nil {
		if slot < len(s.form.names) {
			name := s.form.names[slot]
			req.Body = s.form.replace(name, payload)
			m.Kind = KindFormReplace
			m.Parameter = name
			return m
		}
		if slot == len(s.form.names) {
			name := FormParamName(cat)
			req.Body = s.form.append(name, payload)
			m.Kind = KindFormAppend
			m.Parameter = name
			return m
		}
		slot -= len(s.form.names) + 1
	}

	field := s.json.fields[slot]
	req.Body = s.json.replace(slot, payload)
	m.Kind = KindJSONReplace
	m.Parameter = field.key
	return m
}
