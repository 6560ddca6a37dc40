package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/philippherzig/datocms-mcp/internal/dato"
)

// State is a step of upsert resolution
type State string

const (
	StateCollectingInput    State = "CollectingInput"
	StateMatchFieldSelected State = "MatchFieldSelected"
	StateSearching          State = "Searching"
	StateNoMatch            State = "NoMatch"
	StateSingleMatch        State = "SingleMatch"
	StateMultiMatch         State = "MultiMatch"
	StateResolved           State = "Resolved"
	StateFailed             State = "Failed"
)

// Action is what a resolved upsert did
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// upsertSearchLimit bounds the match query; two results already mean a conflict
const upsertSearchLimit = 100

// UpsertRequest describes one upsert
type UpsertRequest struct {
	ItemType string
	// Fields are raw values, normalized against the schema before use
	Fields map[string]any
	// MatchingFields must all equal the input values for a record to match
	MatchingFields   []string
	CreateIfNotFound bool
	AutoPublish      bool
}

// UpsertResult reports how an upsert was resolved
type UpsertResult struct {
	State     State
	Action    Action
	Record    map[string]any
	Criteria  map[string]any
	Matched   int
	Published bool
	// Trace lists the states visited, in order
	Trace []State
}

func (res *UpsertResult) enter(s State) {
	res.State = s
	res.Trace = append(res.Trace, s)
}

func (res *UpsertResult) fail(err error) (*UpsertResult, error) {
	res.enter(StateFailed)
	return res, err
}

// Upsert creates or updates the record identified by the matching fields.
// Zero matches create (when allowed), one match updates, more is a conflict.
// Publishing happens after the write; a failed publish does not undo it.
func (r *Resolver) Upsert(ctx context.Context, req UpsertRequest) (*UpsertResult, error) {
	res := &UpsertResult{}
	res.enter(StateCollectingInput)

	if strings.TrimSpace(req.ItemType) == "" {
		return res.fail(&ConfigurationError{Message: "no model selected"})
	}
	matching := matchingFields(req.MatchingFields)
	if len(matching) == 0 {
		return res.fail(&ConfigurationError{Message: "no matching field designated for upsert"})
	}

	descriptors, err := r.FetchFields(ctx, req.ItemType)
	if err != nil {
		return res.fail(err)
	}
	known := index(descriptors)
	payload := r.Normalize(req.Fields, descriptors)

	criteria := make(map[string]any, len(matching))
	for _, key := range matching {
		if _, ok := known[key]; !ok {
			return res.fail(&ValidationError{Field: key, Message: "matching field is not a field of the model"})
		}
		value, ok := payload[key]
		if !ok || isBlank(value) {
			return res.fail(&ValidationError{Field: key, Message: "matching field value is empty"})
		}
		criteria[key] = value
	}
	res.Criteria = criteria
	res.enter(StateMatchFieldSelected)

	res.enter(StateSearching)
	conditions := make(map[string]any, len(criteria))
	for key, value := range criteria {
		conditions[key] = map[string]any{OpEq: value}
	}
	existing, err := r.remote.ListItems(ctx, dato.ItemQuery{
		Filter:  map[string]any{"type": req.ItemType, "fields": conditions},
		Version: "current",
		Limit:   upsertSearchLimit,
	})
	if err != nil {
		return res.fail(remote("search existing records", err))
	}
	res.Matched = len(existing)

	switch len(existing) {
	case 0:
		res.enter(StateNoMatch)
		if !req.CreateIfNotFound {
			return res.fail(&NotFoundError{Criteria: criteria})
		}
		record, err := r.remote.CreateItem(ctx, req.ItemType, payload)
		if err != nil {
			return res.fail(remote("create record", err))
		}
		res.Action = ActionCreated
		res.Record = record
	case 1:
		res.enter(StateSingleMatch)
		id, _ := existing[0]["id"].(string)
		record, err := r.remote.UpdateItem(ctx, id, payload)
		if err != nil {
			return res.fail(remote("update record", err))
		}
		res.Action = ActionUpdated
		res.Record = record
	default:
		res.enter(StateMultiMatch)
		ids := make([]string, 0, len(existing))
		for _, rec := range existing {
			if id, ok := rec["id"].(string); ok {
				ids = append(ids, id)
			}
		}
		return res.fail(&ConflictError{Criteria: criteria, Count: len(existing), IDs: ids})
	}
	res.enter(StateResolved)

	if req.AutoPublish {
		id, _ := res.Record["id"].(string)
		published, err := r.remote.PublishItem(ctx, id)
		if err != nil {
			return res, remote("publish record", err)
		}
		res.Record = published
		res.Published = true
	}
	return res, nil
}

// matchingFields trims and dedupes designated keys, keeping their order
func matchingFields(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func isBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}
	return false
}

func describeCriteria(criteria map[string]any) string {
	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, criteria[k]))
	}
	return strings.Join(parts, ", ")
}
