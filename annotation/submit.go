package annotation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/autohighlight/autohighlight/dataset"
	"github.com/google/uuid"
)

// Submission is the body of POST /api/highlights: highlights keyed by row index (as a string),
// for the column the annotator worked on.
type Submission struct {
	SelectedColumn string                     `json:"selected_column"`
	Highlights     map[string]json.RawMessage `json:"highlights"`
}

// ValidationError is a rejected submission; its message is shown to the annotator.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Receipt acknowledges a stored submission.
type Receipt struct {
	SubmissionID string             `json:"submission_id"`
	Stored       dataset.Highlights `json:"stored"`
}

// Submitter validates submissions against a Store and merges them into a HighlightFile.
type Submitter struct {
	Store *Store
	File  *HighlightFile

	// Interleaved means the UI counts whitespace runs as tokens, so word indices arrive doubled:
	// only even indices are accepted and they are halved.
	Interleaved bool
}

// Validate converts a submission into id-keyed word indices. Rows are checked in increasing
// index order and the first problem is reported as a *ValidationError.
func (s *Submitter) Validate(sub *Submission) (dataset.Highlights, error) {
	if sub.SelectedColumn == "" {
		return nil, invalid("selected_column is missing.")
	}
	if len(sub.Highlights) == 0 {
		return nil, invalid("highlights data is missing.")
	}
	if !s.Store.HasColumn(sub.SelectedColumn) {
		return nil, invalid("selected_column %q does not exist in the rows file.", sub.SelectedColumn)
	}

	type entry struct {
		key   string
		index int
	}
	entries := make([]entry, 0, len(sub.Highlights))
	for key := range sub.Highlights {
		index, err := strconv.Atoi(key)
		if err != nil {
			return nil, invalid("Invalid row index %q.", key)
		}
		entries = append(entries, entry{key, index})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].index < entries[j].index })

	out := make(dataset.Highlights, len(entries))
	for _, e := range entries {
		var values []any
		dec := json.NewDecoder(bytes.NewReader(sub.Highlights[e.key]))
		dec.UseNumber()
		if err := dec.Decode(&values); err != nil || values == nil {
			return nil, invalid("Invalid data format for row %s.", e.key)
		}
		indices := make([]int, len(values))
		for i, v := range values {
			num, ok := v.(json.Number)
			if !ok {
				return nil, invalid("Non-integer token index in row %s.", e.key)
			}
			n, err := num.Int64()
			if err != nil {
				return nil, invalid("Non-integer token index in row %s.", e.key)
			}
			indices[i] = int(n)
		}
		if s.Interleaved {
			for i, idx := range indices {
				if idx%2 != 0 {
					return nil, invalid("Token indices must be even numbers in row %s.", e.key)
				}
				indices[i] = idx / 2
			}
		}
		id, err := s.Store.ID(e.index)
		if err != nil {
			return nil, invalid("Row index %d out of range.", e.index)
		}
		out[id] = indices
	}
	return out, nil
}

// Submit validates sub and merges it into the highlights file.
func (s *Submitter) Submit(ctx context.Context, sub *Submission) (*Receipt, error) {
	highlights, err := s.Validate(sub)
	if err != nil {
		return nil, err
	}
	if err := s.File.Merge(ctx, highlights); err != nil {
		return nil, err
	}
	return &Receipt{SubmissionID: uuid.NewString(), Stored: highlights}, nil
}
