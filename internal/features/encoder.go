package features

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// UnknownCategoryPolicy decides how an encoder maps a category it did not
// see during fitting.
type UnknownCategoryPolicy string

const (
	// PolicyExtend appends the new category to the vocabulary and returns its
	// new code. Codes assigned this way are stable for the lifetime of the
	// loaded artifact only; they are not persisted or shared across processes.
	PolicyExtend UnknownCategoryPolicy = "extend"
	// PolicySentinel maps every unseen category to one reserved code equal to
	// the fitted vocabulary size. The vocabulary never changes after fitting.
	PolicySentinel UnknownCategoryPolicy = "sentinel"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (UnknownCategoryPolicy, error) {
	switch p := UnknownCategoryPolicy(s); p {
	case PolicyExtend, PolicySentinel:
		return p, nil
	default:
		return "", fmt.Errorf("unknown category policy %q: must be extend or sentinel", s)
	}
}

// Encoder is a label encoder for one categorical column. Safe for
// concurrent use.
type Encoder struct {
	mu      sync.RWMutex
	policy  UnknownCategoryPolicy
	classes []string
	index   map[string]int
	fitted  int
}

// NewEncoder returns an empty encoder using policy.
func NewEncoder(policy UnknownCategoryPolicy) *Encoder {
	return &Encoder{policy: policy, index: map[string]int{}}
}

// Fit replaces the vocabulary with the sorted distinct values.
func (e *Encoder) Fit(values []string) {
	seen := make(map[string]struct{}, len(values))
	classes := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		classes = append(classes, v)
	}
	sort.Strings(classes)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.setClasses(classes)
}

// Encode returns the code of v, applying the unknown-category policy when v
// is not in the vocabulary. It never fails.
func (e *Encoder) Encode(v string) int {
	e.mu.RLock()
	code, ok := e.index[v]
	fitted := e.fitted
	e.mu.RUnlock()
	if ok {
		return code
	}

	if e.policy == PolicySentinel {
		return fitted
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if code, ok := e.index[v]; ok {
		return code
	}
	e.classes = append(e.classes, v)
	e.index[v] = len(e.classes) - 1
	return len(e.classes) - 1
}

// Classes returns a copy of the current vocabulary in code order.
func (e *Encoder) Classes() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string{}, e.classes...)
}

// FittedSize is the vocabulary size at fit time. Codes at or above it were
// assigned to categories never seen in training.
func (e *Encoder) FittedSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fitted
}

// Policy returns the encoder's unknown-category policy.
func (e *Encoder) Policy() UnknownCategoryPolicy { return e.policy }

func (e *Encoder) setClasses(classes []string) {
	e.classes = classes
	e.index = make(map[string]int, len(classes))
	for i, c := range classes {
		e.index[c] = i
	}
	e.fitted = len(classes)
}

type encoderJSON struct {
	Policy  UnknownCategoryPolicy `json:"policy"`
	Classes []string              `json:"classes"`
}

// MarshalJSON persists the fitted vocabulary only; on-the-fly extensions are
// process-local.
func (e *Encoder) MarshalJSON() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return json.Marshal(encoderJSON{Policy: e.policy, Classes: e.classes[:e.fitted]})
}

// UnmarshalJSON restores an encoder written by MarshalJSON.
func (e *Encoder) UnmarshalJSON(b []byte) error {
	var raw encoderJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Policy == "" {
		raw.Policy = PolicyExtend
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = raw.Policy
	e.setClasses(append([]string{}, raw.Classes...))
	return nil
}
