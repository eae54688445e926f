package dhis

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Option is one coded entry of an option set.
type Option struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// OptionSet is a server-defined enumerated vocabulary.
type OptionSet struct {
	DisplayName string   `json:"displayName"`
	Options     []Option `json:"options"`
}

// CodeForLabel returns the code whose human label equals the given
// value, compared case-insensitively, in option order. ok is false
// when no option matches.
func (s *OptionSet) CodeForLabel(label string) (string, bool) {
	for _, opt := range s.Options {
		if strings.EqualFold(opt.Name, label) {
			return opt.Code, true
		}
	}
	return "", false
}

// Snapshot is a read-only view of the target schema, fetched exactly
// once per import run and shared across every row of the run. Using
// one consistent snapshot keeps mapping deterministic even when the
// remote metadata changes between runs.
type Snapshot struct {
	attributeIDs map[string]string
	optionSets   map[string]*OptionSet
	setOrder     []string
}

// AttributeID returns the target attribute id for a display name.
func (s *Snapshot) AttributeID(displayName string) (string, bool) {
	id, ok := s.attributeIDs[displayName]
	return id, ok
}

// OptionSet returns the option set with the exact given name.
func (s *Snapshot) OptionSet(name string) (*OptionSet, bool) {
	set, ok := s.optionSets[name]
	return set, ok
}

// OptionSetNames returns set names in the order the catalog listed
// them. Fuzzy-match ties are broken by this order.
func (s *Snapshot) OptionSetNames() []string {
	return s.setOrder
}

// NewSnapshot builds a Snapshot from already-fetched metadata. It is
// the seam tests use to run the mapper against a stub catalog.
func NewSnapshot(attributeIDs map[string]string, sets []OptionSet) *Snapshot {
	snap := &Snapshot{
		attributeIDs: make(map[string]string, len(attributeIDs)),
		optionSets:   make(map[string]*OptionSet, len(sets)),
	}
	for name, id := range attributeIDs {
		snap.attributeIDs[name] = id
	}
	for i := range sets {
		set := sets[i]
		if _, dup := snap.optionSets[set.DisplayName]; dup {
			continue
		}
		snap.optionSets[set.DisplayName] = &set
		snap.setOrder = append(snap.setOrder, set.DisplayName)
	}
	return snap
}

type attributeListResponse struct {
	TrackedEntityAttributes []struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	} `json:"trackedEntityAttributes"`
}

type optionSetListResponse struct {
	OptionSets []OptionSet `json:"optionSets"`
}

// FetchSnapshot retrieves the attribute list and option sets and
// returns them as one immutable Snapshot. The two reads run
// concurrently; failure of either is fatal to the caller's run, since
// no correct mapping is possible without the schema.
func (c *Client) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	var (
		attrs attributeListResponse
		sets  optionSetListResponse
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.getJSON(gctx, c.paths.TrackedEntityAttributes, &attrs); err != nil {
			return fmt.Errorf("fetch tracked entity attributes: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := c.getJSON(gctx, c.paths.OptionSets, &sets); err != nil {
			return fmt.Errorf("fetch option sets: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := make(map[string]string, len(attrs.TrackedEntityAttributes))
	for _, a := range attrs.TrackedEntityAttributes {
		ids[a.DisplayName] = a.ID
	}

	return NewSnapshot(ids, sets.OptionSets), nil
}
