package permissions

import (
	"fmt"
	"slices"
)

// GrantOracle answers whether the host currently grants a permission.
// Unknown names are reported as not granted.
type GrantOracle interface {
	IsGranted(name string) (bool, error)
}

// Descriptor is the split of one call's permission names, computed before any
// dialog is shown. The two sets are disjoint and together hold every
// distinct input name, each in first-occurrence order.
type Descriptor struct {
	granted []string
	denied  []string
}

// Partition de-duplicates names and asks the oracle about each one.
// The first oracle error aborts the partition.
func Partition(oracle GrantOracle, names ...string) (Descriptor, error) {
	var req Descriptor
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		granted, err := oracle.IsGranted(name)
		if err != nil {
			return Descriptor{}, fmt.Errorf("permissions: check %q: %w", name, err)
		}
		if granted {
			req.granted = append(req.granted, name)
		} else {
			req.denied = append(req.denied, name)
		}
	}
	return req, nil
}

// Granted returns the names the host already grants.
func (r Descriptor) Granted() []string { return slices.Clone(r.granted) }

// Denied returns the names that need the interactive dialog.
func (r Descriptor) Denied() []string { return slices.Clone(r.denied) }

// NeedsPrompt reports whether any name needs the interactive dialog.
func (r Descriptor) NeedsPrompt() bool { return len(r.denied) > 0 }
