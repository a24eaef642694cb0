// Package permissions requests batches of runtime permissions from a host
// platform and streams the outcome for each one.
//
// A call to Request splits the names into those the host already grants and
// those that need the interactive dialog. Granted names are emitted first;
// the rest are sent to the host in a single prompt and emitted as the host
// reports its decisions. The sequence closes once every name has a result.
//
//	permissions.Initialize(platform.NewHost(permissions.ScopeApplication))
//
//	stream := permissions.Request(ctx, "CAMERA", "RECORD_AUDIO")
//	for result, err := range stream.All(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(result)
//	}
package permissions

import "slices"

// Status is the outcome for a single permission.
type Status string

const (
	// StatusGranted means the permission is usable.
	StatusGranted Status = "granted"

	// StatusNeedsRationale means the user denied the permission but the host
	// will show the dialog again, typically after the app explains why.
	StatusNeedsRationale Status = "needs_rationale"

	// StatusDeniedPermanently means the host will not show the dialog again.
	// The user has to change the permission from system settings.
	StatusDeniedPermanently Status = "permanently_denied"
)

// IsDenied reports whether s is either kind of denial.
func (s Status) IsDenied() bool {
	return s == StatusNeedsRationale || s == StatusDeniedPermanently
}

// Result pairs a permission name with its outcome.
// Results are comparable; two results are equal when both fields match.
type Result struct {
	Permission string
	Status     Status
}

// Granted returns a granted result for name.
func Granted(name string) Result {
	return Result{Permission: name, Status: StatusGranted}
}

// NeedsRationale returns a re-promptable denial for name.
func NeedsRationale(name string) Result {
	return Result{Permission: name, Status: StatusNeedsRationale}
}

// DeniedPermanently returns a permanent denial for name.
func DeniedPermanently(name string) Result {
	return Result{Permission: name, Status: StatusDeniedPermanently}
}

// IsGranted reports whether the permission was granted.
func (r Result) IsGranted() bool { return r.Status == StatusGranted }

// IsDenied reports whether the permission was denied in either way.
func (r Result) IsDenied() bool { return r.Status.IsDenied() }

// NeedsRationale reports whether the permission was denied but may be requested again.
func (r Result) NeedsRationale() bool { return r.Status == StatusNeedsRationale }

// IsDeniedPermanently reports whether the permission was denied with no further prompting.
func (r Result) IsDeniedPermanently() bool { return r.Status == StatusDeniedPermanently }

func (r Result) String() string {
	switch r.Status {
	case StatusGranted:
		return "Granted(" + r.Permission + ")"
	case StatusNeedsRationale:
		return "Denied.NeedsRationale(" + r.Permission + ")"
	case StatusDeniedPermanently:
		return "Denied.DeniedPermanently(" + r.Permission + ")"
	default:
		return string(r.Status) + "(" + r.Permission + ")"
	}
}

// Results is a completed or partial sequence of results.
type Results []Result

// AllGranted reports whether every result is granted. It is true for an empty sequence.
func (rs Results) AllGranted() bool {
	for _, r := range rs {
		if !r.IsGranted() {
			return false
		}
	}
	return true
}

// Denied returns the distinct results that are denials of either kind.
func (rs Results) Denied() Results { return rs.distinct(Result.IsDenied) }

// DeniedPermanently returns the distinct permanent denials.
func (rs Results) DeniedPermanently() Results { return rs.distinct(Result.IsDeniedPermanently) }

// NeedsRationale returns the distinct re-promptable denials.
func (rs Results) NeedsRationale() Results { return rs.distinct(Result.NeedsRationale) }

// Granted returns the distinct granted results.
func (rs Results) Granted() Results { return rs.distinct(Result.IsGranted) }

// distinct keeps the first occurrence of each result matching keep.
func (rs Results) distinct(keep func(Result) bool) Results {
	seen := make(map[Result]struct{}, len(rs))
	out := Results{}
	for _, r := range rs {
		if !keep(r) {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Names returns the permission names in order.
func (rs Results) Names() []string {
	names := make([]string, 0, len(rs))
	for _, r := range rs {
		names = append(names, r.Permission)
	}
	return names
}

// Contains reports whether r is in the sequence.
func (rs Results) Contains(r Result) bool {
	return slices.Contains(rs, r)
}
