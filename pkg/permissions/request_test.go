package permissions

import (
	"errors"
	"slices"
	"testing"
)

// mapOracle grants the names set to true and counts lookups.
type mapOracle struct {
	granted map[string]bool
	calls   map[string]int
	err     error
}

func newMapOracle(granted ...string) *mapOracle {
	o := &mapOracle{granted: map[string]bool{}, calls: map[string]int{}}
	for _, name := range granted {
		o.granted[name] = true
	}
	return o
}

func (o *mapOracle) IsGranted(name string) (bool, error) {
	o.calls[name]++
	if o.err != nil {
		return false, o.err
	}
	return o.granted[name], nil
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name        string
		granted     []string
		input       []string
		wantGranted []string
		wantDenied  []string
	}{
		{
			name:  "no names",
			input: nil,
		},
		{
			name:        "all granted",
			granted:     []string{"A", "B"},
			input:       []string{"A", "B"},
			wantGranted: []string{"A", "B"},
		},
		{
			name:       "none granted",
			input:      []string{"A", "B"},
			wantDenied: []string{"A", "B"},
		},
		{
			name:        "mixed keeps input order",
			granted:     []string{"C", "A"},
			input:       []string{"A", "B", "C", "D"},
			wantGranted: []string{"A", "C"},
			wantDenied:  []string{"B", "D"},
		},
		{
			name:        "duplicates collapse",
			granted:     []string{"B"},
			input:       []string{"A", "A", "B", "B", "A"},
			wantGranted: []string{"B"},
			wantDenied:  []string{"A"},
		},
		{
			name:       "names are not normalized",
			granted:    []string{"camera"},
			input:      []string{"CAMERA"},
			wantDenied: []string{"CAMERA"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Partition(newMapOracle(tt.granted...), tt.input...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := req.Granted(); !slices.Equal(got, tt.wantGranted) {
				t.Errorf("Granted() = %v, want %v", got, tt.wantGranted)
			}
			if got := req.Denied(); !slices.Equal(got, tt.wantDenied) {
				t.Errorf("Denied() = %v, want %v", got, tt.wantDenied)
			}
			if got, want := req.NeedsPrompt(), len(tt.wantDenied) > 0; got != want {
				t.Errorf("NeedsPrompt() = %v, want %v", got, want)
			}
		})
	}
}

func TestPartitionQueriesOncePerName(t *testing.T) {
	o := newMapOracle()
	if _, err := Partition(o, "A", "A", "A", "B"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.calls["A"] != 1 || o.calls["B"] != 1 {
		t.Errorf("calls = %v, want one per name", o.calls)
	}
}

func TestPartitionOracleError(t *testing.T) {
	boom := errors.New("boom")
	o := newMapOracle()
	o.err = boom

	_, err := Partition(o, "A")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped oracle error, got %v", err)
	}
}

func TestDescriptorAccessorsCopy(t *testing.T) {
	req, err := Partition(newMapOracle("A"), "A", "B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req.Granted()[0] = "mutated"
	req.Denied()[0] = "mutated"
	if req.Granted()[0] != "A" || req.Denied()[0] != "B" {
		t.Error("Descriptor accessors should return copies")
	}
}
