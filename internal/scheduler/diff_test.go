package scheduler

import (
	"reflect"
	"testing"
	"time"
)

func TestDiff(t *testing.T) {
	base := time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)
	later := base.Add(30 * time.Minute)
	other := base.Add(45 * time.Minute)

	tests := []struct {
		name       string
		pushed     Set
		desired    Set
		wantLock   []string
		wantUnlock []string
	}{
		{
			name:     "nothing pushed yet",
			pushed:   NewSet(),
			desired:  NewSet(Entry{PackageName: "com.b"}, Entry{PackageName: "com.a", UnlockAt: &later}),
			wantLock: []string{"com.a", "com.b"},
		},
		{
			name:       "released package",
			pushed:     NewSet(Entry{PackageName: "com.a"}, Entry{PackageName: "com.b"}),
			desired:    NewSet(Entry{PackageName: "com.a"}),
			wantUnlock: []string{"com.b"},
		},
		{
			name:     "unlock time changed",
			pushed:   NewSet(Entry{PackageName: "com.a", UnlockAt: &later}),
			desired:  NewSet(Entry{PackageName: "com.a", UnlockAt: &other}),
			wantLock: []string{"com.a"},
		},
		{
			name:     "finite became indefinite",
			pushed:   NewSet(Entry{PackageName: "com.a", UnlockAt: &later}),
			desired:  NewSet(Entry{PackageName: "com.a"}),
			wantLock: []string{"com.a"},
		},
		{
			name:    "unchanged",
			pushed:  NewSet(Entry{PackageName: "com.a", UnlockAt: &later}),
			desired: NewSet(Entry{PackageName: "com.a", UnlockAt: &later}),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			delta := Diff(tt.pushed, tt.desired)

			var locked []string
			for _, entry := range delta.Lock {
				locked = append(locked, entry.PackageName)
			}
			if !reflect.DeepEqual(locked, tt.wantLock) {
				t.Fatalf("lock: expected %v, got %v", tt.wantLock, locked)
			}
			if !reflect.DeepEqual(delta.Unlock, tt.wantUnlock) {
				t.Fatalf("unlock: expected %v, got %v", tt.wantUnlock, delta.Unlock)
			}
			if delta.Empty() != (len(tt.wantLock) == 0 && len(tt.wantUnlock) == 0) {
				t.Fatalf("unexpected Empty() = %v", delta.Empty())
			}
		})
	}
}

func TestSetCloneIsIndependent(t *testing.T) {
	original := NewSet(Entry{PackageName: "com.a"})
	clone := original.Clone()
	clone["com.b"] = Entry{PackageName: "com.b"}

	if len(original) != 1 {
		t.Fatalf("clone must not alias the original")
	}
	if got := clone.Packages(); !reflect.DeepEqual(got, []string{"com.a", "com.b"}) {
		t.Fatalf("unexpected packages %v", got)
	}
}
