package repository

import "testing"

func TestDBDialectNameNilDB(t *testing.T) {
	if got := dbDialectName(nil); got != "sqlite" {
		t.Fatalf("nil db dialect want sqlite got %s", got)
	}
}

func TestDialectSupportsRowLock(t *testing.T) {
	cases := map[string]bool{
		"postgres":   true,
		"postgresql": true,
		"mysql":      true,
		"  MySQL  ":  true,
		"sqlite":     false,
		"":           false,
	}
	for dialect, want := range cases {
		if got := dialectSupportsRowLock(dialect); got != want {
			t.Fatalf("dialect %q row lock want %v got %v", dialect, want, got)
		}
	}
}

func TestApplyRowLockNilQuery(t *testing.T) {
	if got := applyRowLock(nil); got != nil {
		t.Fatalf("nil query should pass through, got %v", got)
	}
}
