// Copyright (c) 2024 Neomantra Corp

package storage

import (
	"testing"

	"github.com/marketdata-eng/histfeed/models"
)

func TestColumnList(t *testing.T) {
	got := columnList([]string{"a", "b", "c"})
	want := "a, b, c"
	if got != want {
		t.Fatalf("columnList() = %q, want %q", got, want)
	}
}

func TestUpdateAssignments(t *testing.T) {
	got := updateAssignments([]string{"a", "b", "c"}, []string{"a"})
	want := "b = EXCLUDED.b, c = EXCLUDED.c"
	if got != want {
		t.Fatalf("updateAssignments() = %q, want %q", got, want)
	}
}

func TestNullIntAndString(t *testing.T) {
	if v := nullInt(models.NullInt64{}); v != nil {
		t.Fatalf("nullInt(absent) = %v, want nil", v)
	}
	if v := nullInt(models.NewNullInt64(42)); v != int64(42) {
		t.Fatalf("nullInt(present) = %v, want 42", v)
	}
	if v := nullString(""); v != nil {
		t.Fatalf("nullString(\"\") = %v, want nil", v)
	}
	if v := nullString("x"); v != "x" {
		t.Fatalf("nullString(x) = %v, want x", v)
	}
}
