package utils

import "testing"

func TestUniqueSlicePreservesOrder(t *testing.T) {
	got := UniqueSlice([]string{"a", "b", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("UniqueSlice = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("UniqueSlice = %v, want %v", got, want)
		}
	}
	if out := UniqueSlice([]int(nil)); len(out) != 0 {
		t.Fatalf("UniqueSlice(nil) = %v, want empty", out)
	}
}

func TestFormatSalesOrderNo(t *testing.T) {
	cases := map[int64]string{
		1:       "SO-000001",
		123:     "SO-000123",
		999999:  "SO-999999",
		1000000: "SO-1000000",
	}
	for serial, want := range cases {
		if got := FormatSalesOrderNo(serial); got != want {
			t.Errorf("FormatSalesOrderNo(%d) = %q, want %q", serial, got, want)
		}
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  ab-01 "); got != "AB-01" {
		t.Fatalf("NormalizeCode = %q", got)
	}
}

func TestDereferencePtr(t *testing.T) {
	s := "x"
	if got := DereferencePtr(&s); got != "x" {
		t.Fatalf("DereferencePtr(&s) = %q", got)
	}
	if got := DereferencePtr[string](nil); got != "" {
		t.Fatalf("DereferencePtr(nil) = %q, want zero value", got)
	}
}
