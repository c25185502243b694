package schema

import "testing"

func TestNewStringSetNormalizes(t *testing.T) {
	got, err := NewStringSet([]string{" Mining ", "event", "mining", "EVENT"})
	if err != nil {
		t.Fatalf("NewStringSet error: %v", err)
	}
	if got.String() != "event,mining" {
		t.Fatalf("got=%q, want event,mining", got.String())
	}
}

func TestNewStringSetRejectsMalformed(t *testing.T) {
	bad := [][]string{
		{""},
		{"two words"},
		{"a,b"},
		{"abcdefghijklmnopqrstuvwxyz0123456789"},
	}
	for _, in := range bad {
		if _, err := NewStringSet(in); err == nil {
			t.Fatalf("NewStringSet(%q) should fail", in)
		}
	}
}

func TestParseTagListEmpty(t *testing.T) {
	got, err := ParseTagList("  ")
	if err != nil || len(got) != 0 {
		t.Fatalf("got=%v err=%v, want empty", got, err)
	}
	got, err = ParseTagList("b, a")
	if err != nil || got.String() != "a,b" {
		t.Fatalf("got=%v err=%v", got, err)
	}
}

func TestStringSetScanValue(t *testing.T) {
	var s StringSet
	if err := s.Scan(`["Org", "", "alpha"]`); err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if s.String() != "alpha,org" {
		t.Fatalf("scan=%q", s.String())
	}
	v, err := s.Value()
	if err != nil || v.(string) != `["alpha","org"]` {
		t.Fatalf("value=%v err=%v", v, err)
	}
	if err := s.Scan(nil); err != nil || len(s) != 0 {
		t.Fatalf("nil scan: %v %v", s, err)
	}
	var empty StringSet
	if v, _ := empty.Value(); v.(string) != "[]" {
		t.Fatalf("nil value=%v", v)
	}
}

func TestStringSetIntersects(t *testing.T) {
	a := StringSet{"event", "mining"}
	if !a.Intersects(StringSet{"mining"}) {
		t.Fatalf("expected intersection")
	}
	if a.Intersects(StringSet{"salvage"}) || a.Intersects(nil) {
		t.Fatalf("unexpected intersection")
	}
}
