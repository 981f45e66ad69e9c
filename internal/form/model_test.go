package form

import (
	"testing"
)

func TestCollectIncludesEmptyTextFields(t *testing.T) {
	m := NewModel()
	snapshot := m.Collect()

	value, ok := snapshot["surname"]
	if !ok {
		t.Fatal("expected surname key even when blank")
	}
	if value != "" {
		t.Errorf("expected empty string, got %v", value)
	}

	// Grouped controls contribute nothing until checked.
	if _, ok := snapshot["gender"]; ok {
		t.Error("unchecked radio group must not appear in the snapshot")
	}
	if _, ok := snapshot["socialMedia"]; ok {
		t.Error("unchecked checkbox group must not appear in the snapshot")
	}
}

func TestSetAndCollectRoundTrip(t *testing.T) {
	m := NewModel()

	if !m.Set("surname", []string{"OKAFOR"}) {
		t.Fatal("expected surname edit to apply")
	}
	if !m.Set("gender", []string{"FEMALE"}) {
		t.Fatal("expected gender edit to apply")
	}
	if !m.Set("socialMedia", []string{"FACEBOOK", "TWITTER"}) {
		t.Fatal("expected socialMedia edit to apply")
	}
	if m.Set("no-such-field", []string{"x"}) {
		t.Error("unknown field must not apply")
	}

	snapshot := m.Collect()
	if snapshot["surname"] != "OKAFOR" {
		t.Errorf("surname = %v", snapshot["surname"])
	}
	if snapshot["gender"] != "FEMALE" {
		t.Errorf("gender = %v", snapshot["gender"])
	}
	social := Values(snapshot["socialMedia"])
	if len(social) != 2 || social[0] != "FACEBOOK" || social[1] != "TWITTER" {
		t.Errorf("socialMedia = %v", snapshot["socialMedia"])
	}
}

func TestRadioIsExclusive(t *testing.T) {
	m := NewModel()
	m.Set("gender", []string{"MALE"})
	m.Set("gender", []string{"FEMALE"})

	snapshot := m.Collect()
	if snapshot["gender"] != "FEMALE" {
		t.Errorf("expected only the last radio choice, got %v", snapshot["gender"])
	}
}

func TestCheckboxEditReplacesSelection(t *testing.T) {
	m := NewModel()
	m.Set("socialMedia", []string{"FACEBOOK", "INSTAGRAM"})
	m.Set("socialMedia", []string{"TWITTER"})

	social := Values(m.Collect()["socialMedia"])
	if len(social) != 1 || social[0] != "TWITTER" {
		t.Errorf("expected selection replaced, got %v", social)
	}
}

func TestFillChecksGroupMembership(t *testing.T) {
	m := NewModel()
	m.Fill(Snapshot{
		"surname":     "OKAFOR",
		"gender":      "FEMALE",
		"socialMedia": []string{"FACEBOOK", "LINKEDIN"},
	})

	snapshot := m.Collect()
	if snapshot["surname"] != "OKAFOR" {
		t.Errorf("surname = %v", snapshot["surname"])
	}
	if snapshot["gender"] != "FEMALE" {
		t.Errorf("gender = %v", snapshot["gender"])
	}
	social := Values(snapshot["socialMedia"])
	if len(social) != 2 || social[0] != "FACEBOOK" || social[1] != "LINKEDIN" {
		t.Errorf("socialMedia = %v", social)
	}
}

func TestFillSkipsAbsentKeys(t *testing.T) {
	m := NewModel()
	m.Set("surname", []string{"OKAFOR"})
	m.Fill(Snapshot{"givenNames": "AMARA"})

	snapshot := m.Collect()
	if snapshot["surname"] != "OKAFOR" {
		t.Error("fill must leave fields absent from the snapshot untouched")
	}
	if snapshot["givenNames"] != "AMARA" {
		t.Errorf("givenNames = %v", snapshot["givenNames"])
	}
}

func TestClearEmptiesEverything(t *testing.T) {
	m := NewModel()
	m.Set("surname", []string{"OKAFOR"})
	m.Set("socialMedia", []string{"FACEBOOK"})
	m.Clear()

	snapshot := m.Collect()
	if snapshot["surname"] != "" {
		t.Errorf("surname = %v", snapshot["surname"])
	}
	if _, ok := snapshot["socialMedia"]; ok {
		t.Error("cleared checkbox group must not appear")
	}
}

func TestIsFilled(t *testing.T) {
	cases := []struct {
		value any
		want  bool
	}{
		{"OKAFOR", true},
		{"", false},
		{"   ", false},
		{[]string{}, false},
		{[]string{""}, false},
		{[]string{"", "FACEBOOK"}, true},
		{nil, false},
		{42, false},
	}
	for _, tc := range cases {
		if got := IsFilled(tc.value); got != tc.want {
			t.Errorf("IsFilled(%v) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestParseSnapshotDropsNonStringValues(t *testing.T) {
	snapshot, err := ParseSnapshot([]byte(`{"surname":"OKAFOR","socialMedia":["FACEBOOK","TWITTER"],"bogus":42,"nested":{"x":1}}`))
	if err != nil {
		t.Fatalf("ParseSnapshot: %v", err)
	}
	if snapshot["surname"] != "OKAFOR" {
		t.Errorf("surname = %v", snapshot["surname"])
	}
	if got := Values(snapshot["socialMedia"]); len(got) != 2 {
		t.Errorf("socialMedia = %v", got)
	}
	if _, ok := snapshot["bogus"]; ok {
		t.Error("numeric value should be dropped")
	}
	if _, ok := snapshot["nested"]; ok {
		t.Error("object value should be dropped")
	}
}

func TestParseSnapshotRejectsNonObject(t *testing.T) {
	if _, err := ParseSnapshot([]byte(`["not","an","object"]`)); err == nil {
		t.Error("expected error for non-object JSON")
	}
}

func TestEqual(t *testing.T) {
	a := Snapshot{"surname": "OKAFOR", "socialMedia": []string{"FACEBOOK"}}
	b := Snapshot{"surname": "OKAFOR", "socialMedia": []any{"FACEBOOK"}}
	if !Equal(a, b) {
		t.Error("expected snapshots with equivalent values to be equal")
	}
	c := Snapshot{"surname": "ADEYEMI", "socialMedia": []string{"FACEBOOK"}}
	if Equal(a, c) {
		t.Error("expected differing snapshots to be unequal")
	}
	if Equal(a, Snapshot{"surname": "OKAFOR"}) {
		t.Error("expected snapshots with different key sets to be unequal")
	}
}
