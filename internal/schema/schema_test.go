package schema

import "testing"

func TestFieldNamesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, name := range FieldNames() {
		if seen[name] {
			t.Errorf("duplicate field name %q", name)
		}
		seen[name] = true
	}
}

func TestGroupedFieldsHaveOptions(t *testing.T) {
	for _, field := range Fields() {
		switch field.Kind {
		case KindRadio, KindCheckbox, KindSelect:
			if len(field.Options) == 0 {
				t.Errorf("field %q of kind %s has no options", field.Name, field.Kind)
			}
		}
	}
}

func TestLookup(t *testing.T) {
	field, ok := Lookup("surname")
	if !ok {
		t.Fatal("expected surname to exist")
	}
	if field.Kind != KindText {
		t.Errorf("surname kind = %s", field.Kind)
	}
	if _, ok := Lookup("no-such-field"); ok {
		t.Error("expected lookup miss for unknown field")
	}
}

func TestReferenceDataPresent(t *testing.T) {
	if len(Countries()) == 0 {
		t.Error("expected country list")
	}
	// 50 states plus the District of Columbia.
	states := USStates()
	if len(states) != 51 {
		t.Errorf("expected 51 entries, got %d", len(states))
	}
}
