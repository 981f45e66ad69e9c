package form

import (
	"visaprep/api/internal/schema"
)

type control struct {
	field schema.Field
	// option is the control's own value for radio/checkbox group members.
	option  string
	text    string
	checked bool
}

func (c *control) grouped() bool {
	return c.field.Kind == schema.KindRadio || c.field.Kind == schema.KindCheckbox
}

// Model is the in-memory control set for the questionnaire. Callers are
// expected to serialize access; the autosave coordinator owns the lock.
type Model struct {
	controls []*control
}

// NewModel builds an empty model from the field schema: one control per
// text-like field, one control per option for radio/checkbox groups.
func NewModel() *Model {
	m := &Model{}
	for _, field := range schema.Fields() {
		if field.Kind == schema.KindRadio || field.Kind == schema.KindCheckbox {
			for _, option := range field.Options {
				m.controls = append(m.controls, &control{field: field, option: option})
			}
			continue
		}
		m.controls = append(m.controls, &control{field: field})
	}
	return m
}

// Collect reads out every named control: text-like controls contribute their
// current value (including empty strings), grouped controls contribute their
// option value only when checked. Repeated names accumulate into a list in
// control order. Side-effect free.
func (m *Model) Collect() Snapshot {
	snapshot := make(Snapshot)
	for _, c := range m.controls {
		name := c.field.Name
		if name == "" {
			continue
		}
		var value string
		if c.grouped() {
			if !c.checked {
				continue
			}
			value = c.option
		} else {
			value = c.text
		}
		existing, ok := snapshot[name]
		if !ok {
			snapshot[name] = value
			continue
		}
		if list, isList := existing.([]string); isList {
			snapshot[name] = append(list, value)
		} else {
			snapshot[name] = []string{existing.(string), value}
		}
	}
	return snapshot
}

// Fill overlays snapshot values onto the controls. Grouped controls become
// checked when their option value equals the stored scalar or appears in the
// stored list. Keys with no matching control are skipped; fields absent from
// the snapshot are left untouched.
func (m *Model) Fill(snapshot Snapshot) {
	if snapshot == nil {
		return
	}
	for _, c := range m.controls {
		value, ok := snapshot[c.field.Name]
		if !ok {
			continue
		}
		values := Values(value)
		if c.grouped() {
			c.checked = contains(values, c.option)
			continue
		}
		if len(values) > 0 {
			c.text = values[0]
		} else {
			c.text = ""
		}
	}
}

// Clear resets every control to its empty state.
func (m *Model) Clear() {
	for _, c := range m.controls {
		c.checked = false
		c.text = ""
	}
}

// Set applies a single edit event to the named field. Text-like controls
// take the first value; radio groups check exactly the matching option;
// checkbox groups check every option present in values.
func (m *Model) Set(name string, values []string) bool {
	applied := false
	for _, c := range m.controls {
		if c.field.Name != name {
			continue
		}
		applied = true
		switch {
		case c.field.Kind == schema.KindRadio:
			c.checked = len(values) > 0 && c.option == values[0]
		case c.field.Kind == schema.KindCheckbox:
			c.checked = contains(values, c.option)
		default:
			if len(values) > 0 {
				c.text = values[0]
			} else {
				c.text = ""
			}
		}
	}
	return applied
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
