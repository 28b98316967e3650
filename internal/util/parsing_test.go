package util

import "testing"

func TestGetString(t *testing.T) {
	m := map[string]interface{}{"name": "alice", "age": 30.0}

	if got := GetString(m, "name"); got != "alice" {
		t.Errorf("GetString(name) = %q, expected %q", got, "alice")
	}
	if got := GetString(m, "age"); got != "" {
		t.Errorf("GetString(age) = %q, expected empty string for non-string field", got)
	}
	if got := GetString(m, "missing"); got != "" {
		t.Errorf("GetString(missing) = %q, expected empty string", got)
	}
}

func TestGetFloat64(t *testing.T) {
	m := map[string]interface{}{"play": 1234.0, "placeholder": "--"}

	got, ok := GetFloat64(m, "play")
	if !ok || got != 1234 {
		t.Errorf("GetFloat64(play) = (%d, %v), expected (1234, true)", got, ok)
	}

	got, ok = GetFloat64(m, "placeholder")
	if ok || got != 0 {
		t.Errorf("GetFloat64(placeholder) = (%d, %v), expected (0, false) for non-numeric placeholder", got, ok)
	}

	got, ok = GetFloat64(m, "missing")
	if ok || got != 0 {
		t.Errorf("GetFloat64(missing) = (%d, %v), expected (0, false)", got, ok)
	}
}
