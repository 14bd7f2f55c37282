package logging

import "testing"

func TestGenerateRequestID(t *testing.T) {
	id1 := GenerateRequestID()
	id2 := GenerateRequestID()

	if id1 == "" || id2 == "" {
		t.Fatal("GenerateRequestID returned empty string")
	}
	if id1 == id2 {
		t.Errorf("GenerateRequestID returned duplicate IDs: %s", id1)
	}
	if !IsRequestID(id1) {
		t.Errorf("GenerateRequestID returned malformed ID: %s", id1)
	}
}

func TestGenerateRequestIDUniqueness(t *testing.T) {
	ids := make(map[string]bool)
	count := 1000

	for i := 0; i < count; i++ {
		id := GenerateRequestID()
		if ids[id] {
			t.Errorf("Duplicate request ID generated: %s", id)
		}
		ids[id] = true
	}
}

func TestIsRequestID(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"6ba7b810-9dad-11d1-80b4-00c04fd430c8", true},
		{"", false},
		{"not-a-uuid", false},
	}
	for _, tt := range tests {
		if got := IsRequestID(tt.input); got != tt.want {
			t.Errorf("IsRequestID(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
