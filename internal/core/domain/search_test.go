package domain

import (
	"encoding/json"
	"testing"
)

func TestNormalizeTopK(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-1, DefaultTopK},
		{0, DefaultTopK},
		{1, 1},
		{10, 10},
		{MaxTopK, MaxTopK},
		{MaxTopK + 1, MaxTopK},
	}

	for _, tt := range tests {
		if got := NormalizeTopK(tt.in); got != tt.want {
			t.Errorf("NormalizeTopK(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSearchHit_JSONShape(t *testing.T) {
	data, err := json.Marshal([]SearchHit{{ID: "42", Score: 0.87, Text: "Yes we can."}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `[{"id":"42","score":0.87,"text":"Yes we can."}]`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, string(data))
	}
}
