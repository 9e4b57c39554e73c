package pipeline

import (
	"fmt"
	"testing"
)

func TestHashContentDeterministic(t *testing.T) {
	content := "AAPL quarterly revenue beats estimates"

	h1 := HashContent(content)
	h2 := HashContent(content)

	if h1 != h2 {
		t.Errorf("hash not deterministic: %s != %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
}

func TestHashContentNormalization(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		same bool
	}{
		{"casing differences collapse", "AAPL Beats Estimates", "aapl beats estimates", true},
		{"whitespace runs collapse", "aapl  beats\testimates", "aapl beats estimates", true},
		{"leading/trailing space collapses", "  aapl beats estimates  ", "aapl beats estimates", true},
		{"one character differs", "aapl beats estimates", "aapl beats estimatez", false},
		{"different word order differs", "beats aapl estimates", "aapl beats estimates", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ha, hb := HashContent(tt.a), HashContent(tt.b)
			if (ha == hb) != tt.same {
				t.Errorf("HashContent(%q) == HashContent(%q) = %v, want %v", tt.a, tt.b, ha == hb, tt.same)
			}
		})
	}
}

func TestHashContentCollisionFreedom(t *testing.T) {
	// Practical collision-freedom check over a large distinct sample.
	seen := make(map[string]string, 5000)
	for i := 0; i < 5000; i++ {
		content := fmt.Sprintf("synthetic headline %d for target SYM%d", i, i%97)
		h := HashContent(content)
		if prev, ok := seen[h]; ok {
			t.Fatalf("collision: %q and %q both hash to %s", prev, content, h)
		}
		seen[h] = content
	}
}

func TestNewsContent(t *testing.T) {
	if got := NewsContent("headline", "description"); got != "headline\ndescription" {
		t.Errorf("NewsContent = %q", got)
	}
	if got := NewsContent("headline", ""); got != "headline" {
		t.Errorf("NewsContent without description = %q", got)
	}
}
