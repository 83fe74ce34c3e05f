package template

import (
	"strings"
	"testing"

	"github.com/gridmind/gridmind/internal/core"
)

func TestRegistry_GetUnknownSuggests(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("sentimnt")
	if err == nil {
		t.Fatalf("expected error for unknown template")
	}
	if !core.IsCategory(err, core.ErrCatValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), `did you mean "sentiment"`) {
		t.Fatalf("expected suggestion in error, got %q", err.Error())
	}
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()

	def := freeformDef
	def.Description = "replaced"
	if err := r.Register(MustCompile(def)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, err := r.Get(IDFreeform)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Describe() != "replaced" {
		t.Fatalf("expected replacement to win, got %q", c.Describe())
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	r := NewRegistry()
	ids := r.List()
	if len(ids) != 5 {
		t.Fatalf("expected 5 built-ins, got %d", len(ids))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("list not sorted: %v", ids)
		}
	}
}
