package graph

import (
	"fmt"
	"testing"

	"github.com/reno4705/docintel/pkg/common"
)

func newTestResolver() (*Resolver, *Store) {
	store := NewStore()
	return NewResolver(NewResolverParams{Store: store}), store
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain name", "John Smith", "john smith"},
		{"honorific stripped", "Dr. John Smith", "john smith"},
		{"honorific without dot", "Mr John Smith", "john smith"},
		{"middle initial dropped", "John Q. Smith", "john smith"},
		{"leading initial dropped", "J. Smith", "smith"},
		{"organization article", "The Acme Corporation", "acme corporation"},
		{"punctuation removed", "Smith, John", "smith john"},
		{"only initials fall back", "J. Q.", "j q"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeName(tt.input); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestResolver_IdenticalNormalizedNamesShareIdentity(t *testing.T) {
	resolver, _ := newTestResolver()

	first, err := resolver.Resolve(common.Mention{Name: "Dr. John Smith", Type: "person", DocumentID: "doc-1"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	second, err := resolver.Resolve(common.Mention{Name: "John Smith", Type: "person", DocumentID: "doc-2"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected same canonical entity, got %s and %s", first.ID, second.ID)
	}
	if len(first.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %v", first.Sources)
	}
	if first.MentionCount != 2 {
		t.Fatalf("expected 2 mentions, got %d", first.MentionCount)
	}
}

func TestResolver_InitialVariantMergesByTokenOverlap(t *testing.T) {
	resolver, _ := newTestResolver()

	full, _ := resolver.Resolve(common.Mention{Name: "John Smith", Type: "person", DocumentID: "doc-1"})
	abbreviated, _ := resolver.Resolve(common.Mention{Name: "J. Smith", Type: "person", DocumentID: "doc-2"})

	if full.ID != abbreviated.ID {
		t.Fatal("expected J. Smith to resolve to John Smith's entity")
	}
	if len(full.Aliases) != 2 {
		t.Fatalf("expected both spellings as aliases, got %v", full.Aliases)
	}
	if len(full.Sources) != 2 {
		t.Fatalf("expected both documents as sources, got %v", full.Sources)
	}
}

func TestResolver_TypeDisagreementBlocksCandidateMerge(t *testing.T) {
	resolver, _ := newTestResolver()

	person, _ := resolver.Resolve(common.Mention{Name: "John Smith", Type: "person", DocumentID: "doc-1"})
	org, _ := resolver.Resolve(common.Mention{Name: "Smith", Type: "organization", DocumentID: "doc-2"})

	if person.ID == org.ID {
		t.Fatal("expected different types to stay separate entities")
	}
}

func TestResolver_DistinctNamesStaySeparate(t *testing.T) {
	resolver, _ := newTestResolver()

	smith, _ := resolver.Resolve(common.Mention{Name: "John Smith", Type: "person", DocumentID: "doc-1"})
	jones, _ := resolver.Resolve(common.Mention{Name: "Mary Jones", Type: "person", DocumentID: "doc-1"})

	if smith.ID == jones.ID {
		t.Fatal("expected distinct entities for distinct names")
	}
}

func TestResolver_AliasMatchesCaseInsensitive(t *testing.T) {
	resolver, _ := newTestResolver()

	first, _ := resolver.Resolve(common.Mention{Name: "ACME Corp", Type: "organization", DocumentID: "doc-1"})
	second, _ := resolver.Resolve(common.Mention{Name: "acme corp", Type: "organization", DocumentID: "doc-2"})

	if first.ID != second.ID {
		t.Fatal("expected case-insensitive alias match")
	}
	if len(first.Aliases) != 1 {
		t.Fatalf("expected no duplicate alias for case variant, got %v", first.Aliases)
	}
}

func TestResolver_EmptyNameIgnored(t *testing.T) {
	resolver, store := newTestResolver()

	e, err := resolver.Resolve(common.Mention{Name: "   ", Type: "person", DocumentID: "doc-1"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if e != nil {
		t.Fatalf("expected nil entity for empty name, got %+v", e)
	}
	if len(store.Entities()) != 0 {
		t.Fatal("expected no entity created")
	}
}

func TestResolver_ConcurrentSameNameSingleEntity(t *testing.T) {
	resolver, store := newTestResolver()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			resolver.Resolve(common.Mention{
				Name:       "John Smith",
				Type:       "person",
				DocumentID: fmt.Sprintf("doc-%d", i),
			})
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	if got := len(store.Entities()); got != 1 {
		t.Fatalf("expected 1 canonical entity, got %d", got)
	}
}
