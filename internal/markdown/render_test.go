package markdown

import (
	"strings"
	"testing"
)

// TestRender_BasicHeaders tests TOC and sections for an H1 with two H2s.
func TestRender_BasicHeaders(t *testing.T) {
	input := `# Paper Search

Introduction text here.

## Title search

Title details here.

## Abstract search

Abstract details here.
`

	page, err := NewRenderer().Render([]byte(input))
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if page.Title != "Paper Search" {
		t.Errorf("Title: expected 'Paper Search', got %q", page.Title)
	}

	if len(page.Sections) != 3 {
		t.Fatalf("Expected 3 sections, got %d", len(page.Sections))
	}
	expectedPath := "# Paper Search > ## Abstract search"
	if page.Sections[2].HeaderPath != expectedPath {
		t.Errorf("Section 2 HeaderPath: expected %q, got %q", expectedPath, page.Sections[2].HeaderPath)
	}
	if page.Sections[1].Level != 2 {
		t.Errorf("Section 1 level: expected 2, got %d", page.Sections[1].Level)
	}

	for _, s := range page.Sections {
		if !strings.Contains(page.TOC, `href="#`+s.ID+`"`) {
			t.Errorf("TOC missing link to %q", s.ID)
		}
		if !strings.Contains(page.Body, `id="`+s.ID+`"`) {
			t.Errorf("Body missing anchor %q", s.ID)
		}
	}
	if !strings.Contains(page.Body, "<p>Abstract details here.</p>") {
		t.Errorf("Body missing paragraph")
	}
}

// TestRender_NoHeaders renders a plain document without TOC.
func TestRender_NoHeaders(t *testing.T) {
	page, err := NewRenderer().Render([]byte("Just text."))
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if page.TOC != "" {
		t.Errorf("Expected empty TOC, got %q", page.TOC)
	}
	if len(page.Sections) != 0 {
		t.Errorf("Expected no sections, got %d", len(page.Sections))
	}
	if !strings.Contains(page.Body, "Just text.") {
		t.Errorf("Body missing content")
	}
}

// TestRender_Table tests that GFM tables are enabled.
func TestRender_Table(t *testing.T) {
	input := "| Field | Type |\n|---|---|\n| query | string |\n"
	page, err := NewRenderer().Render([]byte(input))
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(page.Body, "<table>") {
		t.Errorf("Expected a table, got %q", page.Body)
	}
}
