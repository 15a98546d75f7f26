package issue

import (
	"strings"
	"testing"
)

const validPackYAML = `name: Testpack
version: "1.0"
variants:
  - id: single
    columns: 1
    hero:
      min_vh: 30
      max_vh: 50
    body:
      font_min: 9.5
      font_max: 11.0
      leading: [1.4, 1.6]
    pullquote:
      allow: true
      min_paragraph: 3
  - id: double
    columns: 2
rules:
  typography:
    font_min: 9.0
    font_max: 12.0
    line_height_min: 1.3
    line_height_max: 1.6
  layout:
    max_columns: 3
    min_text_length: 50
    max_text_length: 5000
  images:
    hero_required_words: 350
    max_images_per_column: 2
`

func TestParsePack(t *testing.T) {
	p, err := ParsePack([]byte(validPackYAML))
	if err != nil {
		t.Fatal(err)
	}

	if p.Name != "Testpack" || p.Version != "1.0" {
		t.Errorf("pack = %+v", p)
	}
	if len(p.Variants) != 2 {
		t.Fatalf("variants = %d, want 2", len(p.Variants))
	}

	v := p.Variants[0]
	if v.Hero == nil || v.Hero.MinVH != 30 || v.Hero.MaxVH != 50 {
		t.Errorf("hero = %+v", v.Hero)
	}
	if v.Body == nil || v.Body.Leading != [2]float64{1.4, 1.6} {
		t.Errorf("body = %+v", v.Body)
	}
	if v.Pullquote == nil || !v.Pullquote.Allow || v.Pullquote.MinParagraph != 3 {
		t.Errorf("pullquote = %+v", v.Pullquote)
	}
	if p.Variants[1].Body != nil || p.Variants[1].Hero != nil {
		t.Error("omitted optional specs must stay nil")
	}

	if p.Rules.Typography.FontMax != 12.0 || p.Rules.Images.HeroRequiredWords != 350 {
		t.Errorf("rules = %+v", p.Rules)
	}
}

func TestParsePackRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantMsg string
	}{
		{"unknown key", func(s string) string {
			return strings.Replace(s, "version:", "versoin:", 1)
		}, "field versoin not found"},
		{"missing name", func(s string) string {
			return strings.Replace(s, "name: Testpack", "name: \"\"", 1)
		}, "name is required"},
		{"duplicate variant id", func(s string) string {
			return strings.Replace(s, "id: double", "id: single", 1)
		}, "duplicate variant id"},
		{"columns out of range", func(s string) string {
			return strings.Replace(s, "columns: 2", "columns: 4", 1)
		}, "outside 1..3"},
		{"inverted font bounds", func(s string) string {
			return strings.Replace(s, "font_max: 11.0", "font_max: 8.0", 1)
		}, "font_max < font_min"},
		{"invalid typography rules", func(s string) string {
			return strings.Replace(s, "font_min: 9.0", "font_min: 0", 1)
		}, "invalid typography"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePack([]byte(tt.mutate(validPackYAML)))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q missing %q", err, tt.wantMsg)
			}
		})
	}
}

func TestBuiltinPacks(t *testing.T) {
	packs, err := BuiltinPacks()
	if err != nil {
		t.Fatal(err)
	}
	if len(packs) != 2 {
		t.Fatalf("builtin packs = %d, want 2", len(packs))
	}
	// Sorted by file name, each fully valid.
	for _, p := range packs {
		if p.Name == "" || len(p.Variants) == 0 {
			t.Errorf("pack %+v incomplete", p)
		}
		if p.Rules.Typography.FontMin <= 0 {
			t.Errorf("pack %s has no typography rules", p.Name)
		}
	}
}
