// Package layout selects a layout variant and derives typography for one
// article under one template pack, using a deterministic additive scoring
// model over measured article metrics.
package layout

import (
	"fmt"
	"math"

	"github.com/mwinterhoff/presswerk/issue"
	"github.com/mwinterhoff/presswerk/measure"
)

// Decision is the selected variant plus derived numeric parameters for one
// article. Pure value; exactly one per (article, render job).
type Decision struct {
	Variant      issue.Variant
	FontSize     float64 // pt, rounded to 1 decimal
	LineHeight   float64 // unitless, rounded to 2 decimals
	HeroHeightVH float64 // 0 = no hero block
	Columns      int
	Score        int
	Warnings     []string
	Fallback     bool
}

// Summary condenses the decision for embedding on a render job.
func (d Decision) Summary() issue.DecisionSummary {
	return issue.DecisionSummary{
		FontSize: d.FontSize,
		Columns:  d.Columns,
		Score:    d.Score,
		Warnings: d.Warnings,
	}
}

// Scoring adjustments. All additive; the base score is 100 and the final
// score is floored at 0 before candidates are compared.
const (
	baseScore          = 100
	penaltyColumnFit   = 15
	bonusHeroLong      = 10
	penaltyHeroShort   = 5
	penaltyHeroMissing = 20
	penaltyFontFloor   = 25
	penaltyFontCeil    = 10
	penaltyOverflow    = 30
	penaltyImageDense  = 15
	penaltyLongParas   = 10
	bonusPullquote     = 5
	fallbackScore      = 50
)

// columnHeightLimit is the abstract-unit threshold for the overflow check.
const columnHeightLimit = 1000

// lineFactor converts pt*leading into the abstract column-height unit.
const lineFactor = 1.33

// Decide evaluates every variant against the article metrics and returns
// the highest-scoring candidate. Ties go to the earlier variant. An empty
// variant list yields the fallback decision.
func Decide(m measure.Metrics, variants []issue.Variant, rules issue.RuleSet) Decision {
	if len(variants) == 0 {
		return fallbackDecision(rules)
	}

	best := evaluate(variants[0], m, rules)
	for _, v := range variants[1:] {
		if c := evaluate(v, m, rules); c.Score > best.Score {
			best = c
		}
	}
	return best
}

// evaluate scores a single variant candidate.
func evaluate(v issue.Variant, m measure.Metrics, rules issue.RuleSet) Decision {
	cols := v.Columns
	if cols < 1 {
		cols = 1
	}

	score := baseScore
	var warnings []string

	if v.Columns > OptimalColumns(m.WordCount) {
		score -= penaltyColumnFit
		warnings = append(warnings, fmt.Sprintf("%d columns may be too many for %d words", v.Columns, m.WordCount))
	}

	required := rules.Images.HeroRequiredWords
	if v.Hero != nil {
		switch {
		case m.HeroImage != nil && m.WordCount >= required:
			score += bonusHeroLong
		case m.HeroImage != nil:
			score -= penaltyHeroShort
		case m.WordCount > required:
			score -= penaltyHeroMissing
			warnings = append(warnings, "Long article would benefit from hero image")
		}
	}

	font, leading := optimizeTypography(v, m.WordCount, cols, rules)

	if font <= rules.Typography.FontMin {
		score -= penaltyFontFloor
		warnings = append(warnings, "Font size at minimum limit")
	}
	if font >= rules.Typography.FontMax {
		score -= penaltyFontCeil
		warnings = append(warnings, "Font size at maximum limit")
	}

	linesPerColumn := (m.EstimatedLines + cols - 1) / cols
	if font*leading*lineFactor*float64(linesPerColumn) > columnHeightLimit {
		score -= penaltyOverflow
		warnings = append(warnings, "Text may overflow page boundaries")
	}

	if len(m.InlineImages) > cols*rules.Images.MaxImagesPerColumn {
		score -= penaltyImageDense
		warnings = append(warnings, "Too many images for column layout")
	}

	if m.HasLongParagraphs && cols > 2 {
		score -= penaltyLongParas
		warnings = append(warnings, "Long paragraphs in narrow columns may affect readability")
	}

	if v.Pullquote != nil && v.Pullquote.Allow && m.ParagraphCount >= v.Pullquote.MinParagraph {
		score += bonusPullquote
	}

	var heroVH float64
	if v.Hero != nil && m.HeroImage != nil {
		if m.WordCount >= required {
			heroVH = v.Hero.MaxVH
		} else {
			heroVH = v.Hero.MinVH
		}
	}

	if score < 0 {
		score = 0
	}

	return Decision{
		Variant:      v,
		FontSize:     font,
		LineHeight:   leading,
		HeroHeightVH: heroVH,
		Columns:      cols,
		Score:        score,
		Warnings:     warnings,
	}
}

// OptimalColumns maps article length onto a column count: short articles
// read best in one column, medium in two, long in three.
func OptimalColumns(wordCount int) int {
	switch {
	case wordCount < 200:
		return 1
	case wordCount < 500:
		return 2
	default:
		return 3
	}
}

// optimizeTypography derives the body font size and leading for a variant,
// falling back to pack rules where the variant omits bounds. The font is
// clamped into the effective bounds and then into pack-rule bounds so the
// result always satisfies the pack's typography clamps.
func optimizeTypography(v issue.Variant, words, cols int, rules issue.RuleSet) (font, leading float64) {
	lo := rules.Typography.FontMin
	hi := rules.Typography.FontMax
	lhLo := rules.Typography.LineHeightMin
	lhHi := rules.Typography.LineHeightMax
	if v.Body != nil {
		if v.Body.FontMin > 0 {
			lo = v.Body.FontMin
		}
		if v.Body.FontMax > 0 {
			hi = v.Body.FontMax
		}
		if v.Body.Leading[0] > 0 {
			lhLo = v.Body.Leading[0]
		}
		if v.Body.Leading[1] > 0 {
			lhHi = v.Body.Leading[1]
		}
	}

	switch {
	case words < 300:
		font = lo + 0.5
	case words > 800:
		font = hi - 0.3
	default:
		font = lo + 0.2
	}
	if cols > 2 {
		font = math.Max(lo, font-0.2)
	}

	font = math.Min(math.Max(font, lo), hi)
	font = math.Min(math.Max(font, rules.Typography.FontMin), rules.Typography.FontMax)
	font = round1(font)

	t := 0.0
	if hi != lo {
		t = (font - lo) / (hi - lo)
	}
	leading = round2(lhLo + t*(lhHi-lhLo))
	return font, leading
}

// fallbackDecision is emitted when the pack carries no usable variants:
// a synthetic single-column layout at the pack's typographic floor.
func fallbackDecision(rules issue.RuleSet) Decision {
	fallback := issue.Variant{ID: "fallback", Columns: 1}
	cols := fallback.Columns
	if cols > 2 {
		cols = 2
	}
	return Decision{
		Variant:    fallback,
		FontSize:   round1(rules.Typography.FontMin),
		LineHeight: round2(rules.Typography.LineHeightMin),
		Columns:    cols,
		Score:      fallbackScore,
		Warnings:   []string{"Using fallback layout decision"},
		Fallback:   true,
	}
}

func round1(f float64) float64 { return math.Round(f*10) / 10 }
func round2(f float64) float64 { return math.Round(f*100) / 100 }
