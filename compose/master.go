package compose

import (
	"fmt"
	"strings"
	"time"

	"github.com/mwinterhoff/presswerk/issue"
)

// masterCSS is the pack-independent document stylesheet: reset, @page
// geometry for the paged renderer, and the cover/TOC/article/imprint
// classes. Only the running-head text and the build date vary.
func masterCSS(pack *issue.TemplatePack, buildDate time.Time) string {
	var b strings.Builder

	b.WriteString(`* { margin: 0; padding: 0; box-sizing: border-box; }
html { font-family: "Georgia", "Times New Roman", serif; color: #111; }
img { max-width: 100%; display: block; }
`)

	fmt.Fprintf(&b, `@page {
  size: A4;
  margin: 15mm 15mm 20mm 15mm;
  marks: crop cross;
  bleed: 3mm;
  @top-center { content: %q; font-size: 7pt; letter-spacing: 1px; text-transform: uppercase; }
  @bottom-center { content: counter(page); font-size: 8pt; }
  @bottom-left { content: %q; font-size: 6pt; color: #999; }
}
@page :first {
  @top-center { content: none; }
  @bottom-center { content: none; }
  @bottom-left { content: none; }
}
`, pack.Name, buildDate.Format("2006-01-02"))

	b.WriteString(`.cover { page-break-after: always; padding-top: 40mm; text-align: center; }
.cover-band { height: 60mm; background: linear-gradient(135deg, #1a1a2e 0%, #16213e 55%, #c33764 100%); margin-bottom: 18mm; }
.cover-title { font-size: 42pt; line-height: 1.05; margin-bottom: 10mm; }
.cover-issue { font-size: 14pt; text-transform: uppercase; letter-spacing: 2px; margin-bottom: 4mm; }
.cover-date { font-size: 11pt; color: #555; }

.toc { page-break-before: always; page-break-after: always; }
.toc-title { font-size: 24pt; margin-bottom: 8mm; }
.toc-section { font-size: 10pt; text-transform: uppercase; letter-spacing: 1.5px; margin: 6mm 0 2mm; border-bottom: 0.5pt solid #999; padding-bottom: 1mm; }
.toc-entries { list-style: none; }
.toc-entries li { display: flex; gap: 4mm; align-items: baseline; padding: 1.2mm 0; font-size: 10pt; }
.toc-entry-title { flex: 1; }
.toc-entry-author { color: #666; font-style: italic; }
.toc-entry-page { min-width: 8mm; text-align: right; font-variant-numeric: tabular-nums; }

.article { page-break-before: always; }

.imprint { page-break-before: always; font-size: 9pt; line-height: 1.6; color: #444; }
.imprint h2 { font-size: 12pt; margin-bottom: 4mm; color: #111; }

@media screen {
  body { max-width: 210mm; margin: 0 auto; padding: 10mm; background: #fff; }
}
`)

	return b.String()
}
