package shorts

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"unicode"

	"gocv.io/x/gocv"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"shortsmith/common"
)

var (
	captionFill    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	captionOutline = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

// captionOutlineExtra is how much thicker the outline stroke is than the fill
const captionOutlineExtra = 4

// CaptionLayer rasterizes the caption into a transparent full-frame PNG.
type CaptionLayer struct {
	cfg    common.CaptionConfig
	frameW int
	frameH int
	font   gocv.HersheyFont
}

func NewCaptionLayer(cfg common.PipelineConfig) *CaptionLayer {
	return &CaptionLayer{
		cfg:    cfg.Caption,
		frameW: cfg.FrameWidth,
		frameH: cfg.FrameHeight,
		font:   gocv.FontHersheyDuplex,
	}
}

func (c *CaptionLayer) measure(s string) int {
	return gocv.GetTextSize(s, c.font, c.cfg.FontScale, c.cfg.Thickness).X
}

// Render wraps text to the configured width and draws it centered both ways,
// white with a black outline, on an otherwise transparent canvas. The Hershey
// fonts only cover ASCII, so text is folded with asciiCaption first.
func (c *CaptionLayer) Render(text, outputPath string) error {
	lines := wrapLines(asciiCaption(text), c.cfg.MaxWidth, c.measure)
	if len(lines) == 0 {
		return fmt.Errorf("caption is empty")
	}

	lineH := gocv.GetTextSize("Hg", c.font, c.cfg.FontScale, c.cfg.Thickness).Y
	step := int(float64(lineH) * c.cfg.LineSpacing)
	blockH := step*(len(lines)-1) + lineH

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), c.frameH, c.frameW, gocv.MatTypeCV8UC4)
	defer img.Close()

	// baseline of the first line
	y := (c.frameH-blockH)/2 + lineH
	for _, line := range lines {
		org := image.Pt((c.frameW-c.measure(line))/2, y)
		gocv.PutTextWithParams(&img, line, org, c.font, c.cfg.FontScale, captionOutline, c.cfg.Thickness+captionOutlineExtra, gocv.LineAA, false)
		gocv.PutTextWithParams(&img, line, org, c.font, c.cfg.FontScale, captionFill, c.cfg.Thickness, gocv.LineAA, false)
		y += step
	}

	if ok := gocv.IMWrite(outputPath, img); !ok {
		return fmt.Errorf("write caption layer %s", outputPath)
	}
	return nil
}

// wrapLines greedily packs words into lines no wider than maxWidth as
// reported by measure. A single word wider than maxWidth gets its own line.
func wrapLines(text string, maxWidth int, measure func(string) int) []string {
	var (
		lines []string
		cur   string
	)
	for _, word := range strings.Fields(text) {
		if cur == "" {
			cur = word
			continue
		}
		candidate := cur + " " + word
		if measure(candidate) <= maxWidth {
			cur = candidate
			continue
		}
		lines = append(lines, cur)
		cur = word
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

// captionPunct maps common typographic runes to their ASCII look-alikes
var captionPunct = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'",
	"\u201C", `"`, "\u201D", `"`,
	"\u2013", "-", "\u2014", "-",
	"\u2026", "...",
	"\u00DF", "ss", "\u00E6", "ae", "\u00C6", "AE",
	"\u0153", "oe", "\u0152", "OE", "\u00F8", "o", "\u00D8", "O",
	"\u00A0", " ",
)

// asciiCaption strips accents, maps typographic punctuation to ASCII and
// drops whatever is left outside printable ASCII.
func asciiCaption(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	folded = captionPunct.Replace(folded)

	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' {
			return ' '
		}
		if r < ' ' || r > '~' {
			return -1
		}
		return r
	}, folded)
}
