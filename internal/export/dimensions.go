package export

import (
	"bytes"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

// FallbackSize is used when an SVG declares neither usable width/height nor a
// viewBox.
const FallbackSize = 18

var leadingFloat = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// ParseDimensions returns the intrinsic size of an SVG document, rounded to
// whole pixels. Explicit width and height win; otherwise the third and fourth
// values of a four-value viewBox are used; otherwise FallbackSize. A zero or
// unparseable value falls back individually.
func ParseDimensions(svg []byte) (width, height int) {
	w, h := float64(FallbackSize), float64(FallbackSize)
	root := svgRoot(svg)
	if root != nil {
		widthAttr := root.SelectAttr("width")
		heightAttr := root.SelectAttr("height")
		if widthAttr != "" && heightAttr != "" {
			w = orFallback(parseLeadingFloat(widthAttr))
			h = orFallback(parseLeadingFloat(heightAttr))
		} else if viewBox := root.SelectAttr("viewBox"); viewBox != "" {
			parts := strings.Split(viewBox, " ")
			if len(parts) == 4 {
				w = orFallback(parseLeadingFloat(parts[2]))
				h = orFallback(parseLeadingFloat(parts[3]))
			}
		}
	}
	return roundHalfUp(w), roundHalfUp(h)
}

func svgRoot(svg []byte) *xmlquery.Node {
	doc, err := xmlquery.Parse(bytes.NewReader(svg))
	if err != nil {
		return nil
	}
	return xmlquery.FindOne(doc, "//*[local-name()='svg']")
}

// parseLeadingFloat reads the longest numeric prefix of s after leading
// whitespace, returning NaN when there is none.
func parseLeadingFloat(s string) float64 {
	m := leadingFloat.FindString(strings.TrimLeft(s, " \t\n\r\f"))
	if m == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func orFallback(v float64) float64 {
	if math.IsNaN(v) || v == 0 {
		return FallbackSize
	}
	return v
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
