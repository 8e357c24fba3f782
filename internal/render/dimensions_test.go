package render

import (
	"testing"

	"github.com/any-hub/math-hub/internal/typeset"
)

func TestParseDimensions(t *testing.T) {
	cases := []struct {
		name   string
		svg    string
		width  int
		height int
	}{
		{"integral ex", `<svg xmlns="http://www.w3.org/2000/svg" width="10.0ex" height="2.0ex" viewBox="0 0 1 1"></svg>`, 90, 18},
		{"fractional ex", `<svg width="1.509ex" height="2.176ex" style="vertical-align: -0.338ex"></svg>`, 14, 20},
		{"no leading digit", `<svg width=".5ex" height="3ex"></svg>`, 5, 27},
		{"tiny clamps to one", `<svg width="0.01ex" height="0.01ex"></svg>`, 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dims, err := ParseDimensions([]byte(tc.svg))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dims.Width != tc.width || dims.Height != tc.height {
				t.Fatalf("expected %dx%d, got %dx%d", tc.width, tc.height, dims.Width, dims.Height)
			}
		})
	}
}

func TestParseDimensionsRejectsMalformedOutput(t *testing.T) {
	cases := []string{
		`<svg width="100px" height="2ex"></svg>`,
		`<svg width="10ex"></svg>`,
		`<svg></svg>`,
		`<svg stroke-width="3ex" height="2ex"></svg>`,
	}
	for _, svg := range cases {
		_, err := ParseDimensions([]byte(svg))
		if _, ok := typeset.AsError(err); !ok {
			t.Fatalf("expected typeset error for %s, got %v", svg, err)
		}
	}
}
