package render

import (
	"math"
	"regexp"
	"strconv"

	"github.com/any-hub/math-hub/internal/typeset"
)

// PixelsPerEx 是 ex 单位到像素的经验换算系数，保证光栅图在屏幕上足够清晰。
const PixelsPerEx = 9

var (
	widthAttr  = regexp.MustCompile(`\swidth="([0-9]*\.?[0-9]+)ex"`)
	heightAttr = regexp.MustCompile(`\sheight="([0-9]*\.?[0-9]+)ex"`)
)

// Dimensions 是由 SVG 声明尺寸换算得到的像素大小。
type Dimensions struct {
	Width  int
	Height int
}

// ParseDimensions 从引擎输出中读取首个 width="<n>ex" 与 height="<n>ex" 属性
// 并换算为像素。缺失或非法时返回 *typeset.Error，避免把异常输出交给光栅化器。
func ParseDimensions(svg []byte) (Dimensions, error) {
	width, err := exAttribute(widthAttr, svg, "width")
	if err != nil {
		return Dimensions{}, err
	}
	height, err := exAttribute(heightAttr, svg, "height")
	if err != nil {
		return Dimensions{}, err
	}
	return Dimensions{
		Width:  toPixels(width),
		Height: toPixels(height),
	}, nil
}

func exAttribute(pattern *regexp.Regexp, svg []byte, name string) (float64, error) {
	match := pattern.FindSubmatch(svg)
	if match == nil {
		return 0, typeset.NewError("engine output has no " + name + " in ex units")
	}
	value, err := strconv.ParseFloat(string(match[1]), 64)
	if err != nil || value <= 0 || math.IsInf(value, 0) {
		return 0, typeset.NewError("engine output has invalid " + name + ": " + string(match[1]))
	}
	return value, nil
}

func toPixels(ex float64) int {
	px := int(math.Round(ex * PixelsPerEx))
	if px < 1 {
		return 1
	}
	return px
}
