// Package typeset wraps the external tools the render pipeline depends on:
// the typesetting engine (expression → SVG), the optional SVG optimizer and
// the optional rasterizer (SVG → PNG). Each tool is an argv template run as a
// subprocess with stdin/stdout pipes; Probe resolves once at startup which of
// the optional tools are actually installed so that routes needing a missing
// tool are never registered.
package typeset
