package terminal

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"

	"github.com/lixenwraith/framekit/render"
)

func TestRGBTo256(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		want    uint8
	}{
		{"black", 0, 0, 0, 16},
		{"white", 255, 255, 255, 231},
		{"pure red", 255, 0, 0, 196},
		{"pure blue", 0, 0, 255, 21},
		{"mid gray", 128, 128, 128, 244},
		{"cube point", 95, 135, 175, 16 + 36*1 + 6*2 + 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rgbTo256(tt.r, tt.g, tt.b))
		})
	}
}

func TestNearest16(t *testing.T) {
	assert.Equal(t, uint8(9), nearest16(250, 5, 5))
	assert.Equal(t, uint8(0), nearest16(10, 10, 10))
	assert.Equal(t, uint8(15), nearest16(250, 250, 250))

	r, g, b := paletteRGB(196)
	assert.Equal(t, [3]uint8{255, 0, 0}, [3]uint8{r, g, b})
	r, g, b = paletteRGB(232)
	assert.Equal(t, [3]uint8{8, 8, 8}, [3]uint8{r, g, b})
}

func TestResolveColorByTier(t *testing.T) {
	rgb := tcell.NewRGBColor(255, 0, 0)
	pal := tcell.PaletteColor(196)

	assert.Equal(t, sgrColor{kind: colorRGB, r: 255}, resolveColor(rgb, TierTrueColor))
	assert.Equal(t, sgrColor{kind: colorPalette, index: 196}, resolveColor(rgb, Tier256))
	assert.Equal(t, sgrColor{kind: colorPalette, index: 9}, resolveColor(rgb, Tier16))
	assert.Equal(t, sgrColor{}, resolveColor(rgb, TierMono))

	assert.Equal(t, sgrColor{kind: colorPalette, index: 196}, resolveColor(pal, TierTrueColor))
	assert.Equal(t, sgrColor{kind: colorPalette, index: 9}, resolveColor(pal, Tier16))
	assert.Equal(t, sgrColor{kind: colorPalette, index: 4}, resolveColor(tcell.PaletteColor(4), Tier16))

	assert.Equal(t, sgrColor{}, resolveColor(tcell.ColorDefault, TierTrueColor))
	assert.Equal(t, sgrColor{}, resolveColor(tcell.ColorReset, TierTrueColor))
}

func TestStyleCoalescing(t *testing.T) {
	red := tcell.NewRGBColor(200, 10, 20)
	blue := tcell.PaletteColor(4)

	tests := []struct {
		name   string
		tier   ColorTier
		styles []render.Style
		want   string
	}{
		{
			name: "attrs and truecolor in one sequence",
			tier: TierTrueColor,
			styles: []render.Style{
				{Fg: red, Bg: tcell.ColorDefault, Attrs: render.AttrBold | render.AttrUnderline},
			},
			want: "\x1b[0;1;4;38;2;200;10;20m",
		},
		{
			name: "repeated style emits nothing",
			tier: TierTrueColor,
			styles: []render.Style{
				{Fg: red},
				{Fg: red},
			},
			want: "\x1b[0;38;2;200;10;20m",
		},
		{
			name: "color only change skips reset",
			tier: Tier256,
			styles: []render.Style{
				{Fg: red},
				{Fg: red, Bg: blue},
				{Fg: tcell.ColorDefault, Bg: blue},
			},
			want: "\x1b[0;38;5;160m\x1b[48;5;4m\x1b[39m",
		},
		{
			name: "sixteen colors",
			tier: Tier16,
			styles: []render.Style{
				{Fg: tcell.PaletteColor(9), Bg: tcell.PaletteColor(1)},
			},
			want: "\x1b[0;91;41m",
		},
		{
			name: "mono keeps attributes only",
			tier: TierMono,
			styles: []render.Style{
				{Fg: red, Bg: blue, Attrs: render.AttrReverse},
				{Fg: blue, Bg: red, Attrs: render.AttrReverse},
			},
			want: "\x1b[0;7m",
		},
		{
			name: "dropping an attribute resets",
			tier: TierTrueColor,
			styles: []render.Style{
				{Attrs: render.AttrBold | render.AttrStrike},
				{Attrs: render.AttrStrike},
			},
			want: "\x1b[0;1;9m\x1b[0;9m",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			w := bufio.NewWriter(&out)
			var s styleState
			for _, st := range tt.styles {
				s.write(w, st, tt.tier)
			}
			w.Flush()
			assert.Equal(t, tt.want, out.String())
		})
	}
}
