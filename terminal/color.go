package terminal

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
)

// ColorTier is the color depth the presenter emits
type ColorTier uint8

const (
	TierMono      ColorTier = iota // no color sequences, attributes only
	Tier16                         // SGR 30-37/90-97
	Tier256                        // xterm-256 palette, 38;5;N
	TierTrueColor                  // 24-bit RGB, 38;2;R;G;B
)

func (t ColorTier) String() string {
	switch t {
	case TierTrueColor:
		return "truecolor"
	case Tier256:
		return "256"
	case Tier16:
		return "16"
	default:
		return "mono"
	}
}

// ParseColorTier accepts the names produced by String plus common aliases
func ParseColorTier(s string) (ColorTier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "truecolor", "24bit", "rgb":
		return TierTrueColor, nil
	case "256", "ansi256":
		return Tier256, nil
	case "16", "ansi":
		return Tier16, nil
	case "mono", "none", "ascii":
		return TierMono, nil
	}
	return TierMono, fmt.Errorf("unknown color tier %q", s)
}

// colorKind tells how a resolved color is emitted
type colorKind uint8

const (
	colorDefault colorKind = iota // SGR 39/49
	colorPalette                  // palette index, encoding chosen by tier
	colorRGB                      // 24-bit
)

// sgrColor is a tcell color resolved against a tier, ready for emission
type sgrColor struct {
	kind    colorKind
	index   uint8
	r, g, b uint8
}

// resolveColor decodes a packed tcell color and degrades it to what the tier can show
func resolveColor(c tcell.Color, tier ColorTier) sgrColor {
	if tier == TierMono || c&tcell.ColorValid == 0 || c&tcell.ColorSpecial != 0 {
		return sgrColor{}
	}

	if c&tcell.ColorIsRGB != 0 {
		v := uint32(c & 0xffffff)
		r, g, b := uint8(v>>16), uint8(v>>8), uint8(v)
		switch tier {
		case TierTrueColor:
			return sgrColor{kind: colorRGB, r: r, g: g, b: b}
		case Tier256:
			return sgrColor{kind: colorPalette, index: rgbTo256(r, g, b)}
		default:
			return sgrColor{kind: colorPalette, index: nearest16(r, g, b)}
		}
	}

	idx := int(c - tcell.ColorValid)
	if idx < 0 || idx > 255 {
		return sgrColor{}
	}
	if tier == Tier16 && idx >= 16 {
		r, g, b := paletteRGB(uint8(idx))
		return sgrColor{kind: colorPalette, index: nearest16(r, g, b)}
	}
	return sgrColor{kind: colorPalette, index: uint8(idx)}
}

// Color cube values for 6x6x6 palette (indices 16-231)
// Levels: 0, 95, 135, 175, 215, 255
var cubeValues = [6]uint8{0, 95, 135, 175, 215, 255}

// cubeIndex maps 0-255 to nearest cube index 0-5
// Pre-computed at init time
var cubeIndex [256]uint8

// grayscaleStart is the first grayscale index (232-255 = 24 shades)
const grayscaleStart = 232

// ansi16 holds the xterm default RGB values of the 16 base colors
var ansi16 = [16][3]uint8{
	{0, 0, 0}, {205, 0, 0}, {0, 205, 0}, {205, 205, 0},
	{0, 0, 238}, {205, 0, 205}, {0, 205, 205}, {229, 229, 229},
	{127, 127, 127}, {255, 0, 0}, {0, 255, 0}, {255, 255, 0},
	{92, 92, 255}, {255, 0, 255}, {0, 255, 255}, {255, 255, 255},
}

func init() {
	// Build cube index lookup (which cube level is nearest for each 0-255 value)
	for i := 0; i < 256; i++ {
		best := 0
		bestDist := abs(i - int(cubeValues[0]))
		for j := 1; j < 6; j++ {
			d := abs(i - int(cubeValues[j]))
			if d < bestDist {
				bestDist = d
				best = j
			}
		}
		cubeIndex[i] = uint8(best)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// rgbTo256 finds the nearest 256-color palette index for an RGB value
func rgbTo256(r, g, b uint8) uint8 {
	// Grayscale ramp: 232-255 maps to luminance 8, 18, 28, ..., 238
	gray := (int(r) + int(g) + int(b)) / 3
	maxDiff := max(abs(int(r)-gray), abs(int(g)-gray), abs(int(b)-gray))

	if maxDiff < 10 {
		if gray < 4 {
			return 16
		}
		if gray > 243 {
			return 231
		}
		grayIdx := min(grayscaleStart+(gray-8)/10, 255)

		grayLevel := 8 + (grayIdx-grayscaleStart)*10
		grayDist := abs(int(r)-grayLevel) + abs(int(g)-grayLevel) + abs(int(b)-grayLevel)

		cubeR, cubeG, cubeB := cubeIndex[r], cubeIndex[g], cubeIndex[b]
		cubeDist := abs(int(r)-int(cubeValues[cubeR])) +
			abs(int(g)-int(cubeValues[cubeG])) +
			abs(int(b)-int(cubeValues[cubeB]))

		if grayDist < cubeDist {
			return uint8(grayIdx)
		}
	}

	return 16 + 36*cubeIndex[r] + 6*cubeIndex[g] + cubeIndex[b]
}

// paletteRGB returns the xterm default RGB value of a palette index
func paletteRGB(idx uint8) (r, g, b uint8) {
	switch {
	case idx < 16:
		c := ansi16[idx]
		return c[0], c[1], c[2]
	case idx < grayscaleStart:
		i := int(idx) - 16
		return cubeValues[i/36], cubeValues[i/6%6], cubeValues[i%6]
	default:
		level := uint8(8 + (int(idx)-grayscaleStart)*10)
		return level, level, level
	}
}

// nearest16 picks the base color closest to an RGB value by squared distance
func nearest16(r, g, b uint8) uint8 {
	best := uint8(0)
	bestDist := 1 << 30
	for i, c := range ansi16 {
		dr := int(r) - int(c[0])
		dg := int(g) - int(c[1])
		db := int(b) - int(c[2])
		if d := dr*dr + dg*dg + db*db; d < bestDist {
			bestDist = d
			best = uint8(i)
		}
	}
	return best
}
