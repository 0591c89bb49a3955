package document

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Color is an RGB color with channels in [0, 1]. In JSON it is either an
// array [r, g, b] or a "#rrggbb" / "#rgb" string or one of a few names.
type Color struct {
	R, G, B float64
}

// InRange reports whether every channel is a finite value in [0, 1].
func (c Color) InRange() bool {
	for _, ch := range []float64{c.R, c.G, c.B} {
		if math.IsNaN(ch) || ch < 0 || ch > 1 {
			return false
		}
	}
	return true
}

var (
	Black = Color{}
	White = Color{R: 1, G: 1, B: 1}
)

var namedColors = map[string]Color{
	"black": Black,
	"white": White,
	"red":   {R: 1},
	"green": {G: 0.5},
	"blue":  {B: 1},
	"gray":  {R: 0.5, G: 0.5, B: 0.5},
}

// ParseColor parses the string forms accepted in JSON.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return Color{}, fmt.Errorf("color %q: expected #rrggbb or a color name", s)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("color %q: expected 3 or 6 hex digits", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("color %q: %w", s, err)
	}
	return Color{
		R: float64(v>>16&0xFF) / 255,
		G: float64(v>>8&0xFF) / 255,
		B: float64(v&0xFF) / 255,
	}, nil
}

func (c *Color) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseColor(s)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	var arr []float64
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("color: expected string or [r, g, b]: %w", err)
	}
	if len(arr) != 3 {
		return fmt.Errorf("color: expected 3 channels, got %d", len(arr))
	}
	*c = Color{R: arr[0], G: arr[1], B: arr[2]}
	return nil
}

func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{c.R, c.G, c.B})
}
