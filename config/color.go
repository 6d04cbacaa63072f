package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidColor 颜色字符串不是 #RRGGBB
var ErrInvalidColor = errors.New("颜色格式无效")

// RGBToHex [R,G,B] -> #rrggbb
func RGBToHex(rgb [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2])
}

// HexToRGB #rrggbb（# 可省略）-> [R,G,B]
func HexToRGB(s string) ([3]uint8, error) {
	var out [3]uint8
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 {
		return out, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseUint(h[i*2:i*2+2], 16, 8)
		if err != nil {
			return out, fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
		out[i] = uint8(v)
	}
	return out, nil
}
