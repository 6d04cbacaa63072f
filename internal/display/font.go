package display

import "unicode"

// Glyph 位图字形：每行一个掩码，最高有效位在左
type Glyph struct {
	Width  int
	Height int
	Rows   []uint16
}

// BitmapFont 位图字体
type BitmapFont struct {
	Name   string
	Height int
	Glyphs map[rune]Glyph
	// MissingAdvance 字体中没有的字符前进的像素数（0 表示直接跳过）
	MissingAdvance int
	// FoldCase 小写字母按大写绘制
	FoldCase bool
}

// Lookup 查找字形
func (f *BitmapFont) Lookup(r rune) (Glyph, bool) {
	if g, ok := f.Glyphs[r]; ok {
		return g, true
	}
	if f.FoldCase {
		if g, ok := f.Glyphs[unicode.ToUpper(r)]; ok {
			return g, true
		}
	}
	return Glyph{}, false
}

// Advance 字符前进宽度（字宽 + 1 像素间隔）
func (f *BitmapFont) Advance(r rune) int {
	if g, ok := f.Lookup(r); ok {
		return g.Width + 1
	}
	return f.MissingAdvance
}

func glyph(width int, rows ...uint16) Glyph {
	return Glyph{Width: width, Height: len(rows), Rows: rows}
}

// SmallFont 3x5 字体：大写字母、数字和常用符号
var SmallFont = &BitmapFont{
	Name:           "small",
	Height:         5,
	MissingAdvance: 7,
	FoldCase:       true,
	Glyphs: map[rune]Glyph{
		' ': glyph(3, 0b000, 0b000, 0b000, 0b000, 0b000),
		'0': glyph(3, 0b111, 0b101, 0b101, 0b101, 0b111),
		'1': glyph(3, 0b010, 0b110, 0b010, 0b010, 0b111),
		'2': glyph(3, 0b111, 0b001, 0b111, 0b100, 0b111),
		'3': glyph(3, 0b111, 0b001, 0b111, 0b001, 0b111),
		'4': glyph(3, 0b101, 0b101, 0b111, 0b001, 0b001),
		'5': glyph(3, 0b111, 0b100, 0b111, 0b001, 0b111),
		'6': glyph(3, 0b111, 0b100, 0b111, 0b101, 0b111),
		'7': glyph(3, 0b111, 0b001, 0b010, 0b010, 0b010),
		'8': glyph(3, 0b111, 0b101, 0b111, 0b101, 0b111),
		'9': glyph(3, 0b111, 0b101, 0b111, 0b001, 0b111),
		'A': glyph(3, 0b010, 0b101, 0b111, 0b101, 0b101),
		'B': glyph(3, 0b110, 0b101, 0b110, 0b101, 0b110),
		'C': glyph(3, 0b011, 0b100, 0b100, 0b100, 0b011),
		'D': glyph(3, 0b110, 0b101, 0b101, 0b101, 0b110),
		'E': glyph(3, 0b111, 0b100, 0b110, 0b100, 0b111),
		'F': glyph(3, 0b111, 0b100, 0b110, 0b100, 0b100),
		'G': glyph(3, 0b011, 0b100, 0b101, 0b101, 0b011),
		'H': glyph(3, 0b101, 0b101, 0b111, 0b101, 0b101),
		'I': glyph(3, 0b111, 0b010, 0b010, 0b010, 0b111),
		'J': glyph(3, 0b001, 0b001, 0b001, 0b101, 0b010),
		'K': glyph(3, 0b101, 0b101, 0b110, 0b101, 0b101),
		'L': glyph(3, 0b100, 0b100, 0b100, 0b100, 0b111),
		'M': glyph(3, 0b101, 0b111, 0b111, 0b101, 0b101),
		'N': glyph(3, 0b110, 0b101, 0b101, 0b101, 0b101),
		'O': glyph(3, 0b010, 0b101, 0b101, 0b101, 0b010),
		'P': glyph(3, 0b110, 0b101, 0b110, 0b100, 0b100),
		'Q': glyph(3, 0b010, 0b101, 0b101, 0b110, 0b011),
		'R': glyph(3, 0b110, 0b101, 0b110, 0b101, 0b101),
		'S': glyph(3, 0b011, 0b100, 0b010, 0b001, 0b110),
		'T': glyph(3, 0b111, 0b010, 0b010, 0b010, 0b010),
		'U': glyph(3, 0b101, 0b101, 0b101, 0b101, 0b111),
		'V': glyph(3, 0b101, 0b101, 0b101, 0b101, 0b010),
		'W': glyph(3, 0b101, 0b101, 0b111, 0b111, 0b101),
		'X': glyph(3, 0b101, 0b101, 0b010, 0b101, 0b101),
		'Y': glyph(3, 0b101, 0b101, 0b010, 0b010, 0b010),
		'Z': glyph(3, 0b111, 0b001, 0b010, 0b100, 0b111),
		'.': glyph(1, 0b0, 0b0, 0b0, 0b0, 0b1),
		',': glyph(2, 0b00, 0b00, 0b00, 0b01, 0b10),
		':': glyph(1, 0b0, 0b1, 0b0, 0b1, 0b0),
		'|': glyph(1, 0b1, 0b1, 0b1, 0b1, 0b1),
		'!': glyph(1, 0b1, 0b1, 0b1, 0b0, 0b1),
		'\'': glyph(1, 0b1, 0b1, 0b0, 0b0, 0b0),
		'/': glyph(3, 0b001, 0b001, 0b010, 0b100, 0b100),
		'-': glyph(3, 0b000, 0b000, 0b111, 0b000, 0b000),
		'+': glyph(3, 0b000, 0b010, 0b111, 0b010, 0b000),
		'=': glyph(3, 0b000, 0b111, 0b000, 0b111, 0b000),
		'_': glyph(3, 0b000, 0b000, 0b000, 0b000, 0b111),
		'?': glyph(3, 0b110, 0b001, 0b010, 0b000, 0b010),
		'%': glyph(3, 0b101, 0b001, 0b010, 0b100, 0b101),
		'#': glyph(3, 0b101, 0b111, 0b101, 0b111, 0b101),
		'(': glyph(2, 0b01, 0b10, 0b10, 0b10, 0b01),
		')': glyph(2, 0b10, 0b01, 0b01, 0b01, 0b10),
		'<': glyph(3, 0b001, 0b010, 0b100, 0b010, 0b001),
		'>': glyph(3, 0b100, 0b010, 0b001, 0b010, 0b100),
		'°': glyph(3, 0b010, 0b101, 0b010, 0b000, 0b000),
	},
}

// TimeFont 6x10 时间数字
var TimeFont = &BitmapFont{
	Name:   "time",
	Height: 10,
	Glyphs: map[rune]Glyph{
		'0': glyph(6, 0b011110, 0b110011, 0b110011, 0b110011, 0b110011, 0b110011, 0b110011, 0b110011, 0b110011, 0b011110),
		'1': glyph(6, 0b001100, 0b011100, 0b111100, 0b001100, 0b001100, 0b001100, 0b001100, 0b001100, 0b001100, 0b111111),
		'2': glyph(6, 0b011110, 0b110011, 0b000011, 0b000011, 0b000110, 0b001100, 0b011000, 0b110000, 0b110000, 0b111111),
		'3': glyph(6, 0b011110, 0b110011, 0b000011, 0b000011, 0b001110, 0b000011, 0b000011, 0b000011, 0b110011, 0b011110),
		'4': glyph(6, 0b000110, 0b001110, 0b011110, 0b110110, 0b110110, 0b111111, 0b000110, 0b000110, 0b000110, 0b000110),
		'5': glyph(6, 0b111111, 0b110000, 0b110000, 0b111110, 0b000011, 0b000011, 0b000011, 0b000011, 0b110011, 0b011110),
		'6': glyph(6, 0b011110, 0b110011, 0b110000, 0b110000, 0b111110, 0b110011, 0b110011, 0b110011, 0b110011, 0b011110),
		'7': glyph(6, 0b111111, 0b000011, 0b000011, 0b000110, 0b000110, 0b001100, 0b001100, 0b011000, 0b011000, 0b011000),
		'8': glyph(6, 0b011110, 0b110011, 0b110011, 0b110011, 0b011110, 0b110011, 0b110011, 0b110011, 0b110011, 0b011110),
		'9': glyph(6, 0b011110, 0b110011, 0b110011, 0b110011, 0b110011, 0b011111, 0b000011, 0b000011, 0b110011, 0b011110),
		':': glyph(2, 0b00, 0b00, 0b11, 0b11, 0b00, 0b00, 0b11, 0b11, 0b00, 0b00),
	},
}
