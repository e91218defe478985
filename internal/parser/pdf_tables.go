package parser

import (
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	lineTolerance    = 2.0  // 同一行允许的纵坐标误差（pt）
	cellGapFactor    = 1.5  // 超过 字号*系数 的水平间隔视为分列
	wordGapFactor    = 0.15 // 超过 字号*系数 的间隔补一个空格
	defaultFontSize  = 10.0
	minTableRows     = 2
	minCellsPerTable = 2
)

// Glyph 页面上的一个文字片段及其坐标，原点在左下角
type Glyph struct {
	X, Y     float64
	W        float64
	FontSize float64
	S        string
}

// Table 一个表格，每行是若干单元格文本
type Table [][]string

type textLine struct {
	y      float64
	glyphs []Glyph
}

// DetectTables 根据文字坐标识别表格：按纵坐标归行，再按较大的水平间隔切分单元格，
// 连续至少两行都含有两个以上单元格的区域视为一个表格。
func DetectTables(glyphs []Glyph) []Table {
	lines := groupLines(glyphs)

	var tables []Table
	var current Table
	flush := func() {
		if len(current) >= minTableRows {
			tables = append(tables, current)
		}
		current = nil
	}

	for _, line := range lines {
		cells := splitCells(line.glyphs)
		if len(cells) >= minCellsPerTable {
			current = append(current, cells)
			continue
		}
		flush()
	}
	flush()
	return tables
}

// groupLines 自上而下归并成行
func groupLines(glyphs []Glyph) []textLine {
	sorted := make([]Glyph, 0, len(glyphs))
	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		sorted = append(sorted, g)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var lines []textLine
	for _, g := range sorted {
		n := len(lines)
		if n > 0 && lines[n-1].y-g.Y <= lineTolerance {
			lines[n-1].glyphs = append(lines[n-1].glyphs, g)
			continue
		}
		lines = append(lines, textLine{y: g.Y, glyphs: []Glyph{g}})
	}
	for i := range lines {
		sort.SliceStable(lines[i].glyphs, func(a, b int) bool {
			return lines[i].glyphs[a].X < lines[i].glyphs[b].X
		})
	}
	return lines
}

// splitCells 把一行切成单元格，空单元格被丢弃
func splitCells(line []Glyph) []string {
	var cells []string
	var cell strings.Builder
	flush := func() {
		text := strings.Join(strings.Fields(cell.String()), " ")
		if text != "" {
			cells = append(cells, text)
		}
		cell.Reset()
	}

	for i, g := range line {
		if i > 0 {
			prev := line[i-1]
			size := prev.FontSize
			if size <= 0 {
				size = defaultFontSize
			}
			gap := g.X - glyphEnd(prev, size)
			switch {
			case gap > size*cellGapFactor:
				flush()
			case gap > size*wordGapFactor:
				cell.WriteByte(' ')
			}
		}
		cell.WriteString(g.S)
	}
	flush()
	return cells
}

func glyphEnd(g Glyph, size float64) float64 {
	if g.W > 0 {
		return g.X + g.W
	}
	// 部分字体不给宽度，按半个字号估算每个字符
	return g.X + float64(utf8.RuneCountInString(g.S))*size*0.5
}
