// Package hanzi 提供汉字判定和字位（grapheme）切分工具。
// Go 的 rune 即完整 Unicode 标量值，扩展区汉字（如 U+20BB7 𠮷）
// 在 []rune 切分下天然不可分割。
package hanzi

import "unicode"

// IsHan 判断 r 是否为汉字（含各扩展区）。
func IsHan(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

// IsHanString 判断 s 是否全部由汉字组成（空串返回 false）。
func IsHanString(s string) bool {
	n := 0
	for _, r := range s {
		if !IsHan(r) {
			return false
		}
		n++
	}
	return n > 0
}

// Split 将文本按字位切分为 rune 序列。
func Split(text string) []rune {
	return []rune(text)
}

// RuneCount 返回文本的字位数。
func RuneCount(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

// IsSingle 判断 s 是否正好是一个字位。
func IsSingle(s string) bool {
	return RuneCount(s) == 1
}

// Run 表示文本中一段连续的同类字位区间，[Start, End) 为 rune 下标。
type Run struct {
	Start int
	End   int
	Han   bool
}

// Runs 将 rune 序列划分为汉字区间与非汉字区间的交替序列。
// 区间边界即多音字消歧时上下文窗口的硬边界。
func Runs(runes []rune) []Run {
	if len(runes) == 0 {
		return nil
	}
	var runs []Run
	cur := Run{Start: 0, Han: IsHan(runes[0])}
	for i := 1; i < len(runes); i++ {
		h := IsHan(runes[i])
		if h != cur.Han {
			cur.End = i
			runs = append(runs, cur)
			cur = Run{Start: i, Han: h}
		}
	}
	cur.End = len(runes)
	runs = append(runs, cur)
	return runs
}
