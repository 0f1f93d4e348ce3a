// Package format 实现四种拼音格式之间的纯表驱动转换：
// 带声调（zhōng）、数字声调（zhong1）、无声调（zhong）、首字母（z）。
// 所有函数均为无状态纯函数，可并发调用。
package format

import (
	"fmt"
	"strings"
)

// Format 拼音输出格式。
type Format int

const (
	// Tone 带声调符号，如 "zhōng"。词典资源文件使用该格式。
	Tone Format = iota
	// Tone2 数字声调，如 "zhong1"。轻声不带数字。
	Tone2
	// Plain 无声调，如 "zhong"。ü 写作 v。
	Plain
	// Abbr 首字母，如 "z"。
	Abbr
)

// String 返回格式名称。
func (f Format) String() string {
	switch f {
	case Tone:
		return "tone"
	case Tone2:
		return "tone2"
	case Plain:
		return "plain"
	case Abbr:
		return "abbr"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// All 按固定顺序返回全部格式，供批处理分组使用。
var All = []Format{Tone, Tone2, Plain, Abbr}

// Parse 解析格式名称，接受常见别名。
func Parse(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tone", "mark", "":
		return Tone, nil
	case "tone2", "number", "num":
		return Tone2, nil
	case "plain", "normal", "none":
		return Plain, nil
	case "abbr", "first", "firstletter":
		return Abbr, nil
	default:
		return Tone, fmt.Errorf("未知的拼音格式: %q", s)
	}
}

// marked 声调字符 → 基础字母 + 声调数字。
// ü 统一写作 v（与 go-pinyin 的 Tone2/Normal 风格一致）。
var marked = map[rune]struct {
	base rune
	tone int
}{
	'ā': {'a', 1}, 'á': {'a', 2}, 'ǎ': {'a', 3}, 'à': {'a', 4},
	'ē': {'e', 1}, 'é': {'e', 2}, 'ě': {'e', 3}, 'è': {'e', 4},
	'ī': {'i', 1}, 'í': {'i', 2}, 'ǐ': {'i', 3}, 'ì': {'i', 4},
	'ō': {'o', 1}, 'ó': {'o', 2}, 'ǒ': {'o', 3}, 'ò': {'o', 4},
	'ū': {'u', 1}, 'ú': {'u', 2}, 'ǔ': {'u', 3}, 'ù': {'u', 4},
	'ǖ': {'v', 1}, 'ǘ': {'v', 2}, 'ǚ': {'v', 3}, 'ǜ': {'v', 4},
	'ü': {'v', 0},
	'ń': {'n', 2}, 'ň': {'n', 3}, 'ǹ': {'n', 4},
	'ḿ': {'m', 2},
}

// marks 基础字母 + 声调数字 → 声调字符（marked 的逆表）。
var marks = map[rune][5]rune{
	'a': {'a', 'ā', 'á', 'ǎ', 'à'},
	'e': {'e', 'ē', 'é', 'ě', 'è'},
	'i': {'i', 'ī', 'í', 'ǐ', 'ì'},
	'o': {'o', 'ō', 'ó', 'ǒ', 'ò'},
	'u': {'u', 'ū', 'ú', 'ǔ', 'ù'},
	'v': {'ü', 'ǖ', 'ǘ', 'ǚ', 'ǜ'},
	'n': {'n', 'n', 'ń', 'ň', 'ǹ'},
	'm': {'m', 'm', 'ḿ', 'm', 'm'},
}

// splitTone 将带声调音节拆为基础形式和声调数字（0 表示轻声）。
func splitTone(syllable string) (string, int) {
	tone := 0
	var b strings.Builder
	for _, r := range syllable {
		if m, ok := marked[r]; ok {
			b.WriteRune(m.base)
			if m.tone > 0 {
				tone = m.tone
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), tone
}

// SyllableTone2 带声调音节 → 数字声调音节。轻声不附加数字。
func SyllableTone2(syllable string) string {
	base, tone := splitTone(syllable)
	if tone == 0 {
		return base
	}
	return fmt.Sprintf("%s%d", base, tone)
}

// SyllablePlain 带声调音节 → 无声调音节。
func SyllablePlain(syllable string) string {
	base, _ := splitTone(syllable)
	return base
}

// SyllableAbbr 带声调音节 → 首字母。
func SyllableAbbr(syllable string) string {
	plain := SyllablePlain(syllable)
	for _, r := range plain {
		return string(r)
	}
	return ""
}

// SyllableTone 数字声调音节 → 带声调音节。
// 标调位置遵循正词法规则：有 a 标 a，无 a 有 e 标 e，
// ou 标 o，其余标最后一个元音。v 视作 ü。
func SyllableTone(syllable string) string {
	base := syllable
	tone := 0
	if n := len(base); n > 0 && base[n-1] >= '0' && base[n-1] <= '5' {
		tone = int(base[n-1] - '0')
		base = base[:n-1]
	}
	if tone == 5 {
		tone = 0
	}

	runes := []rune(base)
	pos := markPosition(runes)
	if pos < 0 {
		// 无可标调字母（如 "hm"），v 仍需还原为 ü。
		return strings.ReplaceAll(base, "v", "ü")
	}

	var b strings.Builder
	for i, r := range runes {
		if i == pos {
			b.WriteRune(marks[r][tone])
			continue
		}
		if r == 'v' {
			b.WriteRune('ü')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// markPosition 返回声调符号应落在的下标，-1 表示找不到。
func markPosition(runes []rune) int {
	// 有 a 标 a，无 a 有 e 标 e（pinyin 中二者不会同时出现）。
	for i, r := range runes {
		if r == 'a' || r == 'e' {
			return i
		}
	}
	// "ou" 标 o。
	for i := 0; i+1 < len(runes); i++ {
		if runes[i] == 'o' && runes[i+1] == 'u' {
			return i
		}
	}
	// 其余标最后一个元音。
	last := -1
	for i, r := range runes {
		switch r {
		case 'i', 'o', 'u', 'v':
			last = i
		}
	}
	if last >= 0 {
		return last
	}
	// 自成音节的鼻音，如 n、ng、hm。
	for i, r := range runes {
		if r == 'n' || r == 'm' {
			return i
		}
	}
	return -1
}

// Render 将带声调音节渲染为目标格式。
func Render(syllable string, to Format) string {
	switch to {
	case Tone2:
		return SyllableTone2(syllable)
	case Plain:
		return SyllablePlain(syllable)
	case Abbr:
		return SyllableAbbr(syllable)
	default:
		return syllable
	}
}

// Convert 在任意两种格式之间转换单个音节。
// 无声调和首字母格式不携带声调信息，无法升格为带声调格式。
func Convert(syllable string, from, to Format) (string, error) {
	if from == to {
		return syllable, nil
	}
	switch from {
	case Tone:
		return Render(syllable, to), nil
	case Tone2:
		return Render(SyllableTone(syllable), to), nil
	case Plain:
		if to == Abbr {
			return SyllableAbbr(syllable), nil
		}
	case Abbr:
	}
	return "", fmt.Errorf("无法将 %s 格式转换为 %s 格式: 声调信息已丢失", from, to)
}

// SplitSyllables 把词语读音拆为逐字音节。
// 首字母格式的词读音不含分隔符，按单个字母拆分；其余格式按空格拆分。
func SplitSyllables(pron string, f Format) []string {
	if f == Abbr {
		out := make([]string, 0, len(pron))
		for _, r := range pron {
			out = append(out, string(r))
		}
		return out
	}
	return strings.Fields(pron)
}

// ConvertWord 逐音节转换空格分隔的词语读音。
// 目标为首字母格式时各音节首字母直接相连，如 "cháng jiāng" → "cj"。
func ConvertWord(pron string, from, to Format) (string, error) {
	parts := strings.Fields(pron)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		c, err := Convert(p, from, to)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	if to == Abbr {
		return strings.Join(out, ""), nil
	}
	return strings.Join(out, " "), nil
}
