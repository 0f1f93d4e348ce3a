package store

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/iabetor/hanpin/internal/format"
	"github.com/iabetor/hanpin/internal/hanzi"
)

// charRow 单字词典表的一行。
type charRow struct {
	Char      string
	Codepoint int64
	Tone      string // 逗号连接的带声调候选读音
	Tone2     string
	Plain     string
	Abbr      string
}

// wordRow 词语词典表的一行。
type wordRow struct {
	Word  string
	Tone  string // 空格连接的带声调音节序列
	Tone2 string
	Plain string
	Abbr  string
}

// parseResult 资源解析结果。跳过的坏行单独计数，供导入方上报。
type parseResult struct {
	Chars   []charRow
	Words   []wordRow
	Skipped []string // 被跳过的坏行（含行号说明）
}

// splitEntry 把一行拆成键和值。支持 "键=值" 和 "键:值" 两种写法。
func splitEntry(line string) (key, value string, ok bool) {
	idx := strings.IndexAny(line, "=:")
	if idx <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

// unescapeKey 还原键。"U+XXXX" 转义展开为对应码点的字符。
func unescapeKey(key string) (string, error) {
	if !strings.HasPrefix(key, "U+") && !strings.HasPrefix(key, "u+") {
		return key, nil
	}
	n, err := strconv.ParseInt(key[2:], 16, 32)
	if err != nil {
		return "", fmt.Errorf("无效的码点转义 %q: %w", key, err)
	}
	return string(rune(n)), nil
}

// parseChars 解析单字资源。
// 整体结构损坏（没有任何有效条目）由调用方判定；单行错误只跳过。
func parseChars(data string) parseResult {
	var res parseResult
	sc := bufio.NewScanner(strings.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := splitEntry(line)
		if !ok || value == "" {
			res.Skipped = append(res.Skipped, fmt.Sprintf("第 %d 行: 缺少分隔符或读音: %q", lineNo, line))
			continue
		}
		ch, err := unescapeKey(key)
		if err != nil {
			res.Skipped = append(res.Skipped, fmt.Sprintf("第 %d 行: %v", lineNo, err))
			continue
		}
		if !hanzi.IsSingle(ch) {
			res.Skipped = append(res.Skipped, fmt.Sprintf("第 %d 行: 键 %q 不是单个字", lineNo, key))
			continue
		}

		prons := splitCandidates(value)
		if len(prons) == 0 {
			res.Skipped = append(res.Skipped, fmt.Sprintf("第 %d 行: 读音列表为空: %q", lineNo, line))
			continue
		}

		res.Chars = append(res.Chars, charRow{
			Char:      ch,
			Codepoint: int64([]rune(ch)[0]),
			Tone:      strings.Join(prons, ","),
			Tone2:     joinRendered(prons, format.Tone2),
			Plain:     joinRendered(prons, format.Plain),
			Abbr:      joinRendered(prons, format.Abbr),
		})
	}
	return res
}

// parseWords 解析词语资源。音节数与字数不符的行视为坏行跳过。
func parseWords(data string) parseResult {
	var res parseResult
	sc := bufio.NewScanner(strings.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		word, value, ok := splitEntry(line)
		if !ok || value == "" {
			res.Skipped = append(res.Skipped, fmt.Sprintf("第 %d 行: 缺少分隔符或读音: %q", lineNo, line))
			continue
		}
		if hanzi.RuneCount(word) < 2 {
			res.Skipped = append(res.Skipped, fmt.Sprintf("第 %d 行: 词 %q 少于两个字", lineNo, word))
			continue
		}
		syllables := strings.Fields(value)
		if len(syllables) != hanzi.RuneCount(word) {
			res.Skipped = append(res.Skipped,
				fmt.Sprintf("第 %d 行: 词 %q 有 %d 个字但给出 %d 个音节", lineNo, word, hanzi.RuneCount(word), len(syllables)))
			continue
		}

		tone := strings.Join(syllables, " ")
		tone2, _ := format.ConvertWord(tone, format.Tone, format.Tone2)
		plain, _ := format.ConvertWord(tone, format.Tone, format.Plain)
		abbr, _ := format.ConvertWord(tone, format.Tone, format.Abbr)
		res.Words = append(res.Words, wordRow{
			Word:  word,
			Tone:  tone,
			Tone2: tone2,
			Plain: plain,
			Abbr:  abbr,
		})
	}
	return res
}

// splitCandidates 拆分逗号分隔的候选读音，去掉空项。
func splitCandidates(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// joinRendered 将候选读音列表渲染为目标格式后用逗号连接。
func joinRendered(prons []string, to format.Format) string {
	out := make([]string, len(prons))
	for i, p := range prons {
		out[i] = format.Render(p, to)
	}
	return strings.Join(out, ",")
}
