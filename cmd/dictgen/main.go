// dictgen 从 go-pinyin 的数据重新生成 hanpin 的内置单字资源。
// 输出格式与 internal/store/data/chars.txt 一致，
// BMP 之外或不可见的码点用 U+XXXX 转义。
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"sort"
	"unicode"

	gopinyin "github.com/mozillazg/go-pinyin"
)

func main() {
	outPath := flag.String("o", "", "输出文件路径，为空则写到标准输出")
	flag.Parse()

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "创建输出文件失败: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	codepoints := make([]int, 0, len(gopinyin.PinyinDict))
	for cp := range gopinyin.PinyinDict {
		codepoints = append(codepoints, cp)
	}
	sort.Ints(codepoints)

	w := bufio.NewWriter(out)
	defer w.Flush()

	fmt.Fprintln(w, "# hanpin 内置单字拼音表（由 cmd/dictgen 生成）")
	fmt.Fprintln(w, "# 格式: 字=拼音1,拼音2,...  （带声调，多音字按 go-pinyin 数据排列）")
	count := 0
	for _, cp := range codepoints {
		prons := gopinyin.PinyinDict[cp]
		if prons == "" {
			continue
		}
		r := rune(cp)
		if unicode.IsGraphic(r) && r <= 0xFFFF {
			fmt.Fprintf(w, "%c=%s\n", r, prons)
		} else {
			fmt.Fprintf(w, "U+%04X=%s\n", cp, prons)
		}
		count++
	}
	fmt.Fprintf(os.Stderr, "已生成 %d 个单字词条\n", count)
}
