package format

import "testing"

func TestRoundTripToneTone2(t *testing.T) {
	// 覆盖标调规则的各个分支：a/e 优先、ou 标 o、末元音、ü/v、自成音节鼻音。
	syllables := []string{
		"zhōng", "cháng", "zhǎng", "jiāng", "xíng", "háng",
		"hǎo", "yī", "ér", "ōu", "liù", "guó", "huì", "shuǐ",
		"lǜ", "nǚ", "lüè", "qióng", "xiě", "ń", "ǹg", "ḿ",
	}
	for _, s := range syllables {
		t2 := SyllableTone2(s)
		back := SyllableTone(t2)
		if back != s {
			t.Errorf("往返转换失败: %q → %q → %q", s, t2, back)
		}
	}
}

func TestSyllableTone2(t *testing.T) {
	cases := []struct{ in, want string }{
		{"zhōng", "zhong1"},
		{"cháng", "chang2"},
		{"zhǎng", "zhang3"},
		{"qìng", "qing4"},
		{"lǜ", "lv4"},
		{"lüè", "lve4"},
		{"de", "de"}, // 轻声不带数字
	}
	for _, c := range cases {
		if got := SyllableTone2(c.in); got != c.want {
			t.Errorf("SyllableTone2(%q) = %q, 期望 %q", c.in, got, c.want)
		}
	}
}

func TestSyllablePlainAndAbbr(t *testing.T) {
	if got := SyllablePlain("zhǎng"); got != "zhang" {
		t.Errorf("SyllablePlain: got %q", got)
	}
	if got := SyllablePlain("lǜ"); got != "lv" {
		t.Errorf("SyllablePlain(lǜ): got %q", got)
	}
	if got := SyllableAbbr("cháng"); got != "c" {
		t.Errorf("SyllableAbbr: got %q", got)
	}
}

func TestConvertIdentity(t *testing.T) {
	// 源格式等于目标格式时必须原样返回。
	for _, f := range All {
		got, err := Convert("zhong1", f, f)
		if err != nil {
			t.Fatalf("同格式转换出错: %v", err)
		}
		if got != "zhong1" {
			t.Errorf("同格式转换应为恒等: got %q", got)
		}
	}
}

func TestConvertLossy(t *testing.T) {
	if _, err := Convert("zhong", Plain, Tone); err == nil {
		t.Error("无声调升格为带声调应报错")
	}
	if _, err := Convert("z", Abbr, Plain); err == nil {
		t.Error("首字母升格应报错")
	}
	if got, err := Convert("zhong", Plain, Abbr); err != nil || got != "z" {
		t.Errorf("无声调降为首字母: got %q, err %v", got, err)
	}
}

func TestConvertWord(t *testing.T) {
	got, err := ConvertWord("cháng jiāng", Tone, Tone2)
	if err != nil {
		t.Fatalf("ConvertWord 出错: %v", err)
	}
	if got != "chang2 jiang1" {
		t.Errorf("ConvertWord: got %q", got)
	}

	abbr, err := ConvertWord("cháng jiāng", Tone, Abbr)
	if err != nil {
		t.Fatalf("ConvertWord 出错: %v", err)
	}
	if abbr != "cj" {
		t.Errorf("首字母应直接相连: got %q", abbr)
	}
}

func TestSplitSyllables(t *testing.T) {
	got := SplitSyllables("cháng jiāng", Tone)
	if len(got) != 2 || got[0] != "cháng" || got[1] != "jiāng" {
		t.Errorf("SplitSyllables: got %v", got)
	}
	abbr := SplitSyllables("cj", Abbr)
	if len(abbr) != 2 || abbr[0] != "c" || abbr[1] != "j" {
		t.Errorf("首字母格式应逐字母拆分: got %v", abbr)
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Format
	}{
		{"tone", Tone}, {"TONE2", Tone2}, {"plain", Plain}, {"abbr", Abbr},
		{"number", Tone2}, {"firstletter", Abbr}, {"", Tone},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		if err != nil {
			t.Errorf("Parse(%q) 出错: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("Parse(%q) = %v, 期望 %v", c.in, got, c.want)
		}
	}
	if _, err := Parse("bopomofo"); err == nil {
		t.Error("未知格式应报错")
	}
}
