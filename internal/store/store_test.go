package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/iabetor/hanpin/internal/format"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "dict.db"))
	if err != nil {
		t.Fatalf("Open 失败: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize 失败: %v", err)
	}
	return s
}

func TestNotInitialized(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "dict.db"))
	if err != nil {
		t.Fatalf("Open 失败: %v", err)
	}
	defer s.Close()

	if _, err := s.CharacterVariants(context.Background(), "长", format.Tone); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("初始化前查询应返回 ErrNotInitialized, got %v", err)
	}
	if _, _, err := s.WordPronunciation(context.Background(), "长江", format.Tone); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("初始化前查询应返回 ErrNotInitialized, got %v", err)
	}
}

func TestCharacterVariants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	prons, err := s.CharacterVariants(ctx, "长", format.Tone)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if !reflect.DeepEqual(prons, []string{"cháng", "zhǎng"}) {
		t.Errorf("长 的候选读音不对: %v", prons)
	}

	tone2, err := s.CharacterVariants(ctx, "长", format.Tone2)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if !reflect.DeepEqual(tone2, []string{"chang2", "zhang3"}) {
		t.Errorf("长 的数字声调候选不对: %v", tone2)
	}
}

func TestCharacterVariantsUnknownFallback(t *testing.T) {
	s := newTestStore(t)

	// 词典未收录的字返回该字本身，不报错。
	prons, err := s.CharacterVariants(context.Background(), "齉", format.Tone)
	if err != nil {
		t.Fatalf("未收录字不应报错: %v", err)
	}
	if !reflect.DeepEqual(prons, []string{"齉"}) {
		t.Errorf("未收录字应兜底为其本身: %v", prons)
	}
}

func TestCharacterVariantsSurrogatePair(t *testing.T) {
	s := newTestStore(t)

	// U+20BB7 通过转义键导入，必须可查。
	prons, err := s.CharacterVariants(context.Background(), "𠮷", format.Tone)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if !reflect.DeepEqual(prons, []string{"jí"}) {
		t.Errorf("𠮷 的读音不对: %v", prons)
	}
}

func TestCharacterVariantsRejectsMultiChar(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CharacterVariants(context.Background(), "长江", format.Tone); !errors.Is(err, ErrNotSingleChar) {
		t.Errorf("多字输入应返回 ErrNotSingleChar, got %v", err)
	}
	if _, err := s.BatchCharacterVariants(context.Background(), []string{"长", "长江"}, format.Tone); !errors.Is(err, ErrNotSingleChar) {
		t.Errorf("批量接口同样应拒绝多字输入, got %v", err)
	}
}

func TestBatchMatchesSingle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chars := []string{"长", "行", "中", "齉", "𠮷", "长"} // 含重复和未收录
	batch, err := s.BatchCharacterVariants(ctx, chars, format.Tone)
	if err != nil {
		t.Fatalf("批量查询失败: %v", err)
	}
	for _, ch := range chars {
		single, err := s.CharacterVariants(ctx, ch, format.Tone)
		if err != nil {
			t.Fatalf("单独查询 %q 失败: %v", ch, err)
		}
		if !reflect.DeepEqual(batch[ch], single) {
			t.Errorf("%q 批量与单独查询结果不一致: %v vs %v", ch, batch[ch], single)
		}
	}
}

func TestWordPronunciation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pron, found, err := s.WordPronunciation(ctx, "银行", format.Tone)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if !found || pron != "yín háng" {
		t.Errorf("银行 的读音不对: %q (found=%v)", pron, found)
	}

	_, found, err = s.WordPronunciation(ctx, "不存在的词", format.Tone)
	if err != nil {
		t.Fatalf("未收录词不应报错: %v", err)
	}
	if found {
		t.Error("未收录词 found 应为 false")
	}
}

func TestBatchWordPronunciationsCompose(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	words := []string{"银行", "我你", "我齉"}
	got, err := s.BatchWordPronunciations(ctx, words, format.Tone, true)
	if err != nil {
		t.Fatalf("批量查询失败: %v", err)
	}

	if got["银行"] != "yín háng" {
		t.Errorf("收录词应取词典读音: %q", got["银行"])
	}
	// 未收录但每个字都可查：按各字首选读音合成。
	if got["我你"] != "wǒ nǐ" {
		t.Errorf("合成读音不对: %q", got["我你"])
	}
	// 含未收录字：整词不出现在结果里。
	if _, ok := got["我齉"]; ok {
		t.Error("含未收录字的词不应被合成")
	}

	// 关闭合成时只返回词典收录项。
	noCompose, err := s.BatchWordPronunciations(ctx, words, format.Tone, false)
	if err != nil {
		t.Fatalf("批量查询失败: %v", err)
	}
	if len(noCompose) != 1 {
		t.Errorf("关闭合成应只有收录词: %v", noCompose)
	}
}

func TestBatchWordPronunciationsComposeAbbr(t *testing.T) {
	s := newTestStore(t)
	got, err := s.BatchWordPronunciations(context.Background(), []string{"我你"}, format.Abbr, true)
	if err != nil {
		t.Fatalf("批量查询失败: %v", err)
	}
	if got["我你"] != "wn" {
		t.Errorf("首字母合成应直接相连: %q", got["我你"])
	}
}

func TestInitializeIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dict.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open 失败: %v", err)
	}
	if err := s1.Initialize(context.Background()); err != nil {
		t.Fatalf("第一次 Initialize 失败: %v", err)
	}
	if err := s1.Initialize(context.Background()); err != nil {
		t.Fatalf("重复 Initialize 应为空操作: %v", err)
	}
	s1.Close()

	// 第二次打开同一个库：发现已有数据，跳过导入。
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("重新 Open 失败: %v", err)
	}
	defer s2.Close()
	if err := s2.Initialize(context.Background()); err != nil {
		t.Fatalf("复用已有库 Initialize 失败: %v", err)
	}
	prons, err := s2.CharacterVariants(context.Background(), "行", format.Tone)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if !reflect.DeepEqual(prons, []string{"xíng", "háng"}) {
		t.Errorf("复用已有库后读音不对: %v", prons)
	}
}

func TestImportRejectsEmptyResources(t *testing.T) {
	// 任一资源解析后一条有效词条都没有，导入必须整体失败，
	// 而不是留下一个悄悄缺表的库。
	s, err := Open(filepath.Join(t.TempDir(), "dict.db"))
	if err != nil {
		t.Fatalf("Open 失败: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	if err := s.createSchema(ctx); err != nil {
		t.Fatalf("建表失败: %v", err)
	}

	goodChars := parseChars("长=cháng,zhǎng")
	goodWords := parseWords("长江=cháng jiāng")
	allBadWords := parseWords("# 注释\n银行\n长=cháng")

	if err := s.importParsed(ctx, goodChars, allBadWords); !errors.Is(err, ErrImportFailed) {
		t.Errorf("词语资源全坏应返回 ErrImportFailed, got %v", err)
	}
	if err := s.importParsed(ctx, parseResult{}, goodWords); !errors.Is(err, ErrImportFailed) {
		t.Errorf("单字资源为空应返回 ErrImportFailed, got %v", err)
	}
	if err := s.importParsed(ctx, goodChars, goodWords); err != nil {
		t.Errorf("正常资源导入失败: %v", err)
	}
}

func TestInitializeConcurrent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "dict.db"))
	if err != nil {
		t.Fatalf("Open 失败: %v", err)
	}
	defer s.Close()

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			errs <- s.Initialize(context.Background())
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("并发 Initialize 失败: %v", err)
		}
	}
	if !s.Ready() {
		t.Error("并发初始化后 Ready 应为真")
	}
}
