// Package hanpin 把中文文本转换为拼音。
//
// 引擎由四层组成：SQLite 词典存储（单字表 + 词语表，首次运行时从
// 内置资源一次性导入）、词典前的有界 LRU 缓存、把零散单字查询按
// 时间窗口合并的批量协调器，以及基于上下文窗口的多音字消歧器。
//
// 典型用法:
//
//	eng, err := hanpin.New(nil)
//	defer eng.Close()
//	out, err := eng.Render(ctx, "长江大桥", hanpin.Tone)
//
// Engine 的公开方法会在首次调用时自动完成初始化；需要提前付出
// 建库/导入代价时可显式调用 Initialize。
package hanpin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iabetor/hanpin/internal/batch"
	"github.com/iabetor/hanpin/internal/cache"
	"github.com/iabetor/hanpin/internal/config"
	"github.com/iabetor/hanpin/internal/format"
	"github.com/iabetor/hanpin/internal/hanzi"
	"github.com/iabetor/hanpin/internal/resolver"
	"github.com/iabetor/hanpin/internal/store"
)

// Format 拼音输出格式。
type Format = format.Format

// 四种输出格式。
const (
	Tone  = format.Tone  // 带声调: zhōng
	Tone2 = format.Tone2 // 数字声调: zhong1
	Plain = format.Plain // 无声调: zhong
	Abbr  = format.Abbr  // 首字母: z
)

// ParseFormat 解析格式名称。
func ParseFormat(s string) (Format, error) {
	return format.Parse(s)
}

// Config 是 config.Config 的别名，便于调用方构造。
type Config = config.Config

// 常用哨兵错误。
var (
	ErrNotInitialized = store.ErrNotInitialized
	ErrImportFailed   = store.ErrImportFailed
	ErrNotSingleChar  = store.ErrNotSingleChar
	ErrClosed         = batch.ErrClosed
)

// wordEntry 词语缓存值。found=false 的负缓存避免重复查库；
// composed 标记读音由单字拼接合成而非词典收录。
type wordEntry struct {
	pron     string
	found    bool
	composed bool
}

// Engine 拼音转换引擎。
// 生命周期: New → (Initialize) → 查询/渲染 → Close。
// 所有方法可并发调用。
type Engine struct {
	cfg       *config.Config
	store     *store.Store
	charCache *cache.Cache[[]string]
	wordCache *cache.Cache[wordEntry]
	coord     *batch.Coordinator
	resolver  *resolver.Resolver

	initOnce sync.Once
	initErr  error
}

// New 创建引擎。cfg 为 nil 时使用全默认配置；非 nil 时先归一化，
// 未设置的字段填默认值，非法取值（如未知消歧策略）返回错误。
// 此时数据库文件已打开，但建表和首次导入要到 Initialize 才发生。
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	} else {
		// 复制一份再归一化，既不改动调用方的结构体，
		// 也保证后续所有字段都已填上可用的值。
		c := *cfg
		if err := config.Normalize(&c); err != nil {
			return nil, err
		}
		cfg = &c
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	charCache, err := cache.New[[]string](cfg.Cache.CharCapacity)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("创建单字缓存失败: %w", err)
	}
	wordCache, err := cache.New[wordEntry](cfg.Cache.WordCapacity)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("创建词语缓存失败: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		store:     st,
		charCache: charCache,
		wordCache: wordCache,
	}
	e.coord = batch.New(st, charCache, time.Duration(cfg.Batch.IntervalMs)*time.Millisecond)
	e.resolver = resolver.New(e.lookupWordEntries, cfg.Resolve.ContextRadius, cfg.Resolve.MaxWordLength)
	return e, nil
}

// Initialize 建表并在词典为空时导入内置资源。
// 并发调用只执行一次；导入失败的结果会被记住，本进程内不重试。
func (e *Engine) Initialize(ctx context.Context) error {
	e.initOnce.Do(func() {
		e.initErr = e.store.Initialize(ctx)
	})
	return e.initErr
}

// ensure 公开方法的按需初始化入口。底层存储原语绝不隐式初始化，
// 该便利只存在于引擎这一层。
func (e *Engine) ensure(ctx context.Context) error {
	return e.Initialize(ctx)
}

// Close 关闭引擎，停止批量协调器并关闭数据库。
func (e *Engine) Close() error {
	e.coord.Close()
	return e.store.Close()
}

// ClearCache 清空单字和词语缓存。只影响延迟，不影响结果。
func (e *Engine) ClearCache() {
	e.charCache.Purge()
	e.wordCache.Purge()
}

// CacheStats 返回 (单字命中, 单字未命中, 词语命中, 词语未命中)。
func (e *Engine) CacheStats() (charHits, charMisses, wordHits, wordMisses int64) {
	charHits, charMisses = e.charCache.Stats()
	wordHits, wordMisses = e.wordCache.Stats()
	return
}

// Char 查询单个汉字的候选读音，按常用度排列。
// 查询经由批量协调器合并后访问词典；词典未收录的字返回
// 仅含该字本身的单元素列表。多于一个字的输入是非法的。
func (e *Engine) Char(ctx context.Context, ch string, f Format) ([]string, error) {
	if err := e.ensure(ctx); err != nil {
		return nil, err
	}
	if !hanzi.IsSingle(ch) {
		return nil, fmt.Errorf("%w: %q", ErrNotSingleChar, ch)
	}
	return e.coord.Lookup(ctx, ch, f)
}

// Chars 批量查询多个汉字的候选读音。
// 结果与逐个调用 Char 逐项一致。
func (e *Engine) Chars(ctx context.Context, chars []string, f Format) (map[string][]string, error) {
	if err := e.ensure(ctx); err != nil {
		return nil, err
	}
	return e.fetchChars(ctx, chars, f)
}

// Words 批量查询词语读音。compose 为 true 时，未收录而每个字都
// 可查到的词用各字首选读音拼接合成；合成不了的词不出现在结果里。
func (e *Engine) Words(ctx context.Context, words []string, f Format, compose bool) (map[string]string, error) {
	if err := e.ensure(ctx); err != nil {
		return nil, err
	}
	if !compose {
		return e.store.BatchWordPronunciations(ctx, words, f, false)
	}
	entries, err := e.fetchWords(ctx, words, f)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for w, ent := range entries {
		if ent.found {
			out[w] = ent.pron
		}
	}
	return out, nil
}

// Convert 在任意两种拼音格式之间转换单个音节。纯函数。
func Convert(syllable string, from, to Format) (string, error) {
	return format.Convert(syllable, from, to)
}

// ConvertWord 逐音节转换空格分隔的词语读音。纯函数。
func ConvertWord(pron string, from, to Format) (string, error) {
	return format.ConvertWord(pron, from, to)
}

// fetchChars 经缓存批量查询单字候选读音，未命中部分一次查齐并回填缓存。
func (e *Engine) fetchChars(ctx context.Context, chars []string, f Format) (map[string][]string, error) {
	out := make(map[string][]string, len(chars))
	var missing []string
	for _, ch := range chars {
		if _, ok := out[ch]; ok {
			continue
		}
		if prons, ok := e.charCache.Get(cache.Key{Text: ch, Format: f}); ok {
			out[ch] = prons
			continue
		}
		missing = append(missing, ch)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := e.store.BatchCharacterVariants(ctx, missing, f)
	if err != nil {
		return nil, err
	}
	for ch, prons := range fetched {
		// 未收录的兜底值同样缓存，避免反复打到存储。
		e.charCache.Put(cache.Key{Text: ch, Format: f}, prons)
		out[ch] = prons
	}
	return out, nil
}

// fetchWords 经缓存批量查询词语读音。
// 未命中的词先查词典收录项，仍缺的再做单字拼接合成；
// 连合成都不行的词记负缓存。
func (e *Engine) fetchWords(ctx context.Context, words []string, f Format) (map[string]wordEntry, error) {
	out := make(map[string]wordEntry, len(words))
	var missing []string
	for _, w := range words {
		if _, ok := out[w]; ok {
			continue
		}
		if ent, ok := e.wordCache.Get(cache.Key{Text: w, Format: f}); ok {
			out[w] = ent
			continue
		}
		missing = append(missing, w)
	}
	if len(missing) == 0 {
		return out, nil
	}

	real, err := e.store.BatchWordPronunciations(ctx, missing, f, false)
	if err != nil {
		return nil, err
	}
	var remaining []string
	for _, w := range missing {
		if pron, ok := real[w]; ok {
			ent := wordEntry{pron: pron, found: true}
			e.wordCache.Put(cache.Key{Text: w, Format: f}, ent)
			out[w] = ent
			continue
		}
		remaining = append(remaining, w)
	}
	if len(remaining) == 0 {
		return out, nil
	}

	composed, err := e.store.BatchWordPronunciations(ctx, remaining, f, true)
	if err != nil {
		return nil, err
	}
	for _, w := range remaining {
		ent := wordEntry{}
		if pron, ok := composed[w]; ok {
			ent = wordEntry{pron: pron, found: true, composed: true}
		}
		e.wordCache.Put(cache.Key{Text: w, Format: f}, ent)
		out[w] = ent
	}
	return out, nil
}

// lookupWordEntries 是注入给消歧器的词典访问闭包。
func (e *Engine) lookupWordEntries(ctx context.Context, words []string, f Format) (map[string]resolver.Entry, error) {
	entries, err := e.fetchWords(ctx, words, f)
	if err != nil {
		return nil, err
	}
	out := make(map[string]resolver.Entry, len(entries))
	for w, ent := range entries {
		if ent.found {
			out[w] = resolver.Entry{Pron: ent.pron, Composed: ent.composed}
		}
	}
	return out, nil
}
