// Package resolver 实现多音字的上下文消歧。
// 对文本中候选读音多于一个的字，在其周围截取上下文窗口，
// 枚举包含该字的候选词并查询词典，用最长命中词的对应音节定音。
package resolver

import (
	"context"
	"sort"

	"github.com/iabetor/hanpin/internal/format"
	"github.com/iabetor/hanpin/internal/hanzi"
)

const (
	// DefaultRadius 上下文窗口在每个方向上的默认字数。
	DefaultRadius = 10
	// DefaultMaxWordLength 候选词的默认最大字数。
	DefaultMaxWordLength = 4
)

// Entry 词语查询结果。Composed 表示读音由单字拼接合成而非词典收录。
type Entry struct {
	Pron     string
	Composed bool
}

// LookupFunc 批量查询候选词读音。返回的 map 只包含能解析出读音的词。
type LookupFunc func(ctx context.Context, words []string, f format.Format) (map[string]Entry, error)

// Target 一次消歧请求：文本中某个多音字的位置及其兜底读音。
type Target struct {
	// Index 该字在文本 rune 序列中的下标。
	Index int
	// Fallback 没有任何候选词命中时采用的读音（请求格式下的首选读音）。
	Fallback string
}

// Resolver 多音字消歧器。算法本身无状态，词典访问通过 lookup 注入。
type Resolver struct {
	lookup  LookupFunc
	radius  int
	maxWord int
}

// New 创建消歧器。radius、maxWord 非正数时取默认值。
func New(lookup LookupFunc, radius, maxWord int) *Resolver {
	if radius <= 0 {
		radius = DefaultRadius
	}
	if maxWord < 2 {
		maxWord = DefaultMaxWordLength
	}
	return &Resolver{lookup: lookup, radius: radius, maxWord: maxWord}
}

// candidate 上下文窗口中包含目标字的一个连续子串。
type candidate struct {
	start  int // 子串起点（rune 下标）
	length int // 子串字数
	word   string
	offset int // 目标字在子串内的偏移（rune 单位）
}

// window 返回目标下标两侧的窗口边界 [lo, hi]。
// 向任一方向遇到第一个非汉字即停，窗口最小时只含目标字本身。
func (r *Resolver) window(runes []rune, idx int) (lo, hi int) {
	lo, hi = idx, idx
	for lo > 0 && idx-lo < r.radius && hanzi.IsHan(runes[lo-1]) {
		lo--
	}
	for hi < len(runes)-1 && hi-idx < r.radius && hanzi.IsHan(runes[hi+1]) {
		hi++
	}
	return lo, hi
}

// candidates 枚举窗口内所有包含目标字、长度在 [2, maxWord] 的子串。
// 排序规则：字数多者优先，同字数起点靠前者优先；字数始终压过起点。
func (r *Resolver) candidates(runes []rune, idx int) []candidate {
	lo, hi := r.window(runes, idx)
	var cands []candidate
	for start := lo; start <= idx; start++ {
		for length := 2; length <= r.maxWord; length++ {
			end := start + length - 1
			if end > hi || end < idx {
				continue
			}
			cands = append(cands, candidate{
				start:  start,
				length: length,
				word:   string(runes[start : end+1]),
				offset: idx - start,
			})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].length != cands[j].length {
			return cands[i].length > cands[j].length
		}
		return cands[i].start < cands[j].start
	})
	return cands
}

// Resolve 对一批多音字做消歧，返回 rune 下标 → 读音。
// 所有目标的全部候选词合并为一次批量查询，摊薄词典访问。
// 词典直接收录的词优先于单字拼接合成的词；合成词的对应音节
// 恰好就是该字的首选读音，与兜底路径等价，因此不参与排序竞争。
func (r *Resolver) Resolve(ctx context.Context, runes []rune, targets []Target, f format.Format) (map[int]string, error) {
	out := make(map[int]string, len(targets))
	if len(targets) == 0 {
		return out, nil
	}

	perTarget := make([][]candidate, len(targets))
	seen := make(map[string]struct{})
	var words []string
	for i, t := range targets {
		cands := r.candidates(runes, t.Index)
		perTarget[i] = cands
		for _, c := range cands {
			if _, ok := seen[c.word]; ok {
				continue
			}
			seen[c.word] = struct{}{}
			words = append(words, c.word)
		}
	}

	var entries map[string]Entry
	if len(words) > 0 {
		var err error
		entries, err = r.lookup(ctx, words, f)
		if err != nil {
			return nil, err
		}
	}

	for i, t := range targets {
		out[t.Index] = r.pick(perTarget[i], entries, t.Fallback, f)
	}
	return out, nil
}

// pick 从已排序的候选里选出赢家并取出目标字的音节。
func (r *Resolver) pick(cands []candidate, entries map[string]Entry, fallback string, f format.Format) string {
	for _, c := range cands {
		entry, ok := entries[c.word]
		if !ok || entry.Composed {
			continue
		}
		syllables := format.SplitSyllables(entry.Pron, f)
		if c.offset < len(syllables) {
			return syllables[c.offset]
		}
	}
	return fallback
}
