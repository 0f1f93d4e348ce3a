package hanpin

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/iabetor/hanpin/internal/config"
	"github.com/iabetor/hanpin/internal/format"
	"github.com/iabetor/hanpin/internal/hanzi"
	"github.com/iabetor/hanpin/internal/resolver"
)

// Render 把整段文本渲染为拼音，音节之间用配置的连接符相连。
// 多音字按上下文消歧；非汉字片段按配置保留或丢弃。
// 大文本按汉字段落边界分块并行处理，分块与否不改变输出。
func (e *Engine) Render(ctx context.Context, text string, f Format) (string, error) {
	if err := e.ensure(ctx); err != nil {
		return "", err
	}
	return e.render(ctx, text, f, e.cfg.Output.Separator)
}

// Abbr 渲染文本的拼音首字母，直接相连不加分隔，如 "中国" → "zg"。
func (e *Engine) Abbr(ctx context.Context, text string) (string, error) {
	if err := e.ensure(ctx); err != nil {
		return "", err
	}
	return e.render(ctx, text, Abbr, "")
}

func (e *Engine) render(ctx context.Context, text string, f Format, sep string) (string, error) {
	runes := hanzi.Split(text)
	if len(runes) == 0 {
		return "", nil
	}

	runs := hanzi.Runs(runes)
	chunks := chunkRuns(runs, e.cfg.Render.ChunkSize)

	parts := make([][]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Render.Workers)
	for ci, chunk := range chunks {
		ci, chunk := ci, chunk
		g.Go(func() error {
			tokens, err := e.renderRuns(gctx, runes, chunk, f)
			if err != nil {
				return err
			}
			parts[ci] = tokens
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var all []string
	for _, tokens := range parts {
		all = append(all, tokens...)
	}
	return strings.Join(all, sep), nil
}

// chunkRuns 把段落序列按目标字数聚合成块。
// 只在段落边界切开：上下文窗口和词典分词都不会越过非汉字，
// 因此这样的分块对消歧结果完全透明。超长的单个段落独占一块。
func chunkRuns(runs []hanzi.Run, chunkSize int) [][]hanzi.Run {
	var chunks [][]hanzi.Run
	var cur []hanzi.Run
	size := 0
	for _, run := range runs {
		n := run.End - run.Start
		if size > 0 && size+n > chunkSize {
			chunks = append(chunks, cur)
			cur = nil
			size = 0
		}
		cur = append(cur, run)
		size += n
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

// renderRuns 渲染一块段落，返回音节/片段 token 列表。
// 一块之内：先一次批量查齐全部单字候选，词优先策略下再一次批量
// 查齐全部词典分词候选，最后所有多音字合成一次消歧批量查询。
func (e *Engine) renderRuns(ctx context.Context, runes []rune, runs []hanzi.Run, f Format) ([]string, error) {
	charVars, err := e.fetchRunChars(ctx, runes, runs, f)
	if err != nil {
		return nil, err
	}

	wordFirst := e.cfg.Resolve.Strategy == config.StrategyWordFirst
	var segWords map[string]wordEntry
	if wordFirst {
		segWords, err = e.fetchSegmentWords(ctx, runes, runs, f)
		if err != nil {
			return nil, err
		}
	}

	var tokens []string
	var targets []resolver.Target
	var targetSlots []int // targets[i] 的读音写回 tokens[targetSlots[i]]

	for _, run := range runs {
		if !run.Han {
			if *e.cfg.Output.KeepNonHan {
				tokens = append(tokens, string(runes[run.Start:run.End]))
			}
			continue
		}

		i := run.Start
		for i < run.End {
			if wordFirst {
				if l, syllables := e.matchWord(runes, i, run.End, segWords, f); l > 0 {
					tokens = append(tokens, syllables...)
					i += l
					continue
				}
			}

			ch := string(runes[i])
			variants := charVars[ch]
			switch {
			case len(variants) > 1:
				// 多音字：先占位，消歧批量完成后回填。
				tokens = append(tokens, "")
				targets = append(targets, resolver.Target{Index: i, Fallback: variants[0]})
				targetSlots = append(targetSlots, len(tokens)-1)
			case len(variants) == 1:
				tokens = append(tokens, variants[0])
			default:
				tokens = append(tokens, ch)
			}
			i++
		}
	}

	if len(targets) > 0 {
		resolved, err := e.resolver.Resolve(ctx, runes, targets, f)
		if err != nil {
			return nil, err
		}
		for ti, t := range targets {
			tokens[targetSlots[ti]] = resolved[t.Index]
		}
	}
	return tokens, nil
}

// fetchRunChars 一次查齐这些段落里出现的全部汉字。
func (e *Engine) fetchRunChars(ctx context.Context, runes []rune, runs []hanzi.Run, f Format) (map[string][]string, error) {
	seen := make(map[string]struct{})
	var chars []string
	for _, run := range runs {
		if !run.Han {
			continue
		}
		for i := run.Start; i < run.End; i++ {
			ch := string(runes[i])
			if _, ok := seen[ch]; ok {
				continue
			}
			seen[ch] = struct{}{}
			chars = append(chars, ch)
		}
	}
	if len(chars) == 0 {
		return map[string][]string{}, nil
	}
	return e.fetchChars(ctx, chars, f)
}

// fetchSegmentWords 收集词优先分词需要的全部候选子串并一次查齐。
func (e *Engine) fetchSegmentWords(ctx context.Context, runes []rune, runs []hanzi.Run, f Format) (map[string]wordEntry, error) {
	maxLen := e.cfg.Resolve.MaxWordLength
	seen := make(map[string]struct{})
	var words []string
	for _, run := range runs {
		if !run.Han {
			continue
		}
		for i := run.Start; i < run.End; i++ {
			for l := 2; l <= maxLen && i+l <= run.End; l++ {
				w := string(runes[i : i+l])
				if _, ok := seen[w]; ok {
					continue
				}
				seen[w] = struct{}{}
				words = append(words, w)
			}
		}
	}
	if len(words) == 0 {
		return map[string]wordEntry{}, nil
	}
	return e.fetchWords(ctx, words, f)
}

// matchWord 从下标 i 起贪心匹配最长的词典收录词（不含合成词）。
// 命中时返回词长和逐字音节，否则返回 0。
func (e *Engine) matchWord(runes []rune, i, end int, entries map[string]wordEntry, f Format) (int, []string) {
	maxLen := e.cfg.Resolve.MaxWordLength
	for l := maxLen; l >= 2; l-- {
		if i+l > end {
			continue
		}
		w := string(runes[i : i+l])
		ent, ok := entries[w]
		if !ok || !ent.found || ent.composed {
			continue
		}
		syllables := format.SplitSyllables(ent.pron, f)
		if len(syllables) != l {
			continue
		}
		return l, syllables
	}
	return 0, nil
}
