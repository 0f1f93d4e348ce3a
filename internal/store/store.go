// Package store 实现拼音词典的持久化存储。
// SQLite 中维护 characters / words 两张表，首次运行时在一个事务内
// 从内置资源导入全部词条，之后只读。
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/iabetor/hanpin/internal/format"
	"github.com/iabetor/hanpin/internal/hanzi"
	"github.com/iabetor/hanpin/internal/logger"
	_ "modernc.org/sqlite"
)

//go:embed data/chars.txt
var charsData string

//go:embed data/words.txt
var wordsData string

var (
	// ErrNotInitialized 在 Initialize 成功之前调用查询接口时返回。
	ErrNotInitialized = errors.New("词典存储尚未初始化")
	// ErrImportFailed 内置资源整体损坏或导入事务失败。
	ErrImportFailed = errors.New("词典导入失败")
	// ErrNotSingleChar 单字接口收到了多于一个字的输入。
	ErrNotSingleChar = errors.New("单字接口只接受一个字")
)

// batchChunk 单条 IN 查询的最大占位符数，留在 SQLite 变量上限之内。
const batchChunk = 500

// Store 拼音词典存储。
// 生命周期: Open → Initialize → 查询 → Close。
// Initialize 至多执行一次；查询接口绝不隐式触发初始化。
type Store struct {
	db   *sql.DB
	path string

	initOnce sync.Once
	initErr  error
	ready    atomic.Bool
}

// Open 打开或创建词典数据库。
// path 为空时使用默认路径 ~/.hanpin/dict.db。
func Open(path string) (*Store, error) {
	if path == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			path = filepath.Join(home, ".hanpin", "dict.db")
		} else {
			path = "./hanpin.db"
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	// WAL 模式提升读并发
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 WAL 模式失败: %w", err)
	}

	logger.Infof("[store] 词典数据库已打开: %s", path)
	return &Store{db: db, path: path}, nil
}

// Path 返回数据库文件路径。
func (s *Store) Path() string {
	return s.path
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Initialize 建表并在表为空时导入内置资源。
// 并发调用只会执行一次；失败结果会被记住，本进程内不会自动重试。
func (s *Store) Initialize(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.initialize(ctx)
		if s.initErr == nil {
			s.ready.Store(true)
		}
	})
	return s.initErr
}

// Ready 返回 Initialize 是否已成功完成。
func (s *Store) Ready() bool {
	return s.ready.Load()
}

func (s *Store) initialize(ctx context.Context) error {
	if err := s.createSchema(ctx); err != nil {
		return err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM characters").Scan(&count); err != nil {
		return fmt.Errorf("检查词典状态失败: %w", err)
	}
	if count > 0 {
		logger.Debugf("[store] 词典已就绪，单字 %d 条", count)
		return nil
	}

	return s.importBundled(ctx)
}

func (s *Store) createSchema(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS characters (
			char TEXT PRIMARY KEY,
			codepoint INTEGER NOT NULL,
			tone TEXT NOT NULL,
			tone2 TEXT NOT NULL,
			plain TEXT NOT NULL,
			abbr TEXT NOT NULL,
			frequency INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS words (
			word TEXT PRIMARY KEY,
			tone TEXT NOT NULL,
			tone2 TEXT NOT NULL,
			plain TEXT NOT NULL,
			abbr TEXT NOT NULL,
			frequency INTEGER DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_characters_codepoint ON characters(codepoint)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("创建词典表失败: %w", err)
		}
	}
	return nil
}

// importBundled 在一个事务内导入内置资源，要么全部提交要么全部回滚。
func (s *Store) importBundled(ctx context.Context) error {
	return s.importParsed(ctx, parseChars(charsData), parseWords(wordsData))
}

func (s *Store) importParsed(ctx context.Context, chars, words parseResult) error {
	// 任一资源整体损坏（一条有效词条都没有）视为致命错误。
	if len(chars.Chars) == 0 {
		return fmt.Errorf("%w: 单字资源没有任何有效词条", ErrImportFailed)
	}
	if len(words.Words) == 0 {
		return fmt.Errorf("%w: 词语资源没有任何有效词条", ErrImportFailed)
	}
	for _, bad := range chars.Skipped {
		logger.Warnf("[store] 跳过单字坏行: %s", bad)
	}
	for _, bad := range words.Skipped {
		logger.Warnf("[store] 跳过词语坏行: %s", bad)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: 开启事务失败: %v", ErrImportFailed, err)
	}
	defer tx.Rollback()

	charStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO characters (char, codepoint, tone, tone2, plain, abbr, frequency)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrImportFailed, err)
	}
	defer charStmt.Close()
	for _, row := range chars.Chars {
		if _, err := charStmt.ExecContext(ctx, row.Char, row.Codepoint, row.Tone, row.Tone2, row.Plain, row.Abbr); err != nil {
			return fmt.Errorf("%w: 写入单字 %q 失败: %v", ErrImportFailed, row.Char, err)
		}
	}

	wordStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO words (word, tone, tone2, plain, abbr, frequency)
		 VALUES (?, ?, ?, ?, ?, 0)`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrImportFailed, err)
	}
	defer wordStmt.Close()
	for _, row := range words.Words {
		if _, err := wordStmt.ExecContext(ctx, row.Word, row.Tone, row.Tone2, row.Plain, row.Abbr); err != nil {
			return fmt.Errorf("%w: 写入词语 %q 失败: %v", ErrImportFailed, row.Word, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: 提交事务失败: %v", ErrImportFailed, err)
	}

	logger.Infof("[store] 词典导入完成: 单字 %d 条, 词语 %d 条, 跳过坏行 %d 条",
		len(chars.Chars), len(words.Words), len(chars.Skipped)+len(words.Skipped))
	return nil
}

// column 返回目标格式对应的列名。
func column(f format.Format) string {
	switch f {
	case format.Tone2:
		return "tone2"
	case format.Plain:
		return "plain"
	case format.Abbr:
		return "abbr"
	default:
		return "tone"
	}
}

// CharacterVariants 返回单个字的候选读音列表，按常用度排列。
// 词典中不存在的字返回仅含该字本身的单元素列表，不视为错误。
func (s *Store) CharacterVariants(ctx context.Context, ch string, f format.Format) ([]string, error) {
	if !s.ready.Load() {
		return nil, ErrNotInitialized
	}
	if !hanzi.IsSingle(ch) {
		return nil, fmt.Errorf("%w: %q", ErrNotSingleChar, ch)
	}

	var joined string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM characters WHERE char = ?", column(f)), ch).Scan(&joined)
	if err == sql.ErrNoRows {
		return []string{ch}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询单字 %q 失败: %w", ch, err)
	}
	return strings.Split(joined, ","), nil
}

// WordPronunciation 返回词语读音。词典中不存在时第二个返回值为 false。
func (s *Store) WordPronunciation(ctx context.Context, word string, f format.Format) (string, bool, error) {
	if !s.ready.Load() {
		return "", false, ErrNotInitialized
	}

	var pron string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM words WHERE word = ?", column(f)), word).Scan(&pron)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("查询词语 %q 失败: %w", word, err)
	}
	return pron, true, nil
}

// BatchCharacterVariants 批量查询单字候选读音。
// 返回的 map 覆盖每一个请求的字；未收录的字落到该字本身的兜底值，
// 与单独调用 CharacterVariants 的结果逐项一致。
func (s *Store) BatchCharacterVariants(ctx context.Context, chars []string, f format.Format) (map[string][]string, error) {
	if !s.ready.Load() {
		return nil, ErrNotInitialized
	}
	for _, ch := range chars {
		if !hanzi.IsSingle(ch) {
			return nil, fmt.Errorf("%w: %q", ErrNotSingleChar, ch)
		}
	}

	found, err := s.lookupCharRows(ctx, dedup(chars), f)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string, len(chars))
	for _, ch := range chars {
		if prons, ok := found[ch]; ok {
			out[ch] = prons
		} else {
			out[ch] = []string{ch}
		}
	}
	return out, nil
}

// lookupCharRows 查询词典中实际收录的字，未收录的不出现在结果里。
// 区分"收录"与"兜底"是词语拼读合成判定的前提。
func (s *Store) lookupCharRows(ctx context.Context, chars []string, f format.Format) (map[string][]string, error) {
	found := make(map[string][]string, len(chars))
	col := column(f)
	for start := 0; start < len(chars); start += batchChunk {
		end := start + batchChunk
		if end > len(chars) {
			end = len(chars)
		}
		chunk := chars[start:end]

		query := fmt.Sprintf("SELECT char, %s FROM characters WHERE char IN (%s)",
			col, placeholders(len(chunk)))
		rows, err := s.db.QueryContext(ctx, query, toArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("批量查询单字失败: %w", err)
		}
		for rows.Next() {
			var ch, joined string
			if err := rows.Scan(&ch, &joined); err != nil {
				rows.Close()
				return nil, fmt.Errorf("批量查询单字失败: %w", err)
			}
			found[ch] = strings.Split(joined, ",")
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("批量查询单字失败: %w", err)
		}
		rows.Close()
	}
	return found, nil
}

// BatchWordPronunciations 批量查询词语读音。
// compose 为 true 时，未收录的词在其每个字都被词典收录的前提下，
// 用各字的首选读音以空格拼接合成；任一字未收录则该词不出现在结果里。
func (s *Store) BatchWordPronunciations(ctx context.Context, words []string, f format.Format, compose bool) (map[string]string, error) {
	if !s.ready.Load() {
		return nil, ErrNotInitialized
	}

	distinct := dedup(words)
	out := make(map[string]string, len(distinct))
	col := column(f)

	for start := 0; start < len(distinct); start += batchChunk {
		end := start + batchChunk
		if end > len(distinct) {
			end = len(distinct)
		}
		chunk := distinct[start:end]

		query := fmt.Sprintf("SELECT word, %s FROM words WHERE word IN (%s)",
			col, placeholders(len(chunk)))
		rows, err := s.db.QueryContext(ctx, query, toArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("批量查询词语失败: %w", err)
		}
		for rows.Next() {
			var word, pron string
			if err := rows.Scan(&word, &pron); err != nil {
				rows.Close()
				return nil, fmt.Errorf("批量查询词语失败: %w", err)
			}
			out[word] = pron
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("批量查询词语失败: %w", err)
		}
		rows.Close()
	}

	if !compose {
		return out, nil
	}

	// 收集缺失词语涉及的全部单字，一次查齐后逐词合成。
	var missing []string
	charSet := make(map[string]struct{})
	for _, w := range distinct {
		if _, ok := out[w]; ok {
			continue
		}
		missing = append(missing, w)
		for _, r := range w {
			charSet[string(r)] = struct{}{}
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	charList := make([]string, 0, len(charSet))
	for ch := range charSet {
		charList = append(charList, ch)
	}
	found, err := s.lookupCharRows(ctx, charList, f)
	if err != nil {
		return nil, err
	}

nextWord:
	for _, w := range missing {
		var syllables []string
		for _, r := range w {
			prons, ok := found[string(r)]
			if !ok || len(prons) == 0 {
				continue nextWord
			}
			syllables = append(syllables, prons[0])
		}
		if f == format.Abbr {
			out[w] = strings.Join(syllables, "")
		} else {
			out[w] = strings.Join(syllables, " ")
		}
	}
	return out, nil
}

// Reimport 重新导入内置资源，按键覆盖已有词条。
// 供词典资源升级后刷新存量数据库使用。
func (s *Store) Reimport(ctx context.Context) error {
	if !s.ready.Load() {
		return ErrNotInitialized
	}
	return s.importBundled(ctx)
}

// placeholders 生成 n 个逗号分隔的占位符。
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(items []string) []any {
	args := make([]any, len(items))
	for i, s := range items {
		args[i] = s
	}
	return args
}

// dedup 去重并保持首次出现的顺序。
func dedup(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
