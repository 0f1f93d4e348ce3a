package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 是 hanpin 的顶层配置结构。
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Cache   CacheConfig   `yaml:"cache"`
	Batch   BatchConfig   `yaml:"batch"`
	Resolve ResolveConfig `yaml:"resolve"`
	Output  OutputConfig  `yaml:"output"`
	Render  RenderConfig  `yaml:"render"`
	Log     LogConfig     `yaml:"log"`
}

// StoreConfig 词典存储配置。
type StoreConfig struct {
	// Path 数据库文件路径，为空则使用默认路径 ~/.hanpin/dict.db。
	Path string `yaml:"path"`
}

// CacheConfig 缓存容量配置。
type CacheConfig struct {
	CharCapacity int `yaml:"char_capacity"`
	WordCapacity int `yaml:"word_capacity"`
}

// BatchConfig 批量协调器配置。
type BatchConfig struct {
	// IntervalMs 驱动周期（毫秒）。
	IntervalMs int `yaml:"interval_ms"`
}

// ResolveConfig 多音字消歧配置。
type ResolveConfig struct {
	// Strategy 取 "word_first"（先按词典分词）或 "char_first"（逐字处理）。
	Strategy string `yaml:"strategy"`
	// MaxWordLength 候选词最大字数。
	MaxWordLength int `yaml:"max_word_length"`
	// ContextRadius 上下文窗口每侧字数。
	ContextRadius int `yaml:"context_radius"`
}

// OutputConfig 渲染输出配置。
type OutputConfig struct {
	// Separator 音节之间的连接符。
	Separator string `yaml:"separator"`
	// KeepNonHan 是否在输出中保留非汉字片段。
	KeepNonHan *bool `yaml:"keep_non_han"`
}

// RenderConfig 大文本分块处理配置。
type RenderConfig struct {
	// ChunkSize 单块目标字数。分块只在汉字段落边界切开。
	ChunkSize int `yaml:"chunk_size"`
	// Workers 并行处理的最大协程数。
	Workers int `yaml:"workers"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// StrategyWordFirst / StrategyCharFirst 消歧策略取值。
const (
	StrategyWordFirst = "word_first"
	StrategyCharFirst = "char_first"
)

// Default 返回全默认值的配置。
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	if err := Normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize 校验配置并为未设置的项填充默认值。
// 调用方手工构造的 Config 必须先经过归一化才能安全使用。
func Normalize(cfg *Config) error {
	if err := validate(cfg); err != nil {
		return err
	}
	setDefaults(cfg)
	return nil
}

func validate(cfg *Config) error {
	switch cfg.Resolve.Strategy {
	case "", StrategyWordFirst, StrategyCharFirst:
	default:
		return fmt.Errorf("未知的消歧策略: %q", cfg.Resolve.Strategy)
	}
	return nil
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Store.Path != "" && strings.HasPrefix(cfg.Store.Path, "~/") {
		// Go 不会自动展开 ~，需要手动替换为用户主目录
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.Store.Path = filepath.Join(home, cfg.Store.Path[2:])
		}
	}
	if cfg.Cache.CharCapacity <= 0 {
		cfg.Cache.CharCapacity = 10000
	}
	if cfg.Cache.WordCapacity <= 0 {
		cfg.Cache.WordCapacity = 5000
	}
	if cfg.Batch.IntervalMs <= 0 {
		cfg.Batch.IntervalMs = 50
	}
	if cfg.Resolve.Strategy == "" {
		cfg.Resolve.Strategy = StrategyWordFirst
	}
	if cfg.Resolve.MaxWordLength < 2 {
		cfg.Resolve.MaxWordLength = 4
	}
	if cfg.Resolve.ContextRadius <= 0 {
		cfg.Resolve.ContextRadius = 10
	}
	if cfg.Output.Separator == "" {
		cfg.Output.Separator = " "
	}
	if cfg.Output.KeepNonHan == nil {
		keep := true
		cfg.Output.KeepNonHan = &keep
	}
	if cfg.Render.ChunkSize <= 0 {
		cfg.Render.ChunkSize = 512
	}
	if cfg.Render.Workers <= 0 {
		cfg.Render.Workers = 4
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
