package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/iabetor/hanpin"
	"github.com/iabetor/hanpin/internal/config"
	"github.com/iabetor/hanpin/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（可选）")
	formatName := flag.String("format", "tone", "拼音格式: tone / tone2 / plain / abbr")
	abbr := flag.Bool("abbr", false, "输出首字母缩写（等价于 -format abbr 且不加分隔）")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	f, err := hanpin.ParseFormat(*formatName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	eng, err := hanpin.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "创建引擎失败: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	ctx := context.Background()
	if err := eng.Initialize(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "初始化词典失败: %v\n", err)
		os.Exit(1)
	}

	// 命令行参数优先；没有参数时逐行读取标准输入。
	if flag.NArg() > 0 {
		text := strings.Join(flag.Args(), " ")
		if err := render(ctx, eng, text, f, *abbr); err != nil {
			fmt.Fprintf(os.Stderr, "转换失败: %v\n", err)
			os.Exit(1)
		}
		return
	}

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if err := render(ctx, eng, sc.Text(), f, *abbr); err != nil {
			fmt.Fprintf(os.Stderr, "转换失败: %v\n", err)
			os.Exit(1)
		}
	}
}

func render(ctx context.Context, eng *hanpin.Engine, text string, f hanpin.Format, abbr bool) error {
	var out string
	var err error
	if abbr {
		out, err = eng.Abbr(ctx, text)
	} else {
		out, err = eng.Render(ctx, text, f)
	}
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
