// Package batch 把并发到来的零散单字查询按时间窗口合并，
// 每个驱动周期只访问一次词典存储，摊薄高频小查询的开销。
package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iabetor/hanpin/internal/cache"
	"github.com/iabetor/hanpin/internal/format"
	"github.com/iabetor/hanpin/internal/logger"
)

// ErrClosed 协调器已关闭后继续查询时返回。
var ErrClosed = errors.New("批量协调器已关闭")

// DefaultInterval 默认驱动周期。
const DefaultInterval = 50 * time.Millisecond

// requestBuffer 入队 channel 的缓冲大小。
const requestBuffer = 1024

// Source 是协调器依赖的存储批量查询能力。
type Source interface {
	BatchCharacterVariants(ctx context.Context, chars []string, f format.Format) (map[string][]string, error)
}

// request 一次挂起的单字查询。
// result 缓冲为 1：等待方放弃后投递不会阻塞驱动循环。
type request struct {
	char   string
	format format.Format
	result chan result
}

type result struct {
	prons []string
	err   error
}

// Coordinator 单字查询的微批量协调器。
// 查询方阻塞等待各自的结果；后台 worker 按固定周期把队列里的
// 全部挂起请求按格式分组，每组对存储发起一次批量查询。
type Coordinator struct {
	source   Source
	cache    *cache.Cache[[]string]
	interval time.Duration

	requests  chan *request
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New 创建协调器并启动后台 worker。
// interval 非正数时使用 DefaultInterval。
func New(source Source, c *cache.Cache[[]string], interval time.Duration) *Coordinator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	b := &Coordinator{
		source:   source,
		cache:    c,
		interval: interval,
		requests: make(chan *request, requestBuffer),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

// Lookup 查询单字候选读音，阻塞到所在驱动周期完成或 ctx 取消。
// 取消等待不会影响共享队列：该周期照常完成并写入缓存。
func (b *Coordinator) Lookup(ctx context.Context, char string, f format.Format) ([]string, error) {
	if prons, ok := b.cache.Get(cache.Key{Text: char, Format: f}); ok {
		return prons, nil
	}

	req := &request{char: char, format: f, result: make(chan result, 1)}
	// 入队通常立即成功（带缓冲）；队列打满时才会在这里等待。
	select {
	case b.requests <- req:
	default:
		select {
		case b.requests <- req:
		case <-b.closing:
			return nil, ErrClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	select {
	case r := <-req.result:
		return r.prons, r.err
	case <-b.closing:
		// 关闭时收尾 drain 仍可能已投递结果，优先取结果。
		select {
		case r := <-req.result:
			return r.prons, r.err
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close 停止后台 worker。队列中已有的请求在收尾 drain 中正常完成。
func (b *Coordinator) Close() {
	b.closeOnce.Do(func() {
		close(b.closing)
	})
	<-b.done
}

func (b *Coordinator) run() {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	var pending []*request
	for {
		select {
		case req := <-b.requests:
			pending = append(pending, req)
		case <-ticker.C:
			b.drain(pending)
			pending = nil
		case <-b.closing:
			// 收尾：把 channel 里残留的请求也一并处理掉。
			for {
				select {
				case req := <-b.requests:
					pending = append(pending, req)
					continue
				default:
				}
				break
			}
			b.drain(pending)
			return
		}
	}
}

// drain 处理一个周期内的全部挂起请求。
// 按格式分组，每组一次批量查询；结果写入缓存后回填每个请求
// （同字同格式的重复请求共享同一次查询结果）。
// 存储查询失败会挂掉本周期的所有请求，但 worker 本身继续运行。
func (b *Coordinator) drain(pending []*request) {
	if len(pending) == 0 {
		return
	}

	cycle := uuid.NewString()[:8]
	groups := make(map[format.Format][]string)
	for _, req := range pending {
		groups[req.format] = append(groups[req.format], req.char)
	}
	logger.Debugf("[batch] 周期 %s: %d 个请求, %d 个格式组", cycle, len(pending), len(groups))

	results := make(map[format.Format]map[string][]string, len(groups))
	for f, chars := range groups {
		res, err := b.source.BatchCharacterVariants(context.Background(), chars, f)
		if err != nil {
			// 本周期整体失败；后续周期不受影响。
			logger.Warnf("[batch] 周期 %s 存储查询失败: %v", cycle, err)
			for _, req := range pending {
				req.result <- result{err: err}
			}
			return
		}
		results[f] = res
		for ch, prons := range res {
			b.cache.Put(cache.Key{Text: ch, Format: f}, prons)
		}
	}

	for _, req := range pending {
		req.result <- result{prons: results[req.format][req.char]}
	}
}
