package batch

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/iabetor/hanpin/internal/cache"
	"github.com/iabetor/hanpin/internal/format"
)

// fakeSource 内存词典，记录批量查询次数，可注入一次性故障。
type fakeSource struct {
	mu      sync.Mutex
	data    map[string][]string
	calls   int
	failNow bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{data: map[string][]string{
		"长": {"cháng", "zhǎng"},
		"行": {"xíng", "háng"},
		"中": {"zhōng", "zhòng"},
	}}
}

func (s *fakeSource) BatchCharacterVariants(ctx context.Context, chars []string, f format.Format) (map[string][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failNow {
		s.failNow = false
		return nil, errors.New("存储故障")
	}
	out := make(map[string][]string, len(chars))
	for _, ch := range chars {
		if prons, ok := s.data[ch]; ok {
			out[ch] = prons
		} else {
			out[ch] = []string{ch}
		}
	}
	return out, nil
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestCoordinator(t *testing.T, src Source) (*Coordinator, *cache.Cache[[]string]) {
	t.Helper()
	c, err := cache.New[[]string](128)
	if err != nil {
		t.Fatalf("创建缓存失败: %v", err)
	}
	b := New(src, c, 5*time.Millisecond)
	t.Cleanup(b.Close)
	return b, c
}

func TestLookupMatchesDirect(t *testing.T) {
	src := newFakeSource()
	b, _ := newTestCoordinator(t, src)
	ctx := context.Background()

	got, err := b.Lookup(ctx, "长", format.Tone)
	if err != nil {
		t.Fatalf("Lookup 失败: %v", err)
	}
	direct, err := src.BatchCharacterVariants(ctx, []string{"长"}, format.Tone)
	if err != nil {
		t.Fatalf("直接查询失败: %v", err)
	}
	if !reflect.DeepEqual(got, direct["长"]) {
		t.Errorf("批量路径与直接查询结果不一致: %v vs %v", got, direct["长"])
	}
}

func TestLookupUnknownFallback(t *testing.T) {
	b, _ := newTestCoordinator(t, newFakeSource())
	got, err := b.Lookup(context.Background(), "齉", format.Tone)
	if err != nil {
		t.Fatalf("Lookup 失败: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"齉"}) {
		t.Errorf("未收录字应兜底为其本身: %v", got)
	}
}

func TestConcurrentLookupsCoalesce(t *testing.T) {
	src := newFakeSource()
	b, _ := newTestCoordinator(t, src)
	ctx := context.Background()

	// 同一格式的并发请求应合并为每周期一次存储访问。
	const n = 20
	var wg sync.WaitGroup
	results := make([][]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = b.Lookup(ctx, "长", format.Tone)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("第 %d 个请求失败: %v", i, errs[i])
		}
		if !reflect.DeepEqual(results[i], []string{"cháng", "zhǎng"}) {
			t.Errorf("第 %d 个请求结果不对: %v", i, results[i])
		}
	}
	// 并发请求分布在少数几个驱动周期内，远少于请求数。
	if c := src.callCount(); c >= n {
		t.Errorf("存储访问未被合并: %d 次", c)
	}
}

func TestDrainPopulatesCache(t *testing.T) {
	src := newFakeSource()
	b, c := newTestCoordinator(t, src)
	ctx := context.Background()

	if _, err := b.Lookup(ctx, "行", format.Tone); err != nil {
		t.Fatalf("Lookup 失败: %v", err)
	}
	if _, ok := c.Get(cache.Key{Text: "行", Format: format.Tone}); !ok {
		t.Error("驱动周期完成后缓存应已写入")
	}

	// 缓存命中路径不再访问存储。
	before := src.callCount()
	if _, err := b.Lookup(ctx, "行", format.Tone); err != nil {
		t.Fatalf("Lookup 失败: %v", err)
	}
	if src.callCount() != before {
		t.Error("缓存命中不应访问存储")
	}
}

func TestDrainFailureDoesNotKillWorker(t *testing.T) {
	src := newFakeSource()
	src.failNow = true
	b, _ := newTestCoordinator(t, src)
	ctx := context.Background()

	// 第一个周期整体失败。
	if _, err := b.Lookup(ctx, "长", format.Tone); err == nil {
		t.Fatal("故障周期内的请求应收到错误")
	}

	// worker 仍在运行，后续周期正常。
	got, err := b.Lookup(ctx, "长", format.Tone)
	if err != nil {
		t.Fatalf("故障恢复后 Lookup 失败: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"cháng", "zhǎng"}) {
		t.Errorf("故障恢复后结果不对: %v", got)
	}
}

func TestAbandonedWaiterDoesNotBlockOthers(t *testing.T) {
	src := newFakeSource()
	b, c := newTestCoordinator(t, src)

	// 一个等待方立刻放弃。
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Lookup(canceled, "中", format.Tone); !errors.Is(err, context.Canceled) {
		t.Fatalf("放弃等待应返回 ctx 错误: %v", err)
	}

	// 其他等待方不受影响。
	got, err := b.Lookup(context.Background(), "长", format.Tone)
	if err != nil {
		t.Fatalf("后续请求失败: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"cháng", "zhǎng"}) {
		t.Errorf("后续请求结果不对: %v", got)
	}

	// 被放弃的那个周期照常完成并写入缓存。
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := c.Get(cache.Key{Text: "中", Format: format.Tone}); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("被放弃请求所在周期应仍写入缓存")
}

func TestCloseFailsNewLookups(t *testing.T) {
	src := newFakeSource()
	c, err := cache.New[[]string](16)
	if err != nil {
		t.Fatalf("创建缓存失败: %v", err)
	}
	b := New(src, c, 5*time.Millisecond)
	b.Close()

	if _, err := b.Lookup(context.Background(), "长", format.Tone); !errors.Is(err, ErrClosed) {
		t.Errorf("关闭后 Lookup 应返回 ErrClosed: %v", err)
	}
}
