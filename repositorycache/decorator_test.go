package repositorycache

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-blogstore/cache"
	"github.com/goliatone/go-blogstore/repository"
)

// testPost represents a test entity
type testPost struct {
	ID        int64
	Title     string
	Published *time.Time
}

// mockRepository keeps records in memory and tracks method calls
type mockRepository struct {
	mu      sync.Mutex
	calls   []string
	records []testPost
	nextID  int64
	err     error
}

func newMockRepository(titles ...string) *mockRepository {
	m := &mockRepository{}
	for _, title := range titles {
		m.nextID++
		m.records = append(m.records, testPost{ID: m.nextID, Title: title})
	}
	return m
}

func (m *mockRepository) recordCall(method string) {
	m.calls = append(m.calls, method)
}

func (m *mockRepository) getCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockRepository) countCalls(method string) int {
	n := 0
	for _, c := range m.getCalls() {
		if c == method {
			n++
		}
	}
	return n
}

func (m *mockRepository) match(where repository.Predicate) []testPost {
	out := []testPost{}
	for _, r := range m.records {
		ok := true
		if id, has := where["id"]; has && id != r.ID {
			ok = false
		}
		if title, has := where["title"]; has && title != r.Title {
			ok = false
		}
		if ok {
			out = append(out, r)
		}
	}
	return out
}

func (m *mockRepository) Namespace() string { return "posts" }

func (m *mockRepository) AddOne(ctx context.Context, fields repository.Fields) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("AddOne")
	if m.err != nil {
		return 0, m.err
	}
	m.nextID++
	m.records = append(m.records, testPost{ID: m.nextID, Title: fields["title"].(string)})
	return m.nextID, nil
}

func (m *mockRepository) FindOne(ctx context.Context, where repository.Predicate) (*testPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("FindOne")
	if m.err != nil {
		return nil, m.err
	}
	found := m.match(where)
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (m *mockRepository) FindAll(ctx context.Context) ([]testPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("FindAll")
	if m.err != nil {
		return nil, m.err
	}
	return append([]testPost{}, m.records...), nil
}

func (m *mockRepository) FindSome(ctx context.Context, where repository.Predicate) ([]testPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("FindSome")
	if m.err != nil {
		return nil, m.err
	}
	return m.match(where), nil
}

func (m *mockRepository) Update(ctx context.Context, where repository.Predicate, fields repository.Fields) ([]testPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("Update")
	if m.err != nil {
		return nil, m.err
	}
	updated := []testPost{}
	for i := range m.records {
		if id, has := where["id"]; has && id != m.records[i].ID {
			continue
		}
		m.records[i].Title = fields["title"].(string)
		updated = append(updated, m.records[i])
	}
	return updated, nil
}

func (m *mockRepository) Delete(ctx context.Context, where repository.Predicate) ([]testPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("Delete")
	if m.err != nil {
		return nil, m.err
	}
	removed := m.match(where)
	kept := []testPost{}
	for _, r := range m.records {
		if containsID(removed, r.ID) {
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return removed, nil
}

func containsID(records []testPost, id int64) bool {
	for _, r := range records {
		if r.ID == id {
			return true
		}
	}
	return false
}

// mockPort is an in-memory cache.Port with injectable failures
type mockPort struct {
	mu         sync.Mutex
	calls      []string
	storage    map[string][]byte
	getErr     error
	setErr     error
	nsErr      error
	namespaces []string
}

func newMockPort() *mockPort {
	return &mockPort{storage: make(map[string][]byte)}
}

func (m *mockPort) recordCall(call string) {
	m.calls = append(m.calls, call)
}

func (m *mockPort) getCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockPort) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("Get:" + key)
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.storage[key]
	return v, ok, nil
}

func (m *mockPort) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("Set:" + key)
	if m.setErr != nil {
		return m.setErr
	}
	m.storage[key] = value
	return nil
}

func (m *mockPort) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("Delete:" + key)
	delete(m.storage, key)
	return nil
}

func (m *mockPort) DeleteNamespace(ctx context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("DeleteNamespace:" + namespace)
	m.namespaces = append(m.namespaces, namespace)
	if m.nsErr != nil {
		return m.nsErr
	}
	for key := range m.storage {
		if strings.HasPrefix(key, cache.NamespacePrefix(namespace)) {
			delete(m.storage, key)
		}
	}
	return nil
}

func (m *mockPort) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.storage)
}

// recordingObserver collects reported cache failures
type recordingObserver struct {
	mu     sync.Mutex
	events []cache.Event
}

func (o *recordingObserver) CacheFailure(ctx context.Context, ev cache.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

func (o *recordingObserver) stages() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.events))
	for i, ev := range o.events {
		out[i] = ev.Stage
	}
	return out
}

func newCached(base *mockRepository, port *mockPort, opts ...Option) *CachedRepository[testPost] {
	return New[testPost](base, port, cache.NewDefaultKeySerializer(), opts...)
}

func TestNew(t *testing.T) {
	base := newMockRepository()
	port := newMockPort()

	cached := newCached(base, port)

	if cached == nil {
		t.Fatal("New() returned nil")
	}
	if cached.base != base {
		t.Error("base repository not stored correctly")
	}
	if cached.port != port {
		t.Error("cache port not stored correctly")
	}
	if cached.Namespace() != "posts" {
		t.Errorf("Namespace() = %v, want posts", cached.Namespace())
	}

	fallback := New[testPost](base, nil, nil)
	if _, ok := fallback.port.(cache.NopPort); !ok {
		t.Error("nil port should fall back to NopPort")
	}
}

func TestCachedReads_MissThenHit(t *testing.T) {
	ctx := context.Background()
	published := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	base := newMockRepository("first", "second")
	base.records[0].Published = &published
	cached := newCached(base, newMockPort())

	tests := []struct {
		name   string
		method string
		read   func() (any, error)
	}{
		{
			name:   "find one",
			method: "FindOne",
			read: func() (any, error) {
				return cached.FindOne(ctx, repository.Predicate{"id": int64(1)})
			},
		},
		{
			name:   "find all",
			method: "FindAll",
			read: func() (any, error) {
				return cached.FindAll(ctx)
			},
		},
		{
			name:   "find some",
			method: "FindSome",
			read: func() (any, error) {
				return cached.FindSome(ctx, repository.Predicate{"title": "second"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, err := tt.read()
			if err != nil {
				t.Fatalf("first read failed: %v", err)
			}
			second, err := tt.read()
			if err != nil {
				t.Fatalf("second read failed: %v", err)
			}

			if got := base.countCalls(tt.method); got != 1 {
				t.Errorf("expected base %s to be called once, got %d", tt.method, got)
			}
			assertSamePosts(t, first, second)
		})
	}

	stats := cached.Stats()
	if stats.Hits != 3 || stats.Misses != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.HitRatio() != 0.5 {
		t.Errorf("HitRatio() = %v, want 0.5", stats.HitRatio())
	}
}

func TestCachedReads_AbsenceIsCached(t *testing.T) {
	ctx := context.Background()
	base := newMockRepository("only")
	cached := newCached(base, newMockPort())

	for i := 0; i < 2; i++ {
		got, err := cached.FindOne(ctx, repository.Predicate{"id": int64(42)})
		if err != nil {
			t.Fatalf("FindOne failed: %v", err)
		}
		if got != nil {
			t.Fatalf("expected nil record, got %+v", got)
		}
	}
	if got := base.countCalls("FindOne"); got != 1 {
		t.Errorf("expected absence to be served from cache, base called %d times", got)
	}
}

func TestCachedReads_EmptyListIsNotNil(t *testing.T) {
	ctx := context.Background()
	cached := newCached(newMockRepository(), newMockPort())

	for i := 0; i < 2; i++ {
		got, err := cached.FindSome(ctx, repository.Predicate{"title": "missing"})
		if err != nil {
			t.Fatalf("FindSome failed: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Fatalf("expected empty non-nil slice, got %#v", got)
		}
	}
}

func TestCachedReads_ErrorPropagation(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("database down")
	base := newMockRepository("first")
	base.err = boom
	port := newMockPort()
	cached := newCached(base, port)

	if _, err := cached.FindAll(ctx); !errors.Is(err, boom) {
		t.Errorf("expected %v, got %v", boom, err)
	}
	if _, err := cached.FindOne(ctx, repository.Predicate{"id": int64(1)}); !errors.Is(err, boom) {
		t.Errorf("expected %v, got %v", boom, err)
	}
	if port.size() != 0 {
		t.Error("failed reads must not populate the cache")
	}
}

func TestWrites_InvalidateNamespace(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		write func(c *CachedRepository[testPost]) error
	}{
		{
			name: "add one",
			write: func(c *CachedRepository[testPost]) error {
				_, err := c.AddOne(ctx, repository.Fields{"title": "third"})
				return err
			},
		},
		{
			name: "update",
			write: func(c *CachedRepository[testPost]) error {
				_, err := c.Update(ctx, repository.Predicate{"id": int64(1)}, repository.Fields{"title": "renamed"})
				return err
			},
		},
		{
			name: "delete",
			write: func(c *CachedRepository[testPost]) error {
				_, err := c.Delete(ctx, repository.Predicate{"id": int64(1)})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := newMockRepository("first", "second")
			port := newMockPort()
			port.storage["comments::find_all"] = []byte("other namespace")

			// A reader that is not part of the writing scope
			reader := newCached(base, port)
			writer := newCached(base, port)

			before, err := reader.FindAll(ctx)
			if err != nil {
				t.Fatalf("FindAll failed: %v", err)
			}

			if err := tt.write(writer); err != nil {
				t.Fatalf("write failed: %v", err)
			}

			after, err := reader.FindAll(ctx)
			if err != nil {
				t.Fatalf("FindAll failed: %v", err)
			}
			if got := base.countCalls("FindAll"); got != 2 {
				t.Errorf("expected read after write to miss, base FindAll called %d times", got)
			}
			if reflect.DeepEqual(titles(before), titles(after)) {
				t.Errorf("expected post-write state, still got %v", titles(after))
			}
			if _, ok := port.storage["comments::find_all"]; !ok {
				t.Error("invalidation must not touch other namespaces")
			}
		})
	}
}

func TestWrites_FailureDoesNotInvalidate(t *testing.T) {
	ctx := context.Background()
	base := newMockRepository("first")
	port := newMockPort()
	cached := newCached(base, port)

	if _, err := cached.FindAll(ctx); err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}

	base.err = errors.New("constraint")
	if _, err := cached.AddOne(ctx, repository.Fields{"title": "x"}); err == nil {
		t.Fatal("expected AddOne to fail")
	}
	if len(port.namespaces) != 0 {
		t.Errorf("failed write should not invalidate, got %v", port.namespaces)
	}
	if port.size() != 1 {
		t.Errorf("expected cached entry to survive, size=%d", port.size())
	}
}

func TestWrites_DirtyNamespaceBypassesCache(t *testing.T) {
	ctx := context.Background()
	base := newMockRepository("first")
	port := newMockPort()
	writes := NewWriteSet()
	cached := newCached(base, port, WithWriteSet(writes))

	if _, err := cached.AddOne(ctx, repository.Fields{"title": "uncommitted"}); err != nil {
		t.Fatalf("AddOne failed: %v", err)
	}

	got, err := cached.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected own write to be visible, got %v", titles(got))
	}
	if port.size() != 0 {
		t.Error("reads after a write in the same scope must not populate the cache")
	}
	if !reflect.DeepEqual(writes.Namespaces(), []string{"posts"}) {
		t.Errorf("Namespaces() = %v", writes.Namespaces())
	}
	if cached.Stats().Bypasses != 1 {
		t.Errorf("expected one bypass, got %+v", cached.Stats())
	}
}

func TestDegradation_PortFailures(t *testing.T) {
	ctx := context.Background()
	down := errors.New("cache unreachable")

	tests := []struct {
		name   string
		setup  func(p *mockPort)
		stages []string
	}{
		{
			name:   "get fails",
			setup:  func(p *mockPort) { p.getErr = down },
			stages: []string{cache.StageGet},
		},
		{
			name:   "set fails",
			setup:  func(p *mockPort) { p.setErr = down },
			stages: []string{cache.StageSet},
		},
		{
			name:   "corrupt entry",
			setup:  func(p *mockPort) { p.storage[cache.NewDefaultKeySerializer().SerializeKey("posts", cache.OpFindAll)] = []byte{0xc1} },
			stages: []string{cache.StageDecode},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := newMockRepository("first", "second")
			port := newMockPort()
			tt.setup(port)
			observer := &recordingObserver{}
			cached := newCached(base, port, WithObserver(observer))

			got, err := cached.FindAll(ctx)
			if err != nil {
				t.Fatalf("FindAll should degrade, got %v", err)
			}
			if !reflect.DeepEqual(titles(got), []string{"first", "second"}) {
				t.Errorf("FindAll() = %v", titles(got))
			}
			if !reflect.DeepEqual(observer.stages(), tt.stages) {
				t.Errorf("observer stages = %v, want %v", observer.stages(), tt.stages)
			}
			if cached.Stats().Failures != int64(len(tt.stages)) {
				t.Errorf("unexpected failure count %+v", cached.Stats())
			}
		})
	}
}

func TestDegradation_InvalidateFailure(t *testing.T) {
	ctx := context.Background()
	base := newMockRepository()
	port := newMockPort()
	port.nsErr = errors.New("cache unreachable")
	observer := &recordingObserver{}
	cached := newCached(base, port, WithObserver(observer))

	id, err := cached.AddOne(ctx, repository.Fields{"title": "new"})
	if err != nil {
		t.Fatalf("AddOne should succeed despite cache failure: %v", err)
	}
	if id != 1 {
		t.Errorf("AddOne() = %d, want 1", id)
	}
	if !reflect.DeepEqual(observer.stages(), []string{cache.StageInvalidate}) {
		t.Errorf("observer stages = %v", observer.stages())
	}
}

func TestWithoutCache(t *testing.T) {
	ctx := WithoutCache(context.Background())
	base := newMockRepository("first")
	port := newMockPort()
	cached := newCached(base, port)

	for i := 0; i < 2; i++ {
		if _, err := cached.FindAll(ctx); err != nil {
			t.Fatalf("FindAll failed: %v", err)
		}
	}
	if got := base.countCalls("FindAll"); got != 2 {
		t.Errorf("bypassed reads should always hit the base, got %d", got)
	}
	if len(port.getCalls()) != 0 {
		t.Errorf("bypassed reads should not touch the port, got %v", port.getCalls())
	}
}

func TestGate(t *testing.T) {
	ctx := context.Background()
	closed := errors.New("scope closed")
	open := true
	base := newMockRepository("first")
	cached := newCached(base, newMockPort(), WithGate(func() error {
		if open {
			return nil
		}
		return closed
	}))

	if _, err := cached.FindAll(ctx); err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}

	open = false
	if _, err := cached.FindAll(ctx); !errors.Is(err, closed) {
		t.Errorf("expected gate error from cached read, got %v", err)
	}
	if _, err := cached.AddOne(ctx, repository.Fields{"title": "x"}); !errors.Is(err, closed) {
		t.Errorf("expected gate error from write, got %v", err)
	}
	if got := len(base.getCalls()); got != 1 {
		t.Errorf("gated calls must not reach the base, calls=%v", base.getCalls())
	}
}

func TestKeysDifferByPredicate(t *testing.T) {
	ctx := context.Background()
	base := newMockRepository("first", "second")
	port := newMockPort()
	cached := newCached(base, port)

	if _, err := cached.FindOne(ctx, repository.Predicate{"id": int64(1)}); err != nil {
		t.Fatal(err)
	}
	if _, err := cached.FindOne(ctx, repository.Predicate{"id": int64(2)}); err != nil {
		t.Fatal(err)
	}
	if _, err := cached.FindSome(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := cached.FindSome(ctx, repository.Predicate{}); err != nil {
		t.Fatal(err)
	}

	if port.size() != 3 {
		t.Errorf("expected 3 entries (two lookups, one empty scan), got %d", port.size())
	}
	for key := range port.storage {
		if !strings.HasPrefix(key, "posts::") {
			t.Errorf("key %s outside the posts namespace", key)
		}
	}
}

func titles(records []testPost) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	return out
}

// assertSamePosts compares results field by field; decoded times carry the
// local zone so they are compared with Equal.
func assertSamePosts(t *testing.T, a, b any) {
	t.Helper()

	var left, right []testPost
	switch v := a.(type) {
	case *testPost:
		left = []testPost{*v}
		right = []testPost{*b.(*testPost)}
	case []testPost:
		left = v
		right = b.([]testPost)
	default:
		t.Fatalf("unexpected type %T", a)
	}

	if len(left) != len(right) {
		t.Fatalf("length mismatch: %d vs %d", len(left), len(right))
	}
	for i := range left {
		if left[i].ID != right[i].ID || left[i].Title != right[i].Title {
			t.Errorf("record %d differs: %+v vs %+v", i, left[i], right[i])
		}
		if (left[i].Published == nil) != (right[i].Published == nil) {
			t.Errorf("record %d published presence differs", i)
			continue
		}
		if left[i].Published != nil && !left[i].Published.Equal(*right[i].Published) {
			t.Errorf("record %d published differs: %v vs %v", i, left[i].Published, right[i].Published)
		}
	}
}
