package di

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-blogstore/cache"
	"github.com/goliatone/go-blogstore/model"
	"github.com/goliatone/go-blogstore/pkg/testsupport"
	"github.com/goliatone/go-blogstore/service"
)

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	svc := newTestContainer(t, memoryConfig()).Services()

	const numPosts = 5
	ids := make([]int64, numPosts)
	for i := range ids {
		p, err := svc.Posts.Create(ctx, service.PostInput{
			Title:    fmt.Sprintf("post %d", i),
			Content:  fmt.Sprintf("content of post %d", i),
			AuthorID: 1,
		})
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		ids[i] = p.ID
	}

	const numGoroutines = 8
	const opsPerGoroutine = 20

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines*opsPerGoroutine)
	for g := 0; g < numGoroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < opsPerGoroutine; i++ {
				id := ids[(g+i)%numPosts]
				p, err := svc.Posts.Get(ctx, id)
				if err != nil {
					errs <- err
					continue
				}
				if p.ID != id {
					errs <- fmt.Errorf("got post %d, want %d", p.ID, id)
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent read failed: %v", err)
	}

	stats := svc.Factory().Stats()[model.TablePosts]
	if stats.Hits == 0 {
		t.Errorf("Expected cache hits under concurrent reads, got %+v", stats)
	}
}

func TestConcurrentReadWrite(t *testing.T) {
	ctx := context.Background()
	svc := newTestContainer(t, memoryConfig()).Services()

	tag, err := svc.Tags.Create(ctx, "v0")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	const writes = 10
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 1; i <= writes; i++ {
			if _, err := svc.Tags.Update(ctx, tag.ID, fmt.Sprintf("v%d", i)); err != nil {
				t.Errorf("Update() failed: %v", err)
			}
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < writes*2; i++ {
			if _, err := svc.Tags.Get(ctx, tag.ID); err != nil {
				t.Errorf("Get() failed: %v", err)
			}
		}
	}()
	wg.Wait()

	// once writers are done every reader sees the final name
	got, err := svc.Tags.Get(ctx, tag.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if want := fmt.Sprintf("v%d", writes); got.Name != want {
		t.Errorf("Expected %q after concurrent writes, got %q", want, got.Name)
	}
}

func benchmarkGet(b *testing.B, backend cache.Backend) {
	ctx := context.Background()
	cfg := memoryConfig()
	cfg.Cache.Backend = string(backend)

	container, err := NewContainer(ctx, cfg, WithLogger(zerolog.Nop()), WithDB(testsupport.NewDB(b)))
	if err != nil {
		b.Fatalf("NewContainer() failed: %v", err)
	}
	b.Cleanup(func() { _ = container.Close() })

	svc := container.Services()
	p, err := svc.Posts.Create(ctx, service.PostInput{Title: "bench", Content: "benchmark content", AuthorID: 1})
	if err != nil {
		b.Fatalf("Create() failed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.Posts.Get(ctx, p.ID); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPostGet_Sturdyc(b *testing.B)   { benchmarkGet(b, cache.BackendSturdyc) }
func BenchmarkPostGet_Ristretto(b *testing.B) { benchmarkGet(b, cache.BackendRistretto) }
func BenchmarkPostGet_NoCache(b *testing.B)   { benchmarkGet(b, cache.BackendNone) }
