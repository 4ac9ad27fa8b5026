package controller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"chargecal/calendar"
	"chargecal/internal/timeutil"
)

func TestPeriodCache_LoadFetchesOnce(t *testing.T) {
	t.Parallel()

	cache := NewPeriodCache()
	var fetches atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	fetch := func(context.Context) (Bucket, error) {
		if fetches.Add(1) == 1 {
			close(started)
		}
		<-release
		return Bucket{Events: []calendar.Event{{OriginalID: "1"}}}, nil
	}

	var wg sync.WaitGroup
	results := make([]Bucket, 5)
	errs := make([]error, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = cache.Load(context.Background(), march, fetch)
	}()
	<-started
	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Load(context.Background(), march, fetch)
		}(i)
	}
	close(release)
	wg.Wait()

	if fetches.Load() != 1 {
		t.Fatalf("expected one fetch, got %d", fetches.Load())
	}
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("load %d: %v", i, errs[i])
		}
		if len(results[i].Events) != 1 {
			t.Fatalf("load %d: expected one event, got %d", i, len(results[i].Events))
		}
	}
}

func TestPeriodCache_InvalidateDuringFetchDiscardsResult(t *testing.T) {
	t.Parallel()

	cache := NewPeriodCache()
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, err := cache.Load(context.Background(), march, func(context.Context) (Bucket, error) {
			close(started)
			<-release
			return Bucket{Events: []calendar.Event{{OriginalID: "stale"}}}, nil
		})
		done <- err
	}()

	<-started
	cache.Invalidate(march)
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("load: %v", err)
	}

	if _, ok := cache.Get(march); ok {
		t.Fatalf("expected stale fetch to stay out of the cache")
	}

	fresh, err := cache.Load(context.Background(), march, func(context.Context) (Bucket, error) {
		return Bucket{Events: []calendar.Event{{OriginalID: "fresh"}}}, nil
	})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if fresh.Events[0].OriginalID != "fresh" {
		t.Fatalf("expected fresh bucket, got %+v", fresh.Events)
	}
}

func TestPeriodCache_FetchErrorIsNotCached(t *testing.T) {
	t.Parallel()

	cache := NewPeriodCache()
	_, err := cache.Load(context.Background(), april, func(context.Context) (Bucket, error) {
		return Bucket{}, errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected fetch error")
	}
	if _, ok := cache.Get(april); ok {
		t.Fatalf("expected failed period to stay uncached")
	}
}

func TestPeriodCache_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	cache := NewPeriodCache()
	cache.Put(march, Bucket{Events: []calendar.Event{{OriginalID: "1"}}})

	bucket, _ := cache.Get(march)
	bucket.Events[0].OriginalID = "changed"

	again, _ := cache.Get(march)
	if again.Events[0].OriginalID != "1" {
		t.Fatalf("expected cached events to be isolated from callers")
	}

	cache.Put(april, Bucket{})
	cache.InvalidateAll()
	if len(cache.Periods()) != 0 {
		t.Fatalf("expected all periods dropped, got %v", cache.Periods())
	}
}

func TestPeriodCache_PeriodKeysAreIndependent(t *testing.T) {
	t.Parallel()

	cache := NewPeriodCache()
	cache.Put(march, Bucket{Events: []calendar.Event{{OriginalID: "m"}}})
	cache.Put(april, Bucket{Events: []calendar.Event{{OriginalID: "a"}}})
	cache.Invalidate(march)

	if _, ok := cache.Get(march); ok {
		t.Fatalf("expected march dropped")
	}
	bucket, ok := cache.Get(timeutil.Period{Year: 2024, Month: april.Month})
	if !ok || bucket.Events[0].OriginalID != "a" {
		t.Fatalf("expected april untouched")
	}
}
