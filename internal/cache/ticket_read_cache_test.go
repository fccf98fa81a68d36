package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shineyder/ticket-system/internal/domain"
)

type fakeCacheClient struct {
	entries map[string]string
	sets    map[string]map[string]struct{}
}

func newFakeCacheClient() *fakeCacheClient {
	return &fakeCacheClient{
		entries: make(map[string]string),
		sets:    make(map[string]map[string]struct{}),
	}
}

func (f *fakeCacheClient) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	val, ok := f.entries[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

func (f *fakeCacheClient) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	switch v := value.(type) {
	case string:
		f.entries[key] = v
	case []byte:
		f.entries[key] = string(v)
	}
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeCacheClient) SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.sets[key] == nil {
		f.sets[key] = make(map[string]struct{})
	}
	for _, m := range members {
		f.sets[key][m.(string)] = struct{}{}
	}
	cmd.SetVal(int64(len(members)))
	return cmd
}

func (f *fakeCacheClient) SMembers(ctx context.Context, key string) *redis.StringSliceCmd {
	cmd := redis.NewStringSliceCmd(ctx)
	members := make([]string, 0, len(f.sets[key]))
	for m := range f.sets[key] {
		members = append(members, m)
	}
	cmd.SetVal(members)
	return cmd
}

func (f *fakeCacheClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	var deleted int64
	for _, key := range keys {
		if _, ok := f.entries[key]; ok {
			delete(f.entries, key)
			deleted++
		}
		if _, ok := f.sets[key]; ok {
			delete(f.sets, key)
			deleted++
		}
	}
	cmd.SetVal(deleted)
	return cmd
}

type fakeInnerRepo struct {
	docs         []domain.TicketReadModel
	findAllCalls int
	findByID     int
}

func (f *fakeInnerRepo) Save(context.Context, *domain.TicketReadModel) error {
	return nil
}

func (f *fakeInnerRepo) FindByID(context.Context, string) (*domain.TicketReadModel, error) {
	f.findByID++
	if len(f.docs) == 0 {
		return nil, nil
	}
	doc := f.docs[0]
	return &doc, nil
}

func (f *fakeInnerRepo) FindAll(context.Context, string, string) ([]domain.TicketReadModel, error) {
	f.findAllCalls++
	return f.docs, nil
}

func sampleDocs() []domain.TicketReadModel {
	return []domain.TicketReadModel{{
		TicketID: "T1",
		Title:    "Fix login",
		Priority: domain.TicketPriorityHigh,
		Status:   domain.TicketStatusOpen,
	}}
}

func TestFindAll_MissPopulatesCacheAndTag(t *testing.T) {
	client := newFakeCacheClient()
	inner := &fakeInnerRepo{docs: sampleDocs()}
	cached := NewTicketReadCache(inner, client, time.Minute, zap.NewNop())
	ctx := context.Background()

	docs, err := cached.FindAll(ctx, "created_at", "desc")
	if err != nil {
		t.Fatalf("FindAll returned error: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("docs = %d, want 1", len(docs))
	}
	if inner.findAllCalls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.findAllCalls)
	}
	if _, ok := client.entries["tickets:all:created_at:desc"]; !ok {
		t.Fatal("cache entry not populated")
	}
	if _, ok := client.sets[listTagKey]["tickets:all:created_at:desc"]; !ok {
		t.Fatal("cache key not registered under invalidation tag")
	}
}

func TestFindAll_HitSkipsInnerStore(t *testing.T) {
	client := newFakeCacheClient()
	inner := &fakeInnerRepo{docs: sampleDocs()}
	cached := NewTicketReadCache(inner, client, time.Minute, zap.NewNop())
	ctx := context.Background()

	if _, err := cached.FindAll(ctx, "created_at", "desc"); err != nil {
		t.Fatalf("first FindAll: %v", err)
	}
	docs, err := cached.FindAll(ctx, "created_at", "desc")
	if err != nil {
		t.Fatalf("second FindAll: %v", err)
	}
	if inner.findAllCalls != 1 {
		t.Fatalf("inner calls = %d, want 1 (second read from cache)", inner.findAllCalls)
	}
	if docs[0].TicketID != "T1" {
		t.Fatalf("cached doc = %+v, want T1", docs[0])
	}
}

func TestFindAll_InvalidSortFallsBackToDefaultKey(t *testing.T) {
	client := newFakeCacheClient()
	inner := &fakeInnerRepo{docs: sampleDocs()}
	cached := NewTicketReadCache(inner, client, time.Minute, zap.NewNop())

	if _, err := cached.FindAll(context.Background(), "payload; DROP TABLE", "sideways"); err != nil {
		t.Fatalf("FindAll returned error: %v", err)
	}
	if _, ok := client.entries["tickets:all:created_at:desc"]; !ok {
		t.Fatal("invalid sort not normalized to default cache key")
	}
}

func TestInvalidateList_DropsAllSortPermutations(t *testing.T) {
	client := newFakeCacheClient()
	inner := &fakeInnerRepo{docs: sampleDocs()}
	cached := NewTicketReadCache(inner, client, time.Minute, zap.NewNop())
	ctx := context.Background()

	if _, err := cached.FindAll(ctx, "created_at", "desc"); err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if _, err := cached.FindAll(ctx, "title", "asc"); err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(client.entries) != 2 {
		t.Fatalf("cache entries = %d, want 2", len(client.entries))
	}

	if err := cached.InvalidateList(ctx); err != nil {
		t.Fatalf("InvalidateList returned error: %v", err)
	}
	if len(client.entries) != 0 {
		t.Fatalf("cache entries after invalidation = %d, want 0", len(client.entries))
	}
	if len(client.sets) != 0 {
		t.Fatalf("tag set not dropped")
	}
}

func TestFindByID_IsNeverCached(t *testing.T) {
	client := newFakeCacheClient()
	inner := &fakeInnerRepo{docs: sampleDocs()}
	cached := NewTicketReadCache(inner, client, time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := cached.FindByID(ctx, "T1"); err != nil {
			t.Fatalf("FindByID returned error: %v", err)
		}
	}
	if inner.findByID != 2 {
		t.Fatalf("inner FindByID calls = %d, want 2", inner.findByID)
	}
	if len(client.entries) != 0 {
		t.Fatalf("cache entries = %d, want 0", len(client.entries))
	}
}
