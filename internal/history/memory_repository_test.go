package history

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryRepositorySaveAndList(t *testing.T) {
	repo := NewMemoryRepository(0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := repo.Save(ctx, Record{
			ID:         fmt.Sprintf("rec-%d", i),
			SessionKey: "tg:42",
			Utterance:  fmt.Sprintf("utterance %d", i),
			Reply:      "ok",
			Outcome:    OutcomeAnswer,
			CreatedAt:  time.Now(),
		})
		if err != nil {
			t.Fatalf("Save 失败: %v", err)
		}
	}

	records, err := repo.ListRecent(ctx, "tg:42", 2)
	if err != nil {
		t.Fatalf("ListRecent 失败: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("记录数 = %d, 期望 2", len(records))
	}
	if records[0].ID != "rec-1" || records[1].ID != "rec-2" {
		t.Fatalf("应返回最近两条且时间升序: %+v", records)
	}
}

func TestMemoryRepositoryCapsPerSession(t *testing.T) {
	repo := NewMemoryRepository(2)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		repo.Save(ctx, Record{ID: fmt.Sprintf("rec-%d", i), SessionKey: "tg:42"})
	}
	records, _ := repo.ListRecent(ctx, "tg:42", 0)
	if len(records) != 2 {
		t.Fatalf("记录数 = %d, 期望保留上限 2", len(records))
	}
	if records[1].ID != "rec-4" {
		t.Fatalf("应保留最新记录: %+v", records)
	}
}

func TestMemoryRepositoryIsolatesSessions(t *testing.T) {
	repo := NewMemoryRepository(0)
	ctx := context.Background()
	repo.Save(ctx, Record{ID: "a", SessionKey: "tg:1"})
	repo.Save(ctx, Record{ID: "b", SessionKey: "tg:2"})

	records, _ := repo.ListRecent(ctx, "tg:1", 0)
	if len(records) != 1 || records[0].ID != "a" {
		t.Fatalf("会话记录应相互隔离: %+v", records)
	}
}
