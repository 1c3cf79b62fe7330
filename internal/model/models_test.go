package model

import (
	"sync"
	"testing"

	"gorm.io/gorm/schema"
)

// 坐标列必须是 double：float64 原样进出，不丢精度。
// 定点 decimal(m,8) 会在第 8 位小数上取整，带更多小数位的坐标
// 写入后读回就变了。
func TestEvent_CoordinateColumnsAreDouble(t *testing.T) {
	s, err := schema.Parse(&Event{}, &sync.Map{}, schema.NamingStrategy{})
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}

	for _, name := range []string{"Latitude", "Longitude"} {
		field := s.LookUpField(name)
		if field == nil {
			t.Fatalf("field %s not found", name)
		}
		if got := field.TagSettings["TYPE"]; got != "double" {
			t.Fatalf("%s column type = %q, want double", name, got)
		}
	}
}

// (PostID, UserID) 必须有唯一索引，点赞幂等性建立在它之上。
func TestPostLike_UniqueIndexOnPostAndUser(t *testing.T) {
	s, err := schema.Parse(&PostLike{}, &sync.Map{}, schema.NamingStrategy{})
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}

	idx, ok := s.ParseIndexes()["idx_post_user"]
	if !ok {
		t.Fatal("index idx_post_user not found")
	}
	if idx.Class != "UNIQUE" {
		t.Fatalf("idx_post_user class = %q, want UNIQUE", idx.Class)
	}
	if len(idx.Fields) != 2 {
		t.Fatalf("idx_post_user covers %d fields, want 2", len(idx.Fields))
	}
}
