package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
)

func TestRedisCache_Get_Hit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	cache := NewRedisCacheFromClient(db, 3600, "test:")

	mock.ExpectGet("test:mykey").SetVal("myvalue")

	val, ok := cache.Get(context.Background(), "mykey")
	if !ok {
		t.Error("Expected cache hit")
	}
	if val != "myvalue" {
		t.Errorf("Expected 'myvalue', got %q", val)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisCache_Get_Miss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	cache := NewRedisCacheFromClient(db, 3600, "test:")

	mock.ExpectGet("test:mykey").RedisNil()

	if val, ok := cache.Get(context.Background(), "mykey"); ok || val != "" {
		t.Errorf("Expected cache miss, got %q", val)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisCache_Get_ErrorIsMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	cache := NewRedisCacheFromClient(db, 3600, "test:")

	mock.ExpectGet("test:mykey").SetErr(errors.New("connection reset"))

	if _, ok := cache.Get(context.Background(), "mykey"); ok {
		t.Error("Expected a failed lookup to be a miss")
	}
}

func TestRedisCache_Set(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	cache := NewRedisCacheFromClient(db, 3600, "test:")

	mock.ExpectSet("test:mykey", "myvalue", 3600*time.Second).SetVal("OK")

	if err := cache.Set(context.Background(), "mykey", "myvalue"); err != nil {
		t.Errorf("Set failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisCache_Set_NoTTL(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	cache := NewRedisCacheFromClient(db, 0, "test:")

	mock.ExpectSet("test:mykey", "myvalue", 0).SetVal("OK")

	if err := cache.Set(context.Background(), "mykey", "myvalue"); err != nil {
		t.Errorf("Set failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisCache_DefaultPrefix(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	cache := NewRedisCacheFromClient(db, 3600, "")

	mock.ExpectGet("potlai:hash123").SetVal("переклад")

	val, ok := cache.Get(context.Background(), "hash123")
	if !ok || val != "переклад" {
		t.Errorf("Expected 'переклад', got %q (ok=%v)", val, ok)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisCache_Entries(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	cache := NewRedisCacheFromClient(db, 3600, "test:")

	mock.ExpectScan(0, "test:*", scanCount).SetVal([]string{"test:a", "test:b"}, 7)
	mock.ExpectGet("test:a").SetVal("A")
	mock.ExpectGet("test:b").RedisNil()
	mock.ExpectScan(7, "test:*", scanCount).SetVal([]string{"test:c"}, 0)
	mock.ExpectGet("test:c").SetVal("C")

	entries, err := cache.Entries(context.Background())
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 2 || entries["a"] != "A" || entries["c"] != "C" {
		t.Errorf("unexpected entries: %v", entries)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisCache_Ping(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	cache := NewRedisCacheFromClient(db, 3600, "test:")

	mock.ExpectPing().SetVal("PONG")

	if err := cache.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
