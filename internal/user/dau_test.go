package user

import (
	"testing"
	"time"
)

func TestDailyActiveTracking(t *testing.T) {
	setupRedis(t)

	today := time.Now()
	TrackDailyActive("user-1")
	TrackDailyActive("user-2")
	// 同一用户重复上报只计一次
	TrackDailyActive("user-1")

	count, err := CountDailyActive(today)
	if err != nil {
		t.Fatalf("CountDailyActive error: %v", err)
	}
	if count != 2 {
		t.Fatalf("DAU应为2, got %d", count)
	}

	yesterday, err := CountDailyActive(today.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("CountDailyActive error: %v", err)
	}
	if yesterday != 0 {
		t.Fatalf("昨日无活跃记录, got %d", yesterday)
	}
}
