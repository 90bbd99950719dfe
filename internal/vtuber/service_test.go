package vtuber

import (
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/koepon-app/koepon-backend/internal/platform/database"
)

func setupVTuberTest(t *testing.T) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("打开内存数据库失败: %v", err)
	}
	database.DB = db
	if err := PrimeDB(); err != nil {
		t.Fatalf("PrimeDB error: %v", err)
	}
}

func seedVTuber(t *testing.T, uuid, status string) {
	t.Helper()
	v := VTuber{UUID: uuid, Name: "テスト" + uuid, Status: status}
	if err := database.DB.Create(&v).Error; err != nil {
		t.Fatalf("创建VTuber失败: %v", err)
	}
}

func TestApprovalWorkflow(t *testing.T) {
	setupVTuberTest(t)
	seedVTuber(t, "vtuber-1", StatusPending)

	pending, err := CountPending()
	if err != nil || pending != 1 {
		t.Fatalf("待审核数应为1, got %d, %v", pending, err)
	}

	// 审核前不出现在公开目录
	approved, err := ListApproved()
	if err != nil {
		t.Fatalf("ListApproved error: %v", err)
	}
	if len(approved) != 0 {
		t.Fatalf("待审核的VTuber不应公开, got %d", len(approved))
	}

	if err := Approve("vtuber-1"); err != nil {
		t.Fatalf("Approve error: %v", err)
	}

	approved, err = ListApproved()
	if err != nil {
		t.Fatalf("ListApproved error: %v", err)
	}
	if len(approved) != 1 || approved[0].UUID != "vtuber-1" {
		t.Fatalf("审核后应出现在公开目录: %+v", approved)
	}

	// 已审核的申请不能重复审核
	if err := Approve("vtuber-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("重复审核应返回ErrNotFound, got %v", err)
	}
	if err := Approve("no-such-vtuber"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("不存在的申请应返回ErrNotFound, got %v", err)
	}
}

func TestGetByUUID(t *testing.T) {
	setupVTuberTest(t)
	seedVTuber(t, "vtuber-1", StatusApproved)

	v, err := GetByUUID("vtuber-1")
	if err != nil {
		t.Fatalf("GetByUUID error: %v", err)
	}
	if v.Status != StatusApproved {
		t.Fatalf("状态不正确: %s", v.Status)
	}

	if _, err := GetByUUID("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("未知UUID应返回ErrNotFound, got %v", err)
	}
}

func TestAdminListsIncludeAllStatuses(t *testing.T) {
	setupVTuberTest(t)
	seedVTuber(t, "vtuber-1", StatusApproved)
	seedVTuber(t, "vtuber-2", StatusPending)
	seedVTuber(t, "vtuber-3", StatusRejected)

	all, err := ListAll()
	if err != nil {
		t.Fatalf("ListAll error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("管理端列表应含全部状态, got %d", len(all))
	}

	count, err := CountAll()
	if err != nil || count != 3 {
		t.Fatalf("CountAll应为3, got %d, %v", count, err)
	}
}
