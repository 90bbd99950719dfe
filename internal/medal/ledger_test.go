package medal

import (
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/koepon-app/koepon-backend/internal/platform/config"
	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
)

// setupLedgerTest 准备一个独立的内存数据库和miniredis实例
func setupLedgerTest(t *testing.T) {
	t.Helper()
	logger.Init("debug")
	config.Cfg = &config.Config{}

	mr := miniredis.RunT(t)
	database.RDB = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = database.RDB.Close()
	})

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("打开内存数据库失败: %v", err)
	}
	database.DB = db
	if err := PrimeDB(db); err != nil {
		t.Fatalf("PrimeDB error: %v", err)
	}
}

func TestEarnMedalsUpdatesBalance(t *testing.T) {
	setupLedgerTest(t)

	if err := EarnMedals("user-1", "vtuber-1", 100, SourceGachaDraw, "抽選報酬", "ref-1"); err != nil {
		t.Fatalf("EarnMedals error: %v", err)
	}

	dto, err := GetBalance("user-1")
	if err != nil {
		t.Fatalf("GetBalance error: %v", err)
	}
	if dto.Total != 100 || dto.Available != 100 || dto.Used != 0 || dto.Reserved != 0 {
		t.Fatalf("余额不正确: %+v", dto)
	}
	sub, ok := dto.VTubers["vtuber-1"]
	if !ok {
		t.Fatal("应当存在vtuber-1的子余额")
	}
	if sub.Balance != 100 || sub.TotalEarned != 100 || sub.TotalUsed != 0 {
		t.Fatalf("子余额不正确: %+v", sub)
	}
}

func TestEarnMedalsIdempotentOnRefID(t *testing.T) {
	setupLedgerTest(t)

	if err := EarnMedals("user-1", "vtuber-1", 100, SourceGachaDraw, "抽選報酬", "ref-1"); err != nil {
		t.Fatalf("EarnMedals error: %v", err)
	}
	// 相同refID的重复入账是无操作
	if err := EarnMedals("user-1", "vtuber-1", 100, SourceGachaDraw, "抽選報酬", "ref-1"); err != nil {
		t.Fatalf("重复入账应幂等返回nil: %v", err)
	}

	dto, err := GetBalance("user-1")
	if err != nil {
		t.Fatalf("GetBalance error: %v", err)
	}
	if dto.Total != 100 {
		t.Fatalf("重复入账后余额应保持100, got %d", dto.Total)
	}

	var count int64
	if err := database.DB.Model(&MedalTransaction{}).Where("user_id = ?", "user-1").Count(&count).Error; err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if count != 1 {
		t.Fatalf("账本应只有1条交易, got %d", count)
	}
}

func TestEarnMedalsRejectsInvalidInput(t *testing.T) {
	setupLedgerTest(t)

	if err := EarnMedals("user-1", "", 0, SourceGachaDraw, "", "ref-1"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("amount=0应返回ErrInvalidAmount, got %v", err)
	}
	if err := EarnMedals("user-1", "", -5, SourceGachaDraw, "", "ref-2"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("负数amount应返回ErrInvalidAmount, got %v", err)
	}
	if err := EarnMedals("user-1", "", 10, "hacked", "", "ref-3"); !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("非法source应返回ErrInvalidSource, got %v", err)
	}

	dto, err := GetBalance("user-1")
	if err != nil {
		t.Fatalf("GetBalance error: %v", err)
	}
	if dto.Total != 0 {
		t.Fatalf("被拒绝的入账不应改变余额, got %d", dto.Total)
	}
}

func TestReserveCommitLifecycle(t *testing.T) {
	setupLedgerTest(t)

	if err := EarnMedals("user-1", "vtuber-1", 500, SourceGachaDraw, "抽選報酬", "ref-1"); err != nil {
		t.Fatalf("EarnMedals error: %v", err)
	}

	resID, err := Reserve("user-1", "vtuber-1", 200)
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	dto, _ := GetBalance("user-1")
	if dto.Total != 500 || dto.Available != 300 || dto.Reserved != 200 || dto.Used != 0 {
		t.Fatalf("预留后余额不正确: %+v", dto)
	}

	if err := CommitReservation(resID, SourceExchange, "アイテム交換", "redemption-1"); err != nil {
		t.Fatalf("CommitReservation error: %v", err)
	}

	dto, _ = GetBalance("user-1")
	if dto.Total != 300 || dto.Available != 300 || dto.Reserved != 0 || dto.Used != 200 {
		t.Fatalf("提交后余额不正确: %+v", dto)
	}
	if dto.Total != dto.Available+dto.Reserved {
		t.Fatalf("Total应等于Available+Reserved: %+v", dto)
	}
	sub := dto.VTubers["vtuber-1"]
	if sub.Balance != 300 || sub.TotalEarned != 500 || sub.TotalUsed != 200 {
		t.Fatalf("提交后子余额不正确: %+v", sub)
	}
}

func TestReserveReleaseLifecycle(t *testing.T) {
	setupLedgerTest(t)

	if err := EarnMedals("user-1", "vtuber-1", 500, SourceGachaDraw, "抽選報酬", "ref-1"); err != nil {
		t.Fatalf("EarnMedals error: %v", err)
	}

	resID, err := Reserve("user-1", "vtuber-1", 200)
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}
	if err := ReleaseReservation(resID); err != nil {
		t.Fatalf("ReleaseReservation error: %v", err)
	}

	dto, _ := GetBalance("user-1")
	if dto.Total != 500 || dto.Available != 500 || dto.Reserved != 0 || dto.Used != 0 {
		t.Fatalf("释放后余额应完全恢复: %+v", dto)
	}
	sub := dto.VTubers["vtuber-1"]
	if sub.Balance != 500 || sub.TotalUsed != 0 {
		t.Fatalf("释放后子余额应完全恢复: %+v", sub)
	}
}

func TestReserveInsufficientBalance(t *testing.T) {
	setupLedgerTest(t)

	if err := EarnMedals("user-1", "vtuber-1", 100, SourceGachaDraw, "抽選報酬", "ref-1"); err != nil {
		t.Fatalf("EarnMedals error: %v", err)
	}

	if _, err := Reserve("user-1", "vtuber-1", 200); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("余额不足应返回ErrInsufficientBalance, got %v", err)
	}

	// 失败的预留不应留下任何状态变化
	dto, _ := GetBalance("user-1")
	if dto.Available != 100 || dto.Reserved != 0 {
		t.Fatalf("失败的预留不应改变余额: %+v", dto)
	}
}

// 预留按VTuber归属扣减子余额，总可用额充足但指定VTuber的子余额
// 不足时同样拒绝，并且回滚已执行的用户级扣减
func TestReserveVTuberSubBalanceShortfall(t *testing.T) {
	setupLedgerTest(t)

	if err := EarnMedals("user-1", "vtuber-1", 100, SourceGachaDraw, "抽選報酬", "ref-1"); err != nil {
		t.Fatalf("EarnMedals error: %v", err)
	}
	if err := EarnMedals("user-1", "vtuber-2", 100, SourceGachaDraw, "抽選報酬", "ref-2"); err != nil {
		t.Fatalf("EarnMedals error: %v", err)
	}

	// 总可用200，但vtuber-1名下只有100
	if _, err := Reserve("user-1", "vtuber-1", 150); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("子余额不足应返回ErrInsufficientBalance, got %v", err)
	}

	dto, err := GetBalance("user-1")
	if err != nil {
		t.Fatalf("GetBalance error: %v", err)
	}
	if dto.Available != 200 || dto.Reserved != 0 {
		t.Fatalf("失败的预留应回滚用户级扣减: %+v", dto)
	}
	if sub := dto.VTubers["vtuber-1"]; sub.Balance != 100 {
		t.Fatalf("vtuber-1子余额不应变化, got %d", sub.Balance)
	}
	if sub := dto.VTubers["vtuber-2"]; sub.Balance != 100 {
		t.Fatalf("vtuber-2子余额不应变化, got %d", sub.Balance)
	}

	// 子余额范围内的预留仍然成功
	if _, err := Reserve("user-1", "vtuber-1", 100); err != nil {
		t.Fatalf("子余额充足的预留应成功: %v", err)
	}
}

func TestReservationStateGuards(t *testing.T) {
	setupLedgerTest(t)

	if err := EarnMedals("user-1", "", 500, SourceReward, "ボーナス", "ref-1"); err != nil {
		t.Fatalf("EarnMedals error: %v", err)
	}
	resID, err := Reserve("user-1", "", 100)
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	if err := CommitReservation(resID, SourceExchange, "アイテム交換", "redemption-1"); err != nil {
		t.Fatalf("CommitReservation error: %v", err)
	}
	// 已提交的预留不能再释放或再提交
	if err := ReleaseReservation(resID); !errors.Is(err, ErrReservationState) {
		t.Fatalf("提交后释放应返回ErrReservationState, got %v", err)
	}
	if err := CommitReservation(resID, SourceExchange, "アイテム交換", "redemption-2"); !errors.Is(err, ErrReservationState) {
		t.Fatalf("重复提交应返回ErrReservationState, got %v", err)
	}
	if err := ReleaseReservation("no-such-reservation"); !errors.Is(err, ErrReservationState) {
		t.Fatalf("不存在的预留应返回ErrReservationState, got %v", err)
	}
}

func TestCheckSufficientBalance(t *testing.T) {
	setupLedgerTest(t)

	if CheckSufficientBalance("user-1", 1) {
		t.Fatal("零余额用户不应通过余额检查")
	}
	if err := EarnMedals("user-1", "", 50, SourceBonus, "", "ref-1"); err != nil {
		t.Fatalf("EarnMedals error: %v", err)
	}
	if !CheckSufficientBalance("user-1", 50) {
		t.Fatal("余额恰好足够时应通过检查")
	}
	if CheckSufficientBalance("user-1", 51) {
		t.Fatal("余额不足时不应通过检查")
	}
}

func TestGetBalanceUsesCache(t *testing.T) {
	setupLedgerTest(t)

	if err := EarnMedals("user-1", "", 100, SourceBonus, "", "ref-1"); err != nil {
		t.Fatalf("EarnMedals error: %v", err)
	}

	// 入账后缓存应已被刷新，绕过数据库直接命中
	cached, err := database.RDB.HGet(database.Ctx, BalanceCacheKey, "user-1").Result()
	if err != nil {
		t.Fatalf("余额缓存应存在: %v", err)
	}
	if cached == "" {
		t.Fatal("余额缓存不应为空")
	}

	dto, err := GetBalance("user-1")
	if err != nil {
		t.Fatalf("GetBalance error: %v", err)
	}
	if dto.Total != 100 {
		t.Fatalf("缓存命中的余额不正确: %+v", dto)
	}
}

func TestGetBalanceUnknownUser(t *testing.T) {
	setupLedgerTest(t)

	dto, err := GetBalance("ghost")
	if err != nil {
		t.Fatalf("GetBalance error: %v", err)
	}
	if dto.Total != 0 || dto.Available != 0 || len(dto.VTubers) != 0 {
		t.Fatalf("未知用户应得到全零余额: %+v", dto)
	}
}
