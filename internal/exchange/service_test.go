package exchange

import (
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/koepon-app/koepon-backend/internal/medal"
	"github.com/koepon-app/koepon-backend/internal/platform/config"
	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
)

func setupExchangeTest(t *testing.T) {
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
	if err := medal.PrimeDB(db); err != nil {
		t.Fatalf("medal.PrimeDB error: %v", err)
	}
	if err := PrimeDB(db); err != nil {
		t.Fatalf("PrimeDB error: %v", err)
	}
}

func seedItem(t *testing.T, cost int64, stock int64, active bool) *ExchangeItem {
	t.Helper()
	item := ExchangeItem{
		UUID:       "item-" + t.Name(),
		VTuberID:   "vtuber-1",
		Name:       "サイン色紙",
		CostMedals: cost,
		Stock:      stock,
		Active:     active,
	}
	if err := database.DB.Create(&item).Error; err != nil {
		t.Fatalf("创建兑换商品失败: %v", err)
	}
	return &item
}

func grantMedals(t *testing.T, userID string, amount int64) {
	t.Helper()
	if err := medal.EarnMedals(userID, "vtuber-1", amount, medal.SourceGachaDraw, "抽選報酬", "grant-"+t.Name()); err != nil {
		t.Fatalf("EarnMedals error: %v", err)
	}
}

func TestRedeemHappyPath(t *testing.T) {
	setupExchangeTest(t)
	item := seedItem(t, 100, 3, true)
	grantMedals(t, "user-1", 500)

	redemption, err := Redeem("user-1", item.UUID)
	if err != nil {
		t.Fatalf("Redeem error: %v", err)
	}
	if redemption.Status != RedemptionCompleted || redemption.CostMedals != 100 {
		t.Fatalf("兑换记录不正确: %+v", redemption)
	}

	// 勋章已消费
	dto, err := medal.GetBalance("user-1")
	if err != nil {
		t.Fatalf("GetBalance error: %v", err)
	}
	if dto.Total != 400 || dto.Available != 400 || dto.Used != 100 || dto.Reserved != 0 {
		t.Fatalf("兑换后余额不正确: %+v", dto)
	}

	// 库存已扣减
	updated, err := GetItemByUUID(item.UUID)
	if err != nil {
		t.Fatalf("GetItemByUUID error: %v", err)
	}
	if updated.Stock != 2 {
		t.Fatalf("库存应扣减到2, got %d", updated.Stock)
	}

	history, err := ListRedemptions("user-1")
	if err != nil {
		t.Fatalf("ListRedemptions error: %v", err)
	}
	if len(history) != 1 || history[0].UUID != redemption.UUID {
		t.Fatalf("兑换历史不正确: %+v", history)
	}
}

func TestRedeemInsufficientBalance(t *testing.T) {
	setupExchangeTest(t)
	item := seedItem(t, 100, 3, true)
	grantMedals(t, "user-1", 50)

	if _, err := Redeem("user-1", item.UUID); !errors.Is(err, medal.ErrInsufficientBalance) {
		t.Fatalf("余额不足应返回ErrInsufficientBalance, got %v", err)
	}

	// 失败的兑换不留下任何痕迹
	dto, _ := medal.GetBalance("user-1")
	if dto.Available != 50 || dto.Reserved != 0 {
		t.Fatalf("失败的兑换不应改变余额: %+v", dto)
	}
	updated, _ := GetItemByUUID(item.UUID)
	if updated.Stock != 3 {
		t.Fatalf("失败的兑换不应扣减库存, got %d", updated.Stock)
	}
}

func TestRedeemOutOfStockReleasesReservation(t *testing.T) {
	setupExchangeTest(t)
	item := seedItem(t, 100, 0, true)
	grantMedals(t, "user-1", 500)

	if _, err := Redeem("user-1", item.UUID); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("售罄应返回ErrOutOfStock, got %v", err)
	}

	// 预留已释放，勋章完好
	dto, _ := medal.GetBalance("user-1")
	if dto.Total != 500 || dto.Available != 500 || dto.Reserved != 0 || dto.Used != 0 {
		t.Fatalf("售罄后勋章应完全恢复: %+v", dto)
	}
}

func TestRedeemUnlimitedStock(t *testing.T) {
	setupExchangeTest(t)
	item := seedItem(t, 50, -1, true)
	grantMedals(t, "user-1", 500)

	for i := 0; i < 3; i++ {
		if _, err := Redeem("user-1", item.UUID); err != nil {
			t.Fatalf("无限库存兑换 #%d error: %v", i+1, err)
		}
	}

	updated, _ := GetItemByUUID(item.UUID)
	if updated.Stock != -1 {
		t.Fatalf("无限库存不应被扣减, got %d", updated.Stock)
	}
	dto, _ := medal.GetBalance("user-1")
	if dto.Used != 150 {
		t.Fatalf("三次兑换应消费150枚, got %d", dto.Used)
	}
}

func TestRedeemGuards(t *testing.T) {
	setupExchangeTest(t)
	inactive := seedItem(t, 100, 3, false)
	grantMedals(t, "user-1", 500)

	if _, err := Redeem("user-1", "no-such-item"); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("不存在的商品应返回ErrItemNotFound, got %v", err)
	}
	if _, err := Redeem("user-1", inactive.UUID); !errors.Is(err, ErrItemUnavailable) {
		t.Fatalf("下架商品应返回ErrItemUnavailable, got %v", err)
	}
}

func TestListItemsOnlyActive(t *testing.T) {
	setupExchangeTest(t)

	active := ExchangeItem{UUID: "item-a", VTuberID: "vtuber-1", Name: "A", CostMedals: 10, Stock: -1, Active: true}
	hidden := ExchangeItem{UUID: "item-b", VTuberID: "vtuber-1", Name: "B", CostMedals: 10, Stock: -1, Active: false}
	if err := database.DB.Create(&active).Error; err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := database.DB.Create(&hidden).Error; err != nil {
		t.Fatalf("Create error: %v", err)
	}

	items, err := ListItems()
	if err != nil {
		t.Fatalf("ListItems error: %v", err)
	}
	if len(items) != 1 || items[0].UUID != "item-a" {
		t.Fatalf("目录应只含上架商品: %+v", items)
	}
}
