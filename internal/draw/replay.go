package draw

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
)

// UsedTicket 是已消耗抽选券的持久化记录，防重放的最终权威层
type UsedTicket struct {
	TicketID  string `gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time
}

const (
	ticketBloomKey = "ticket:bloom"
	ticketSetKey   = "ticket:used"

	ticketBloomErrorRate = 0.001
	ticketBloomCapacity  = 1000000
)

var replayMutex sync.Mutex

// InitializeReplayDefense 擦除旧数据并建立全新的三层防重放系统。
// 三层结构：布隆过滤器做廉价初筛，Redis Set做精确缓存，SQLite做权威记录。
func InitializeReplayDefense() error {
	logger.S.Info("正在初始化抽选券防重放系统...")

	pipe := database.RDB.Pipeline()
	pipe.Del(database.Ctx, ticketBloomKey)
	pipe.Del(database.Ctx, ticketSetKey)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("擦除旧的Redis防重放数据失败: %w", err)
	}

	if err := database.DB.AutoMigrate(&UsedTicket{}); err != nil {
		return fmt.Errorf("无法迁移已用券表: %w", err)
	}

	err := database.RDB.BFReserve(database.Ctx, ticketBloomKey, ticketBloomErrorRate, ticketBloomCapacity).Err()
	if err != nil {
		return fmt.Errorf("创建布隆过滤器失败: %w", err)
	}

	logger.S.Info("抽选券防重放系统初始化完成。")
	return nil
}

// CheckAndUseTicket 检查一张券是否首次使用，首次使用时原子记录到三层系统。
// 返回值: isReplay bool, err error
func CheckAndUseTicket(ticketID string) (bool, error) {
	if !database.IsRedisHealthy() {
		return false, errors.New("服务暂时不可用，无法验证抽选券")
	}

	existsInBF, err := database.RDB.BFExists(database.Ctx, ticketBloomKey, ticketID).Result()
	if err != nil {
		return false, fmt.Errorf("查询布隆过滤器失败: %w", err)
	}
	if existsInBF {
		existsInSet, err := database.RDB.SIsMember(database.Ctx, ticketSetKey, ticketID).Result()
		if err != nil {
			return false, fmt.Errorf("查询Redis Set缓存失败: %w", err)
		}
		if existsInSet {
			return true, nil
		}
	}

	return insertNewTicket(ticketID)
}

func insertNewTicket(ticketID string) (bool, error) {
	replayMutex.Lock()
	defer replayMutex.Unlock()

	if !database.IsRedisHealthy() {
		return false, errors.New("服务暂时不可用，无法验证抽选券")
	}

	// 等锁期间同一张券可能已被并发请求写入，拿锁后复查
	isMember, _ := database.RDB.SIsMember(database.Ctx, ticketSetKey, ticketID).Result()
	if isMember {
		return true, nil
	}

	tx := database.DB.Begin()
	if tx.Error != nil {
		return false, fmt.Errorf("无法开始SQLite事务: %w", tx.Error)
	}
	defer tx.Rollback()

	record := UsedTicket{TicketID: ticketID}
	if err := tx.Create(&record).Error; err != nil {
		if database.IsDuplicateKeyError(err) {
			// Redis状态曾丢失，以SQLite为准
			return true, nil
		}
		return false, fmt.Errorf("写入SQLite失败: %w", err)
	}

	pipe := database.RDB.TxPipeline()
	pipe.BFAdd(database.Ctx, ticketBloomKey, ticketID)
	pipe.SAdd(database.Ctx, ticketSetKey, ticketID)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return false, fmt.Errorf("写入Redis失败: %w", err)
	}

	const maxRetry = 3
	const delay = 50 * time.Millisecond
	for i := 0; i < maxRetry; i++ {
		err := tx.Commit().Error
		if err == nil {
			return false, nil
		} else if !database.IsRetryableError(err) {
			break
		}
		time.Sleep(delay)
	}

	// SQLite提交失败但Redis已写入。只要Redis不丢数据这张券就不可再用，
	// 以未使用的结果放行本次请求，后续靠支付CAS兜底。
	logger.S.Errorf("严重告警: SQLite提交失败但Redis已写入, ticket: %s", ticketID)
	return false, nil
}

// RecoverReplayDefense 从SQLite重建布隆过滤器和Set缓存
func RecoverReplayDefense() error {
	logger.S.Info("正在从SQLite重建抽选券防重放缓存...")

	replayMutex.Lock()
	defer replayMutex.Unlock()

	pipe := database.RDB.Pipeline()
	pipe.Del(database.Ctx, ticketBloomKey)
	pipe.Del(database.Ctx, ticketSetKey)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("擦除旧的Redis防重放数据失败: %w", err)
	}

	err := database.RDB.BFReserve(database.Ctx, ticketBloomKey, ticketBloomErrorRate, ticketBloomCapacity).Err()
	if err != nil {
		return fmt.Errorf("创建布隆过滤器失败: %w", err)
	}

	const batchSize = 10000

	ticketCount := 0
	var lastProcessedID string // 在字符串UUID上分页，按字母顺序
	var batch []string

	for i := 1; ; i++ {
		if err := database.DB.Model(&UsedTicket{}).Where("ticket_id > ?", lastProcessedID).Order("ticket_id asc").Limit(batchSize).Pluck("ticket_id", &batch).Error; err != nil {
			return fmt.Errorf("分批从SQLite读取已用券失败 (batch %d): %w", i, err)
		}
		if len(batch) == 0 {
			break
		}

		interfaceBatch := make([]interface{}, len(batch))
		for j, id := range batch {
			interfaceBatch[j] = id
		}

		pipe := database.RDB.Pipeline()
		pipe.SAdd(database.Ctx, ticketSetKey, interfaceBatch...)
		pipe.BFMAdd(database.Ctx, ticketBloomKey, interfaceBatch...)
		if _, err := pipe.Exec(database.Ctx); err != nil {
			return fmt.Errorf("批量写回Redis失败 (batch %d): %w", i, err)
		}

		ticketCount += len(batch)
		if len(batch) < batchSize {
			break
		}

		lastProcessedID = batch[len(batch)-1]
		batch = batch[:0]
	}

	logger.S.Infof("防重放：成功从SQLite恢复了 %d 张已用券到缓存。", ticketCount)
	return nil
}
