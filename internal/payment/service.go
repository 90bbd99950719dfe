package payment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/koepon-app/koepon-backend/internal/gacha"
	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
	"github.com/koepon-app/koepon-backend/pkg/ticket"
	"gorm.io/gorm"
)

var (
	ErrIntentInFlight      = errors.New("決済処理が進行中です。しばらくお待ちください")
	ErrPaymentNotFound     = errors.New("決済情報が見つかりません")
	ErrPaymentNotSucceeded = errors.New("決済が完了していません")
	ErrPaymentConsumed     = errors.New("この決済は既に使用されています")
)

// inFlightLockTTL 限制同一用户并发创建支付意图的窗口。
// 正常流程中锁会在webhook终态时主动释放，TTL只是兜底。
const inFlightLockTTL = 60 * time.Second

// activeProvider 由启动流程注入，测试中替换为内存实现
var activeProvider Provider

// ConfigureProvider 注入支付后端实现
func ConfigureProvider(p Provider) {
	activeProvider = p
}

func inFlightKey(userID string) string {
	return "payment:inflight:" + userID
}

// IntentResult 是支付意图创建成功后返回给前端的数据
type IntentResult struct {
	IntentID     string
	ClientSecret string
	AmountJPY    int64
	Ticket       ticket.Payload
	Signature    string
}

// CreateIntent 为一次抽选创建支付意图并签发抽选券。
//
// 金额由服务端按抽选机价格和抽取类型计算。每个用户同一时刻只允许
// 一个进行中的意图，由Redis上的SetNX锁保证。
func CreateIntent(userID, gachaUUID, pullType string) (*IntentResult, error) {
	info, ok := gacha.GetMachineInfo(gachaUUID)
	if !ok {
		return nil, gacha.ErrMachineNotFound
	}
	if !info.Active {
		return nil, gacha.ErrMachineInactive
	}
	amount, err := gacha.PriceFor(info, pullType)
	if err != nil {
		return nil, err
	}

	acquired, err := database.RDB.SetNX(database.Ctx, inFlightKey(userID), gachaUUID, inFlightLockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("无法获取支付并发锁: %w", err)
	}
	if !acquired {
		return nil, ErrIntentInFlight
	}

	result, err := createIntentLocked(userID, gachaUUID, pullType, amount)
	if err != nil {
		// 创建失败时立即放行，让用户可以重试
		database.RDB.Del(database.Ctx, inFlightKey(userID))
		return nil, err
	}
	return result, nil
}

func createIntentLocked(userID, gachaUUID, pullType string, amount int64) (*IntentResult, error) {
	intentID, clientSecret, err := activeProvider.CreateIntent(amount, userID, gachaUUID, pullType)
	if err != nil {
		return nil, err
	}

	ticketUUID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成抽选券ID: %w", err)
	}

	payload := ticket.Payload{
		TicketID:        ticketUUID.String(),
		UserID:          userID,
		GachaID:         gachaUUID,
		PullType:        pullType,
		PaymentIntentID: intentID,
	}
	signature, err := ticket.Sign(payload)
	if err != nil {
		return nil, err
	}

	record := Payment{
		IntentID:  intentID,
		UserID:    userID,
		GachaID:   gachaUUID,
		PullType:  pullType,
		AmountJPY: amount,
		Status:    StatusCreated,
		TicketID:  payload.TicketID,
	}
	if err := database.DB.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("无法持久化支付记录: %w", err)
	}

	logger.S.Infow("支付意图已创建",
		"intent", intentID, "user", userID, "gacha", gachaUUID, "amount", amount)

	return &IntentResult{
		IntentID:     intentID,
		ClientSecret: clientSecret,
		AmountJPY:    amount,
		Ticket:       payload,
		Signature:    signature,
	}, nil
}

// MarkSucceeded 把支付从created推进到succeeded（webhook驱动）。
// 重复投递的webhook命中非created状态，按幂等处理。
func MarkSucceeded(intentID string) error {
	res := database.DB.Model(&Payment{}).
		Where("intent_id = ? AND status = ?", intentID, StatusCreated).
		Update("status", StatusSucceeded)
	if res.Error != nil {
		return fmt.Errorf("无法更新支付状态: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		logger.S.Debugw("支付状态推进无效，可能是重复的webhook", "intent", intentID)
	}
	return nil
}

// MarkFailed 把支付从created推进到failed（webhook驱动）。
func MarkFailed(intentID string) error {
	res := database.DB.Model(&Payment{}).
		Where("intent_id = ? AND status = ?", intentID, StatusCreated).
		Update("status", StatusFailed)
	if res.Error != nil {
		return fmt.Errorf("无法更新支付状态: %w", res.Error)
	}
	return nil
}

// ReleaseInFlightLock 在支付进入终态后放开该用户的并发锁
func ReleaseInFlightLock(userID string) {
	database.RDB.Del(database.Ctx, inFlightKey(userID))
}

// Consume 在给定事务内把支付从succeeded原子推进到consumed。
// 这个CAS是抽选兑换的最终防线：同一笔支付并发兑换时只有一方成功。
func Consume(tx *gorm.DB, intentID string) (*Payment, error) {
	var record Payment
	if err := tx.Where("intent_id = ?", intentID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("无法读取支付记录: %w", err)
	}

	res := tx.Model(&Payment{}).
		Where("intent_id = ? AND status = ?", intentID, StatusSucceeded).
		Update("status", StatusConsumed)
	if res.Error != nil {
		return nil, fmt.Errorf("无法消费支付: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		switch record.Status {
		case StatusConsumed:
			return nil, ErrPaymentConsumed
		default:
			return nil, ErrPaymentNotSucceeded
		}
	}
	return &record, nil
}

// GetByTicketID 按抽选券ID查找支付记录
func GetByTicketID(ticketID string) (*Payment, error) {
	var record Payment
	err := database.DB.Where("ticket_id = ?", ticketID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("无法读取支付记录: %w", err)
	}
	return &record, nil
}

// GetByIntentID 按Stripe意图ID查找支付记录
func GetByIntentID(intentID string) (*Payment, error) {
	var record Payment
	err := database.DB.Where("intent_id = ?", intentID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("无法读取支付记录: %w", err)
	}
	return &record, nil
}
