package draw

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/koepon-app/koepon-backend/internal/gacha"
	"github.com/koepon-app/koepon-backend/internal/payment"
	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
	"github.com/koepon-app/koepon-backend/pkg/ticket"
	"gorm.io/gorm"
)

var (
	ErrInvalidTicket = errors.New("無効な抽選チケットです")
	ErrTicketUsed    = errors.New("この抽選チケットは既に使用されています")
)

// ExecuteDraw 执行一次抽选兑换。
//
// 幂等性约定：同一张券的重试请求返回首次执行产生的结果，不会二次抽取。
// 防线依次是结果表的TicketID唯一约束、三层防重放系统、以及与结果
// 持久化同事务的支付CAS（succeeded -> consumed）。
func ExecuteDraw(payload ticket.Payload, signature string) (*DrawResult, error) {
	if !ticket.Verify(payload, signature) {
		return nil, ErrInvalidTicket
	}
	pullCount, err := gacha.PullCount(payload.PullType)
	if err != nil {
		return nil, ErrInvalidTicket
	}

	// 幂等重试的快路径
	if existing, err := findResultByTicket(payload.TicketID); err == nil {
		return existing, nil
	}

	isReplay, err := CheckAndUseTicket(payload.TicketID)
	if err != nil {
		return nil, err
	}
	if isReplay {
		// 上次执行可能在结果落库前中断：有结果就返回，
		// 没有就继续向下走，由支付CAS决定这张券还能不能兑换
		if existing, err := findResultByTicket(payload.TicketID); err == nil {
			return existing, nil
		}
	}

	advanceSession(payload, SessionPayment)

	result, err := performDraw(payload, pullCount)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentConsumed) {
			// 并发请求抢先完成了兑换
			if existing, lookupErr := findResultByTicket(payload.TicketID); lookupErr == nil {
				return existing, nil
			}
			return nil, ErrTicketUsed
		}
		advanceSession(payload, SessionError)
		return nil, err
	}

	payment.ReleaseInFlightLock(payload.UserID)

	if result.MedalsEarned > 0 {
		submitResultToQueue(*result)
	}
	return result, nil
}

// performDraw 在单个数据库事务内完成支付消费、抽取与结果持久化。
// 事务回滚时支付状态一并回滚，用户可以用同一张券重试。
func performDraw(payload ticket.Payload, pullCount int) (*DrawResult, error) {
	info, ok := gacha.GetMachineInfo(payload.GachaID)
	if !ok {
		return nil, gacha.ErrMachineNotFound
	}

	resultUUID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成结果ID: %w", err)
	}

	var persisted *DrawResult
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		pay, err := payment.Consume(tx, payload.PaymentIntentID)
		if err != nil {
			return err
		}
		// 券和支付记录必须互相印证
		if pay.TicketID != payload.TicketID || pay.UserID != payload.UserID || pay.GachaID != payload.GachaID {
			return ErrInvalidTicket
		}

		if err := updateSessionTx(tx, payload.TicketID, SessionDrawing, ""); err != nil {
			return err
		}

		items, err := gacha.DrawItems(payload.GachaID, pullCount)
		if err != nil {
			return err
		}

		result := DrawResult{
			UUID:         resultUUID.String(),
			UserID:       payload.UserID,
			GachaID:      payload.GachaID,
			VTuberID:     info.VTuberID,
			PullType:     payload.PullType,
			TicketID:     payload.TicketID,
			AmountJPY:    pay.AmountJPY,
			MedalsEarned: info.MedalsPerDraw * int64(pullCount),
		}
		for _, item := range items {
			result.Items = append(result.Items, DrawResultItem{
				ItemUUID: item.ID,
				Name:     item.Name,
				Rarity:   item.Rarity,
			})
		}
		if err := tx.Create(&result).Error; err != nil {
			if database.IsDuplicateKeyError(err) {
				return payment.ErrPaymentConsumed
			}
			return fmt.Errorf("无法持久化抽选结果: %w", err)
		}

		if err := updateSessionTx(tx, payload.TicketID, SessionComplete, result.UUID); err != nil {
			return err
		}
		persisted = &result
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.S.Infow("抽选完成",
		"result", persisted.UUID, "user", payload.UserID,
		"gacha", payload.GachaID, "pulls", pullCount, "medals", persisted.MedalsEarned)
	return persisted, nil
}

func findResultByTicket(ticketID string) (*DrawResult, error) {
	var result DrawResult
	err := database.DB.Preload("Items").Where("ticket_id = ?", ticketID).First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// advanceSession 在主事务之外推进会话状态，失败只记日志。
// 会话是观测用的状态流水，正确性由支付CAS和唯一约束保证。
func advanceSession(payload ticket.Payload, state string) {
	session := DrawSession{
		TicketID: payload.TicketID,
		UserID:   payload.UserID,
		GachaID:  payload.GachaID,
		State:    state,
	}
	if err := database.DB.Create(&session).Error; err != nil {
		if database.IsDuplicateKeyError(err) {
			err = database.DB.Model(&DrawSession{}).
				Where("ticket_id = ?", payload.TicketID).
				Update("state", state).Error
		}
		if err != nil {
			logger.S.Warnf("会话状态更新失败 ticket=%s state=%s: %v", payload.TicketID, state, err)
		}
	}
}

func updateSessionTx(tx *gorm.DB, ticketID, state, resultUUID string) error {
	updates := map[string]interface{}{"state": state}
	if resultUUID != "" {
		updates["result_uuid"] = resultUUID
	}
	if err := tx.Model(&DrawSession{}).Where("ticket_id = ?", ticketID).Updates(updates).Error; err != nil {
		return fmt.Errorf("无法更新会话状态: %w", err)
	}
	return nil
}
