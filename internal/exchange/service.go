package exchange

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/koepon-app/koepon-backend/internal/medal"
	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
	"gorm.io/gorm"
)

var (
	ErrItemNotFound    = errors.New("指定された交換アイテムが見つかりません")
	ErrItemUnavailable = errors.New("このアイテムは現在交換できません")
	ErrOutOfStock      = errors.New("このアイテムは在庫切れです")
)

// ListItems 返回当前可兑换的商品目录
func ListItems() ([]ExchangeItem, error) {
	var items []ExchangeItem
	err := database.DB.Where("active = ?", true).Order("id ASC").Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("无法读取兑换目录: %w", err)
	}
	return items, nil
}

// GetItemByUUID 按UUID查找兑换商品
func GetItemByUUID(itemUUID string) (*ExchangeItem, error) {
	var item ExchangeItem
	err := database.DB.Where("uuid = ?", itemUUID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("无法读取兑换商品: %w", err)
	}
	return &item, nil
}

// Redeem 用勋章兑换一件商品。
//
// 两阶段消费：先预留勋章，再扣减库存并落兑换记录，最后提交预留。
// 中间任何一步失败都会释放预留，用户勋章不受损失。
func Redeem(userID, itemUUID string) (*Redemption, error) {
	item, err := GetItemByUUID(itemUUID)
	if err != nil {
		return nil, err
	}
	if !item.Active {
		return nil, ErrItemUnavailable
	}

	reservationID, err := medal.Reserve(userID, item.VTuberID, item.CostMedals)
	if err != nil {
		return nil, err
	}

	redemption, err := performRedemption(userID, item)
	if err != nil {
		if releaseErr := medal.ReleaseReservation(reservationID); releaseErr != nil {
			logger.S.Errorf("释放勋章预留失败 reservation=%s: %v", reservationID, releaseErr)
		}
		return nil, err
	}

	description := fmt.Sprintf("アイテム交換: %s", item.Name)
	err = medal.CommitReservation(reservationID, medal.SourceExchange, description, redemption.UUID)
	if err != nil {
		// 预留提交失败极罕见，兑换已完成，记录告警人工对账
		logger.S.Errorf("严重告警: 兑换已完成但勋章预留提交失败 redemption=%s reservation=%s: %v",
			redemption.UUID, reservationID, err)
	}

	return redemption, nil
}

func performRedemption(userID string, item *ExchangeItem) (*Redemption, error) {
	redemptionUUID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成兑换ID: %w", err)
	}

	var persisted *Redemption
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if item.Stock >= 0 {
			// 原子条件扣减，售罄时不命中任何行
			res := tx.Model(&ExchangeItem{}).
				Where("uuid = ? AND stock > 0", item.UUID).
				Update("stock", gorm.Expr("stock - 1"))
			if res.Error != nil {
				return fmt.Errorf("无法扣减库存: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrOutOfStock
			}
		}

		redemption := Redemption{
			UUID:       redemptionUUID.String(),
			UserID:     userID,
			ItemUUID:   item.UUID,
			CostMedals: item.CostMedals,
			Status:     RedemptionCompleted,
		}
		if err := tx.Create(&redemption).Error; err != nil {
			return fmt.Errorf("无法持久化兑换记录: %w", err)
		}
		persisted = &redemption
		return nil
	})
	if err != nil {
		return nil, err
	}
	return persisted, nil
}

// ListRedemptions 返回用户的兑换历史，按时间倒序
func ListRedemptions(userID string) ([]Redemption, error) {
	var redemptions []Redemption
	err := database.DB.Where("user_id = ?", userID).Order("id DESC").Limit(100).Find(&redemptions).Error
	if err != nil {
		return nil, fmt.Errorf("无法读取兑换历史: %w", err)
	}
	return redemptions, nil
}
