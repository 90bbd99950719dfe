package exchange

import "gorm.io/gorm"

// 兑换记录状态
const (
	RedemptionCompleted = "completed"
	RedemptionFailed    = "failed"
)

// ExchangeItem 是勋章兑换目录中的商品。
// Stock为-1表示无限库存。
type ExchangeItem struct {
	gorm.Model

	UUID        string `gorm:"uniqueIndex;type:varchar(36);not null"`
	VTuberID    string `gorm:"column:vtuber_id;index;type:varchar(36)"`
	Name        string `gorm:"size:128;not null"`
	Description string `gorm:"size:255"`

	CostMedals int64 `gorm:"not null"`
	Stock      int64 `gorm:"not null;default:-1"`
	Active     bool  `gorm:"not null;default:true"`
}

// Redemption 是一次兑换的持久化记录
type Redemption struct {
	gorm.Model

	UUID     string `gorm:"uniqueIndex;type:varchar(36);not null"`
	UserID   string `gorm:"index;type:varchar(36);not null"`
	ItemUUID string `gorm:"index;type:varchar(36);not null"`

	CostMedals int64 `gorm:"not null"`

	// Status: completed | failed
	Status string `gorm:"size:12;not null"`
}
