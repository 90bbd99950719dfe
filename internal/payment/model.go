package payment

import "gorm.io/gorm"

// 支付状态机: created -> succeeded -> consumed
//
//	created -> failed
const (
	StatusCreated   = "created"
	StatusSucceeded = "succeeded"
	StatusConsumed  = "consumed"
	StatusFailed    = "failed"
)

// Payment 记录一次Stripe支付意图的生命周期。
// 金额由服务端根据抽选机价格计算，客户端提交的金额不被信任。
type Payment struct {
	gorm.Model

	// IntentID 是Stripe侧的PaymentIntent ID
	IntentID string `gorm:"uniqueIndex;type:varchar(64);not null"`

	UserID   string `gorm:"index;type:varchar(36);not null"`
	GachaID  string `gorm:"type:varchar(36);not null"`
	PullType string `gorm:"size:8;not null"`

	AmountJPY int64 `gorm:"not null"`

	// Status: created | succeeded | consumed | failed
	Status string `gorm:"size:12;index;not null;default:created"`

	// TicketID 是随本次支付签发的一次性抽选券ID
	TicketID string `gorm:"uniqueIndex;type:varchar(36);not null"`
}
