package medal

import "gorm.io/gorm"

// 账本交易类型
const (
	TypeEarned = "earned"
	TypeUsed   = "used"
)

// 勋章来源
const (
	SourceGachaDraw = "gacha-draw"
	SourceExchange  = "exchange"
	SourcePurchase  = "purchase"
	SourceReward    = "reward"
	SourceBonus     = "bonus"
)

// 预留（两阶段消费）状态
const (
	ReservationPending   = "pending"
	ReservationCommitted = "committed"
	ReservationReleased  = "released"
)

// ValidSource 判断一个字符串是否是合法的勋章来源
func ValidSource(s string) bool {
	switch s {
	case SourceGachaDraw, SourceExchange, SourcePurchase, SourceReward, SourceBonus:
		return true
	}
	return false
}

// MedalBalance 是单个用户的勋章余额行。
//
// 各字段的口径：
//   - Available: 当前可消费的勋章数
//   - Reserved:  两阶段消费中已预留、尚未提交的勋章数
//   - Total:     Available + Reserved（未消费的全部勋章）
//   - Used:      累计已消费的勋章数，只增不减
//
// 消费提交时Total与Available各减去消费额、Used增加消费额；
// 获得时Total与Available各增加获得额。
type MedalBalance struct {
	gorm.Model

	UserID string `gorm:"uniqueIndex;type:varchar(36);not null"`

	Total     int64 `gorm:"not null;default:0"`
	Available int64 `gorm:"not null;default:0"`
	Used      int64 `gorm:"not null;default:0"`
	Reserved  int64 `gorm:"not null;default:0"`
}

// VTuberMedalBalance 是用户按VTuber细分的子余额。
// 全体子余额的Balance之和等于MedalBalance.Total（无VTuber归属的交易除外）。
type VTuberMedalBalance struct {
	gorm.Model

	UserID   string `gorm:"index:idx_user_vtuber,unique;type:varchar(36);not null"`
	VTuberID string `gorm:"column:vtuber_id;index:idx_user_vtuber,unique;type:varchar(36);not null"`

	Balance     int64 `gorm:"not null;default:0"`
	TotalEarned int64 `gorm:"not null;default:0"`
	TotalUsed   int64 `gorm:"not null;default:0"`
}

// MedalTransaction 是追加写入的账本交易记录。
// RefID上的唯一约束使同一业务事件（例如同一次抽选结果）的入账天然幂等。
type MedalTransaction struct {
	gorm.Model

	UUID   string `gorm:"uniqueIndex;type:varchar(36);not null"`
	UserID string `gorm:"index;type:varchar(36);not null"`

	// Type: earned | used
	Type string `gorm:"size:8;index;not null"`

	// Amount 恒为正数，方向由Type表达
	Amount int64 `gorm:"not null"`

	// Source: gacha-draw | exchange | purchase | reward | bonus
	Source      string `gorm:"size:16;index;not null"`
	Description string `gorm:"size:255"`

	VTuberID string `gorm:"column:vtuber_id;index;type:varchar(36)"`

	// RefID 是产生这笔交易的业务事件ID（抽选结果ID、兑换ID等）
	RefID string `gorm:"uniqueIndex;type:varchar(64);not null"`
}

// MedalReservation 是两阶段消费的预留记录。
// Reserve创建pending记录并冻结余额，Commit落账，Release解冻。
type MedalReservation struct {
	gorm.Model

	UUID     string `gorm:"uniqueIndex;type:varchar(36);not null"`
	UserID   string `gorm:"index;type:varchar(36);not null"`
	VTuberID string `gorm:"column:vtuber_id;type:varchar(36)"`

	Cost int64 `gorm:"not null"`

	// Status: pending | committed | released
	Status string `gorm:"size:12;index;not null;default:pending"`
}
