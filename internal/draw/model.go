package draw

import "gorm.io/gorm"

// 抽选会话状态机:
//
//	idle -> payment -> drawing -> complete
//	payment | drawing -> error
const (
	SessionIdle     = "idle"
	SessionPayment  = "payment"
	SessionDrawing  = "drawing"
	SessionComplete = "complete"
	SessionError    = "error"
)

// DrawSession 记录一次抽选请求的状态演进，按抽选券一对一。
type DrawSession struct {
	gorm.Model

	TicketID string `gorm:"uniqueIndex;type:varchar(36);not null"`
	UserID   string `gorm:"index;type:varchar(36);not null"`
	GachaID  string `gorm:"type:varchar(36);not null"`

	// State: idle | payment | drawing | complete | error
	State string `gorm:"size:12;not null;default:idle"`

	// ResultUUID 在进入complete时指向产生的抽选结果
	ResultUUID string `gorm:"type:varchar(36)"`
}

// DrawResult 是一次抽选的持久化结果。
// 自增ID同时充当勋章入账处理器的顺序序号。
type DrawResult struct {
	gorm.Model

	UUID   string `gorm:"uniqueIndex;type:varchar(36);not null"`
	UserID string `gorm:"index;type:varchar(36);not null"`

	GachaID  string `gorm:"type:varchar(36);not null"`
	VTuberID string `gorm:"column:vtuber_id;type:varchar(36)"`
	PullType string `gorm:"size:8;not null"`

	// TicketID唯一约束让同一张券的重试请求能取回既有结果
	TicketID string `gorm:"uniqueIndex;type:varchar(36);not null"`

	AmountJPY    int64 `gorm:"not null"`
	MedalsEarned int64 `gorm:"not null"`

	Items []DrawResultItem `gorm:"foreignKey:ResultID"`
}

// DrawResultItem 是结果中的单个奖品
type DrawResultItem struct {
	gorm.Model

	ResultID uint   `gorm:"index;not null"`
	ItemUUID string `gorm:"type:varchar(36);not null"`
	Name     string `gorm:"size:128;not null"`
	Rarity   string `gorm:"size:4;not null"`
}
