package vtuber

import (
	"time"

	"gorm.io/gorm"
)

// 申请审核状态
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// VTuber 定义了VTuber（配信者）在数据库中的持久化模型。
// 新申请以pending状态创建，经管理员审核后进入approved状态，
// 只有approved的VTuber会出现在公开目录中。
type VTuber struct {
	// UUID 是VTuber的业务主键
	UUID string `gorm:"uniqueIndex;type:varchar(36);not null" json:"id"`

	Name        string `gorm:"size:100;not null" json:"name"`
	ChannelURL  string `gorm:"size:255" json:"channelUrl"`
	Description string `json:"description"`

	// Status 是审核状态: pending | approved | rejected
	Status string `gorm:"size:16;index;not null;default:pending" json:"status"`

	ID        uint `gorm:"primarykey" json:"-"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
