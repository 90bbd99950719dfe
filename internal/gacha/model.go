package gacha

import (
	"time"

	"gorm.io/gorm"
)

// 奖品稀有度，从低到高
const (
	RarityN   = "N"
	RarityR   = "R"
	RaritySR  = "SR"
	RaritySSR = "SSR"
	RarityUR  = "UR"
)

// 一回抽取的价格类型
const (
	PullTypeSingle = "single"
	PullTypeTen    = "ten"
)

// ValidRarity 判断一个字符串是否是合法的稀有度
func ValidRarity(r string) bool {
	switch r {
	case RarityN, RarityR, RaritySR, RaritySSR, RarityUR:
		return true
	}
	return false
}

// Gacha 定义了一台抽选机在数据库中的持久化模型
type Gacha struct {
	UUID string `gorm:"uniqueIndex;type:varchar(36);not null" json:"id"`

	// VTuberID 是所属VTuber的UUID
	VTuberID string `gorm:"column:vtuber_id;index;type:varchar(36);not null" json:"vtuberId"`

	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `json:"description"`

	// 价格单位为日元。日元没有小数位，全部金额使用整数。
	PriceSingleJPY int64 `gorm:"not null" json:"priceSingle"`
	PriceTenJPY    int64 `gorm:"not null" json:"priceTen"`

	// MedalsPerDraw 是每次抽取奖励给用户的勋章数量
	MedalsPerDraw int64 `gorm:"not null" json:"medalsPerDraw"`

	Active bool `gorm:"index;not null;default:true" json:"active"`

	ID        uint `gorm:"primarykey" json:"-"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Item 定义了抽选机奖池中的一个奖品
type Item struct {
	gorm.Model

	UUID string `gorm:"uniqueIndex;type:varchar(36);not null" json:"id"`

	// GachaID 是所属抽选机的UUID
	GachaID string `gorm:"index;type:varchar(36);not null" json:"gachaId"`

	Name   string `gorm:"size:100;not null" json:"name"`
	Rarity string `gorm:"size:4;not null" json:"rarity"`

	// Weight 是加权随机抽样中的相对权重，必须为正数
	Weight float64 `gorm:"not null" json:"weight"`
}
