package gacha

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"gorm.io/gorm"
)

// ItemInput 是管理端创建/更新奖池时的单个奖品定义
type ItemInput struct {
	Name   string
	Rarity string
	Weight float64
}

// MachineInput 是管理端创建/更新抽选机的输入
type MachineInput struct {
	VTuberID       string
	Name           string
	Description    string
	PriceSingleJPY int64
	PriceTenJPY    int64
	MedalsPerDraw  int64
	Active         bool
	Items          []ItemInput
}

func validateInput(input MachineInput) error {
	if input.Name == "" {
		return errors.New("抽选机名称不能为空")
	}
	if input.PriceSingleJPY <= 0 || input.PriceTenJPY <= 0 {
		return errors.New("抽选价格必须为正数")
	}
	if input.MedalsPerDraw < 0 {
		return errors.New("勋章奖励不能为负数")
	}
	for _, item := range input.Items {
		if item.Name == "" {
			return errors.New("奖品名称不能为空")
		}
		if !ValidRarity(item.Rarity) {
			return fmt.Errorf("无效的稀有度: %s", item.Rarity)
		}
		if item.Weight <= 0 {
			return errors.New("奖品权重必须为正数")
		}
	}
	return nil
}

// CreateMachine 创建一台抽选机及其奖池，并加载进内存仓库。
func CreateMachine(input MachineInput) (string, error) {
	if err := validateInput(input); err != nil {
		return "", err
	}

	gachaUUID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("无法生成抽选机ID: %w", err)
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		machine := Gacha{
			UUID:           gachaUUID.String(),
			VTuberID:       input.VTuberID,
			Name:           input.Name,
			Description:    input.Description,
			PriceSingleJPY: input.PriceSingleJPY,
			PriceTenJPY:    input.PriceTenJPY,
			MedalsPerDraw:  input.MedalsPerDraw,
			Active:         input.Active,
		}
		if err := tx.Create(&machine).Error; err != nil {
			return fmt.Errorf("无法创建抽选机: %w", err)
		}
		return createItems(tx, machine.UUID, input.Items)
	})
	if err != nil {
		return "", err
	}

	if err := ReloadMachine(gachaUUID.String()); err != nil {
		return "", fmt.Errorf("抽选机已创建但内存加载失败: %w", err)
	}
	return gachaUUID.String(), nil
}

// UpdateMachine 更新一台抽选机。Items非nil时整体替换奖池。
// 更新落库后整机热重载，线上抽取立即使用新配置。
func UpdateMachine(gachaUUID string, input MachineInput) error {
	if err := validateInput(input); err != nil {
		return err
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Gacha{}).Where("uuid = ?", gachaUUID).Updates(map[string]interface{}{
			"vtuber_id":        input.VTuberID,
			"name":             input.Name,
			"description":      input.Description,
			"price_single_jpy": input.PriceSingleJPY,
			"price_ten_jpy":    input.PriceTenJPY,
			"medals_per_draw":  input.MedalsPerDraw,
			"active":           input.Active,
		})
		if res.Error != nil {
			return fmt.Errorf("无法更新抽选机: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrMachineNotFound
		}

		if input.Items != nil {
			if err := tx.Where("gacha_id = ?", gachaUUID).Delete(&Item{}).Error; err != nil {
				return fmt.Errorf("无法清空旧奖池: %w", err)
			}
			return createItems(tx, gachaUUID, input.Items)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := ReloadMachine(gachaUUID); err != nil {
		return fmt.Errorf("抽选机已更新但内存重载失败: %w", err)
	}
	return nil
}

func createItems(tx *gorm.DB, gachaUUID string, items []ItemInput) error {
	for _, input := range items {
		itemUUID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("无法生成奖品ID: %w", err)
		}
		item := Item{
			UUID:    itemUUID.String(),
			GachaID: gachaUUID,
			Name:    input.Name,
			Rarity:  input.Rarity,
			Weight:  input.Weight,
		}
		if err := tx.Create(&item).Error; err != nil {
			return fmt.Errorf("无法创建奖品: %w", err)
		}
	}
	return nil
}

// ListMachinesAdmin 返回全部抽选机，含未上架（管理端用）
func ListMachinesAdmin() ([]Gacha, error) {
	var machines []Gacha
	if err := database.DB.Order("id asc").Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("无法读取抽选机列表: %w", err)
	}
	return machines, nil
}

// CountActive 返回上架中的抽选机数量
func CountActive() (int64, error) {
	var count int64
	err := database.DB.Model(&Gacha{}).Where("active = ?", true).Count(&count).Error
	return count, err
}
