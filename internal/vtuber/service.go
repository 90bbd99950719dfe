package vtuber

import (
	"errors"
	"fmt"

	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("指定されたVTuberが見つかりません")

// ListApproved 返回公开目录中的全部VTuber。
func ListApproved() ([]VTuber, error) {
	var vtubers []VTuber
	if err := database.DB.Where("status = ?", StatusApproved).Order("id asc").Find(&vtubers).Error; err != nil {
		return nil, fmt.Errorf("无法读取VTuber目录: %w", err)
	}
	return vtubers, nil
}

// GetByUUID 按业务主键查找单个VTuber。
func GetByUUID(uuidStr string) (*VTuber, error) {
	var v VTuber
	if err := database.DB.Where("uuid = ?", uuidStr).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("无法查询VTuber %s: %w", uuidStr, err)
	}
	return &v, nil
}

// ListAll 返回全部VTuber，含待审核与已拒绝（管理端用）。
func ListAll() ([]VTuber, error) {
	var vtubers []VTuber
	if err := database.DB.Order("id asc").Find(&vtubers).Error; err != nil {
		return nil, fmt.Errorf("无法读取VTuber列表: %w", err)
	}
	return vtubers, nil
}

// CountAll 返回VTuber总数（不含软删除）。
func CountAll() (int64, error) {
	var count int64
	err := database.DB.Model(&VTuber{}).Count(&count).Error
	return count, err
}

// CountPending 返回待审核的申请数量。
func CountPending() (int64, error) {
	var count int64
	err := database.DB.Model(&VTuber{}).Where("status = ?", StatusPending).Count(&count).Error
	return count, err
}

// Approve 将一个pending状态的申请标记为approved。
func Approve(uuidStr string) error {
	res := database.DB.Model(&VTuber{}).
		Where("uuid = ? AND status = ?", uuidStr, StatusPending).
		Update("status", StatusApproved)
	if res.Error != nil {
		return fmt.Errorf("审核VTuber %s 失败: %w", uuidStr, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PrimeDB 负责初始化vtuber模块的数据库部分
func PrimeDB() error {
	if err := database.DB.AutoMigrate(&VTuber{}); err != nil {
		return fmt.Errorf("无法迁移vtuber表: %w", err)
	}
	return nil
}
