package admin

import (
	"fmt"
	"time"

	"github.com/koepon-app/koepon-backend/internal/payment"
	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
	"github.com/koepon-app/koepon-backend/internal/user"
	"github.com/koepon-app/koepon-backend/internal/vtuber"
)

// DashboardStats 是管理面板的聚合指标
type DashboardStats struct {
	TotalUsers          int64   `json:"totalUsers"`
	TotalVTubers        int64   `json:"totalVTubers"`
	PendingApplications int64   `json:"pendingApplications"`
	ApprovalRate        float64 `json:"approvalRate"`
	ActiveUsersDAU      int64   `json:"activeUsersDAU"`
	TotalRevenueJPY     int64   `json:"totalRevenueJPY"`
}

// GetDashboardStats 汇总管理面板所需的全部指标。
// DAU读取失败不阻塞整个面板，计为0并记日志。
func GetDashboardStats() (*DashboardStats, error) {
	totalUsers, err := user.CountAll()
	if err != nil {
		return nil, err
	}
	totalVTubers, err := vtuber.CountAll()
	if err != nil {
		return nil, fmt.Errorf("无法统计VTuber: %w", err)
	}
	pending, err := vtuber.CountPending()
	if err != nil {
		return nil, fmt.Errorf("无法统计待审核申请: %w", err)
	}

	// 通过率 = 已处理中获批的比例
	approvalRate := 0.0
	processed := totalVTubers - pending
	if processed > 0 {
		var approved int64
		err := database.DB.Model(&vtuber.VTuber{}).
			Where("status = ?", vtuber.StatusApproved).Count(&approved).Error
		if err != nil {
			return nil, fmt.Errorf("无法统计已获批VTuber: %w", err)
		}
		approvalRate = float64(approved) / float64(processed)
	}

	dau, err := user.CountDailyActive(time.Now())
	if err != nil {
		logger.S.Warnf("DAU统计失败: %v", err)
		dau = 0
	}

	revenue, err := totalRevenue()
	if err != nil {
		return nil, err
	}

	return &DashboardStats{
		TotalUsers:          totalUsers,
		TotalVTubers:        totalVTubers,
		PendingApplications: pending,
		ApprovalRate:        approvalRate,
		ActiveUsersDAU:      dau,
		TotalRevenueJPY:     revenue,
	}, nil
}

// totalRevenue 汇总所有已完成支付的金额。
// succeeded与consumed都是用户已付款的状态。
func totalRevenue() (int64, error) {
	var revenue int64
	err := database.DB.Model(&payment.Payment{}).
		Where("status IN ?", []string{payment.StatusSucceeded, payment.StatusConsumed}).
		Select("COALESCE(SUM(amount_jpy), 0)").
		Scan(&revenue).Error
	if err != nil {
		return 0, fmt.Errorf("无法统计营收: %w", err)
	}
	return revenue, nil
}
