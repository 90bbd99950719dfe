package medal

import (
	"fmt"
	"time"

	"github.com/koepon-app/koepon-backend/internal/platform/database"
)

// HistoryFilter 约束交易历史的查询范围，零值字段不参与过滤
type HistoryFilter struct {
	Type   string
	Source string
	From   time.Time
	To     time.Time

	Page     int
	PageSize int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TransactionHistory 返回用户的账本交易，按时间倒序分页。
// 返回值中的total是过滤后的总条数，用于上层分页展示。
func TransactionHistory(userID string, filter HistoryFilter) ([]MedalTransaction, int64, error) {
	query := database.DB.Model(&MedalTransaction{}).Where("user_id = ?", userID)

	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if !filter.From.IsZero() {
		query = query.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("created_at <= ?", filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("无法统计交易历史: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var records []MedalTransaction
	err := query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("无法读取交易历史: %w", err)
	}
	return records, total, nil
}
