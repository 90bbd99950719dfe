package medal

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
)

// BalanceResponse 是余额查询接口的返回体
type BalanceResponse struct {
	Total       int64                            `json:"total"`
	Available   int64                            `json:"available"`
	Used        int64                            `json:"used"`
	Reserved    int64                            `json:"reserved"`
	VTubers     map[string]VTuberBalanceResponse `json:"vtubers"`
	LastUpdated time.Time                        `json:"lastUpdated"`
}

type VTuberBalanceResponse struct {
	Balance     int64 `json:"balance"`
	TotalEarned int64 `json:"totalEarned"`
	TotalUsed   int64 `json:"totalUsed"`
}

// TransactionResponse 是交易历史接口的单条返回体。
// 账本模型不直接出现在返回体中，内部的行ID与参照ID不对外暴露。
type TransactionResponse struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Amount      int64     `json:"amount"`
	Source      string    `json:"source"`
	Description string    `json:"description"`
	VTuberID    string    `json:"vtuberId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toTransactionResponse(tx MedalTransaction) TransactionResponse {
	return TransactionResponse{
		ID:          tx.UUID,
		Type:        tx.Type,
		Amount:      tx.Amount,
		Source:      tx.Source,
		Description: tx.Description,
		VTuberID:    tx.VTuberID,
		CreatedAt:   tx.CreatedAt,
	}
}

type historyResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Total        int64                 `json:"total"`
	Page         int                   `json:"page"`
	PageSize     int                   `json:"pageSize"`
}

// GetMedalBalance 处理 GET /api/medals/balance
func GetMedalBalance(c *gin.Context) {
	userID := c.GetString("userID")

	dto, err := GetBalance(userID)
	if err != nil {
		logger.S.Errorf("余额查询失败 user=%s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "メダル残高の取得に失敗しました"})
		return
	}

	resp := BalanceResponse{
		Total:       dto.Total,
		Available:   dto.Available,
		Used:        dto.Used,
		Reserved:    dto.Reserved,
		VTubers:     make(map[string]VTuberBalanceResponse, len(dto.VTubers)),
		LastUpdated: dto.LastUpdated,
	}
	for id, sub := range dto.VTubers {
		resp.VTubers[id] = VTuberBalanceResponse{
			Balance:     sub.Balance,
			TotalEarned: sub.TotalEarned,
			TotalUsed:   sub.TotalUsed,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GetMedalTransactions 处理 GET /api/medals/transactions
// 支持type、source、from、to（RFC3339）、page、pageSize查询参数。
func GetMedalTransactions(c *gin.Context) {
	userID := c.GetString("userID")

	filter := HistoryFilter{
		Type:   c.Query("type"),
		Source: c.Query("source"),
	}
	if filter.Type != "" && filter.Type != TypeEarned && filter.Type != TypeUsed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "無効な取引タイプです"})
		return
	}
	if filter.Source != "" && !ValidSource(filter.Source) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "無効な取引ソースです"})
		return
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "無効な開始日時です"})
			return
		}
		filter.From = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "無効な終了日時です"})
			return
		}
		filter.To = t
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	records, total, err := TransactionHistory(userID, filter)
	if err != nil {
		logger.S.Errorf("交易历史查询失败 user=%s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "取引履歴の取得に失敗しました"})
		return
	}
	transactions := make([]TransactionResponse, 0, len(records))
	for _, record := range records {
		transactions = append(transactions, toTransactionResponse(record))
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

	c.JSON(http.StatusOK, historyResponse{
		Transactions: transactions,
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
	})
}
