package exchange

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/koepon-app/koepon-backend/internal/medal"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
)

type itemResponse struct {
	ID          string `json:"id"`
	VTuberID    string `json:"vtuberId,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CostMedals  int64  `json:"costMedals"`
	Stock       int64  `json:"stock"`
}

type redeemRequest struct {
	ItemID string `json:"itemId" binding:"required"`
}

type redemptionResponse struct {
	ID         string `json:"id"`
	ItemID     string `json:"itemId"`
	CostMedals int64  `json:"costMedals"`
	Status     string `json:"status"`
}

// GetExchangeItems 处理 GET /api/exchange/items
func GetExchangeItems(c *gin.Context) {
	items, err := ListItems()
	if err != nil {
		logger.S.Errorf("兑换目录查询失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "交換アイテムの取得に失敗しました"})
		return
	}

	resp := make([]itemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, itemResponse{
			ID:          item.UUID,
			VTuberID:    item.VTuberID,
			Name:        item.Name,
			Description: item.Description,
			CostMedals:  item.CostMedals,
			Stock:       item.Stock,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// RedeemHandler 处理 POST /api/exchange/redeem
func RedeemHandler(c *gin.Context) {
	userID := c.GetString("userID")

	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストの形式が正しくありません"})
		return
	}

	redemption, err := Redeem(userID, req.ItemID)
	if err != nil {
		switch {
		case errors.Is(err, ErrItemNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, ErrItemUnavailable), errors.Is(err, ErrOutOfStock):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, medal.ErrInsufficientBalance):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			logger.S.Errorf("兑换失败 user=%s item=%s: %v", userID, req.ItemID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "交換に失敗しました"})
		}
		return
	}

	c.JSON(http.StatusOK, redemptionResponse{
		ID:         redemption.UUID,
		ItemID:     redemption.ItemUUID,
		CostMedals: redemption.CostMedals,
		Status:     redemption.Status,
	})
}

// GetRedemptions 处理 GET /api/exchange/redemptions
func GetRedemptions(c *gin.Context) {
	userID := c.GetString("userID")

	redemptions, err := ListRedemptions(userID)
	if err != nil {
		logger.S.Errorf("兑换历史查询失败 user=%s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "交換履歴の取得に失敗しました"})
		return
	}

	resp := make([]redemptionResponse, 0, len(redemptions))
	for _, r := range redemptions {
		resp = append(resp, redemptionResponse{
			ID:         r.UUID,
			ItemID:     r.ItemUUID,
			CostMedals: r.CostMedals,
			Status:     r.Status,
		})
	}
	c.JSON(http.StatusOK, resp)
}
