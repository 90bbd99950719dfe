package payment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/koepon-app/koepon-backend/internal/gacha"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
	"github.com/koepon-app/koepon-backend/pkg/ticket"
)

type createIntentRequest struct {
	GachaID  string `json:"gachaId" binding:"required"`
	PullType string `json:"pullType" binding:"required,oneof=single ten"`
}

type createIntentResponse struct {
	IntentID     string         `json:"intentId"`
	ClientSecret string         `json:"clientSecret"`
	AmountJPY    int64          `json:"amount"`
	Currency     string         `json:"currency"`
	Ticket       ticket.Payload `json:"ticket"`
	Signature    string         `json:"signature"`
}

// CreatePaymentIntent 处理 POST /api/payment/intent
func CreatePaymentIntent(c *gin.Context) {
	userID := c.GetString("userID")

	var req createIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストの形式が正しくありません"})
		return
	}

	result, err := CreateIntent(userID, req.GachaID, req.PullType)
	if err != nil {
		switch {
		case errors.Is(err, gacha.ErrMachineNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, gacha.ErrMachineInactive):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, ErrIntentInFlight):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			logger.S.Errorf("支付意图创建失败 user=%s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "決済の開始に失敗しました"})
		}
		return
	}

	c.JSON(http.StatusOK, createIntentResponse{
		IntentID:     result.IntentID,
		ClientSecret: result.ClientSecret,
		AmountJPY:    result.AmountJPY,
		Currency:     "jpy",
		Ticket:       result.Ticket,
		Signature:    result.Signature,
	})
}
