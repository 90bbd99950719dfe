package draw

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/koepon-app/koepon-backend/internal/gacha"
	"github.com/koepon-app/koepon-backend/internal/payment"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
	"github.com/koepon-app/koepon-backend/pkg/ticket"
)

type executeDrawRequest struct {
	Ticket    ticket.Payload `json:"ticket" binding:"required"`
	Signature string         `json:"signature" binding:"required"`
}

type drawnItemResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Rarity string `json:"rarity"`
}

type drawResultResponse struct {
	ResultID     string              `json:"resultId"`
	GachaID      string              `json:"gachaId"`
	PullType     string              `json:"pullType"`
	Items        []drawnItemResponse `json:"items"`
	MedalsEarned int64               `json:"medalsEarned"`
	AmountJPY    int64               `json:"amount"`
}

// ExecuteDrawHandler 处理 POST /api/gacha/draw 和 /api/gacha/draw-multi。
// 两个端点共用同一实现，抽取次数由券中的pullType决定。
func ExecuteDrawHandler(c *gin.Context) {
	userID := c.GetString("userID")

	var req executeDrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストの形式が正しくありません"})
		return
	}

	// 券面用户必须是发起请求的用户本人
	if req.Ticket.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": ErrInvalidTicket.Error()})
		return
	}

	result, err := ExecuteDraw(req.Ticket, req.Signature)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidTicket):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ErrTicketUsed):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, payment.ErrPaymentNotSucceeded):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
		case errors.Is(err, payment.ErrPaymentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, gacha.ErrMachineNotFound), errors.Is(err, gacha.ErrMachineInactive):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			logger.S.Errorf("抽选执行失败 user=%s ticket=%s: %v", userID, req.Ticket.TicketID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "抽選の実行に失敗しました"})
		}
		return
	}

	resp := drawResultResponse{
		ResultID:     result.UUID,
		GachaID:      result.GachaID,
		PullType:     result.PullType,
		Items:        make([]drawnItemResponse, 0, len(result.Items)),
		MedalsEarned: result.MedalsEarned,
		AmountJPY:    result.AmountJPY,
	}
	for _, item := range result.Items {
		resp.Items = append(resp.Items, drawnItemResponse{
			ID:     item.ItemUUID,
			Name:   item.Name,
			Rarity: item.Rarity,
		})
	}
	c.JSON(http.StatusOK, resp)
}
