package payment

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
	"github.com/stripe/stripe-go/v76"
)

// webhookMaxBodyBytes 限制webhook请求体大小，Stripe官方建议64KB
const webhookMaxBodyBytes = int64(65536)

// HandleStripeWebhook 处理 POST /api/payment/webhook
//
// 签名验证失败返回400。已知事件处理失败返回500让Stripe重试；
// 未知事件类型直接确认，避免无意义的重投。
func HandleStripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, webhookMaxBodyBytes)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		return
	}

	event, err := activeProvider.ConstructEvent(body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		logger.S.Warnf("webhook签名验证失败: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		err = handleIntentEvent(event, MarkSucceeded)
	case "payment_intent.payment_failed":
		err = handleIntentEvent(event, MarkFailed)
	default:
		logger.S.Debugw("忽略未处理的webhook事件", "type", event.Type)
	}

	if err != nil {
		logger.S.Errorf("webhook事件处理失败 type=%s: %v", event.Type, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func handleIntentEvent(event stripe.Event, advance func(string) error) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return err
	}
	if err := advance(intent.ID); err != nil {
		return err
	}

	// 支付到达终态后放开该用户的并发锁
	if record, err := GetByIntentID(intent.ID); err == nil {
		ReleaseInFlightLock(record.UserID)
	}
	return nil
}
