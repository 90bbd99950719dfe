package payment

import (
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Provider 抽象支付后端，测试中用内存实现替换Stripe。
type Provider interface {
	// CreateIntent 在支付后端创建一个金额为amountJPY日元的支付意图，
	// 返回意图ID和前端确认用的client secret。
	CreateIntent(amountJPY int64, userID, gachaID, pullType string) (intentID, clientSecret string, err error)

	// ConstructEvent 验证webhook请求签名并解析事件
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

// stripeProvider 是生产环境使用的Stripe实现
type stripeProvider struct {
	webhookSecret string
}

// NewStripeProvider 初始化Stripe SDK并返回生产Provider
func NewStripeProvider(secretKey, webhookSecret string) Provider {
	stripe.Key = secretKey
	return &stripeProvider{webhookSecret: webhookSecret}
}

func (p *stripeProvider) CreateIntent(amountJPY int64, userID, gachaID, pullType string) (string, string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountJPY),
		Currency: stripe.String(string(stripe.CurrencyJPY)),
	}
	params.AddMetadata("user_id", userID)
	params.AddMetadata("gacha_id", gachaID)
	params.AddMetadata("pull_type", pullType)

	intent, err := paymentintent.New(params)
	if err != nil {
		return "", "", fmt.Errorf("无法创建Stripe支付意图: %w", err)
	}
	return intent.ID, intent.ClientSecret, nil
}

func (p *stripeProvider) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, p.webhookSecret)
}
