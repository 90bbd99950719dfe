package ticket

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// secretKey 是进程内用于签名的32字节密钥。
var secretKey []byte

// Payload 定义了抽选券中被签名的数据。
// 它在支付意图创建时签发，并在抽选执行请求中原样提交。
type Payload struct {
	TicketID        string `json:"t"`
	UserID          string `json:"u"`
	GachaID         string `json:"g"`
	PullType        string `json:"p"` // single | ten
	PaymentIntentID string `json:"i"`
}

// Configure 使用外部提供的密钥初始化签名器。
// 密钥为空时生成一个密码学安全的随机密钥（单实例部署下足够；
// 多实例部署必须配置共享密钥，否则重启或跨实例会使未兑换的抽选券失效）。
func Configure(key []byte) error {
	if len(key) >= 32 {
		secretKey = key
		return nil
	}
	if len(key) > 0 {
		return errors.New("抽选券签名密钥长度不足32字节")
	}
	generated := make([]byte, 32)
	if _, err := rand.Read(generated); err != nil {
		return errors.New("无法生成抽选券签名密钥: " + err.Error())
	}
	secretKey = generated
	return nil
}

// DeriveKey 通过HKDF-SHA256从主密钥派生出抽选券专用的32字节签名密钥。
// 派生是确定性的，同一主密钥在多实例间得到相同的签名密钥，
// 同时保证签名密钥与主密钥的其他用途（如JWT签名）互相隔离。
func DeriveKey(secret []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("抽选券签名主密钥为空")
	}
	reader := hkdf.New(sha256.New, secret, nil, []byte("koepon-ticket-signing"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, errors.New("派生抽选券签名密钥失败: " + err.Error())
	}
	return key, nil
}

// Sign 为一个Payload生成HMAC-SHA256签名，返回Base64编码字符串。
func Sign(payload Payload) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", errors.New("无法序列化抽选券payload")
	}

	mac := hmac.New(sha256.New, secretKey)
	mac.Write(payloadBytes)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Verify 验证payload与签名是否匹配。
// 使用hmac.Equal做恒定时间比较，防止时序攻击。
func Verify(payload Payload, signatureB64 string) bool {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secretKey)
	mac.Write(payloadBytes)
	expected := mac.Sum(nil)

	actual, err := base64.RawURLEncoding.DecodeString(signatureB64)
	if err != nil {
		return false
	}

	return hmac.Equal(expected, actual)
}
