package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	ErrInvalidKeySize    = errors.New("暗号化キーは32バイトである必要があります")
	ErrInvalidCiphertext = errors.New("暗号文の形式が正しくありません")
)

// Encryptor 封装AES-256-GCM。每次加密生成新的随机nonce，
// nonce明文拼在密文前，整体Base64编码。
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor 用32字节密钥构造Encryptor
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("无法创建AES密码器: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("无法创建GCM模式: %w", err)
	}
	return &Encryptor{aead: aead}, nil
}

// Encrypt 加密明文，返回Base64编码的 nonce || ciphertext || tag
func (e *Encryptor) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("无法生成nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt 解密Encrypt的输出。密文被篡改时GCM认证失败并返回错误。
func (e *Encryptor) Decrypt(encoded string) ([]byte, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	nonceSize := e.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, ErrInvalidCiphertext
	}

	plaintext, err := e.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	return plaintext, nil
}

// GenerateToken 生成n字节的密码学安全随机令牌，Base64编码
func GenerateToken(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("令牌长度必须为正数")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("无法生成随机令牌: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
