package ticket

import (
	"bytes"
	"testing"
)

func testPayload() Payload {
	return Payload{
		TicketID:        "ticket-001",
		UserID:          "user-001",
		GachaID:         "gacha-001",
		PullType:        "single",
		PaymentIntentID: "pi_123",
	}
}

func TestSignAndVerify(t *testing.T) {
	if err := Configure(bytes.Repeat([]byte("k"), 32)); err != nil {
		t.Fatalf("Configure error: %v", err)
	}

	payload := testPayload()
	sig, err := Sign(payload)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	if !Verify(payload, sig) {
		t.Fatal("合法签名应当通过验证")
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	if err := Configure(bytes.Repeat([]byte("k"), 32)); err != nil {
		t.Fatalf("Configure error: %v", err)
	}

	payload := testPayload()
	sig, err := Sign(payload)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}

	tampered := payload
	tampered.UserID = "user-002"
	if Verify(tampered, sig) {
		t.Fatal("被篡改的payload不应通过验证")
	}

	tampered = payload
	tampered.PullType = "ten"
	if Verify(tampered, sig) {
		t.Fatal("被篡改的pullType不应通过验证")
	}
}

func TestVerifyRejectsGarbageSignature(t *testing.T) {
	if err := Configure(bytes.Repeat([]byte("k"), 32)); err != nil {
		t.Fatalf("Configure error: %v", err)
	}
	if Verify(testPayload(), "not-base64!!!") {
		t.Fatal("非法编码的签名不应通过验证")
	}
	if Verify(testPayload(), "") {
		t.Fatal("空签名不应通过验证")
	}
}

func TestConfigureRejectsShortKey(t *testing.T) {
	if err := Configure([]byte("short")); err == nil {
		t.Fatal("短于32字节的密钥应当被拒绝")
	}
}

func TestDeriveKey(t *testing.T) {
	secret := []byte("jwt-master-secret")

	key1, err := DeriveKey(secret)
	if err != nil {
		t.Fatalf("DeriveKey error: %v", err)
	}
	if len(key1) != 32 {
		t.Fatalf("派生密钥应为32字节, got %d", len(key1))
	}

	// 确定性: 同一主密钥在多实例间派生出相同密钥
	key2, err := DeriveKey(secret)
	if err != nil {
		t.Fatalf("DeriveKey error: %v", err)
	}
	if !bytes.Equal(key1, key2) {
		t.Fatal("同一主密钥应派生出相同的签名密钥")
	}

	// 隔离: 派生密钥不等于主密钥本身
	if bytes.Contains(key1, secret) || bytes.Contains(secret, key1) {
		t.Fatal("派生密钥不应包含主密钥")
	}

	other, err := DeriveKey([]byte("another-master-secret"))
	if err != nil {
		t.Fatalf("DeriveKey error: %v", err)
	}
	if bytes.Equal(key1, other) {
		t.Fatal("不同主密钥应派生出不同的签名密钥")
	}

	if err := Configure(key1); err != nil {
		t.Fatalf("派生密钥应可直接用于Configure: %v", err)
	}
}

func TestDeriveKeyRejectsEmptySecret(t *testing.T) {
	if _, err := DeriveKey(nil); err == nil {
		t.Fatal("空主密钥应当被拒绝")
	}
}

func TestConfigureGeneratesRandomKey(t *testing.T) {
	if err := Configure(nil); err != nil {
		t.Fatalf("空密钥应当触发随机生成: %v", err)
	}
	payload := testPayload()
	sig, err := Sign(payload)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	if !Verify(payload, sig) {
		t.Fatal("随机密钥下签名验证应当自洽")
	}
}
