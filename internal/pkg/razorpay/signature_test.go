package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"event":"payment.captured"}`)
	secret := "whsec"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	validSig := hex.EncodeToString(mac.Sum(nil))

	if !VerifyWebhookSignature(payload, validSig, secret) {
		t.Fatalf("expected signature to validate")
	}
	if !VerifyWebhookSignature(payload, strings.ToUpper(validSig), secret) {
		t.Fatalf("expected upper-case hex signature to validate")
	}
	if VerifyWebhookSignature(payload, "deadbeef", secret) {
		t.Fatalf("expected invalid signature to fail")
	}
	if VerifyWebhookSignature(payload, "zz-not-hex", secret) {
		t.Fatalf("expected non-hex signature to fail")
	}
	if VerifyWebhookSignature(append(payload, ' '), validSig, secret) {
		t.Fatalf("expected signature over different bytes to fail")
	}
}

func TestVerifyWebhookSignature_MissingInputs(t *testing.T) {
	payload := []byte(`{}`)
	sig := SignPayload(payload, "s")
	if VerifyWebhookSignature(payload, sig, "") {
		t.Fatalf("expected empty secret to fail")
	}
	if VerifyWebhookSignature(payload, "", "s") {
		t.Fatalf("expected empty signature to fail")
	}
	if !VerifyWebhookSignature(payload, sig, "s") {
		t.Fatalf("expected SignPayload output to validate")
	}
}
