package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"testing"
)

func stripeHeader(secret string, timestamp string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(timestamp + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(h.Sum(nil)))
}

func TestStripeVerifyWebhookSignature(t *testing.T) {
	s := &StripeService{webhookSecret: "whsec_test"}
	payload := []byte(`{"id":"evt_123","type":"checkout.session.completed"}`)

	header := stripeHeader("whsec_test", "1756400000", payload)
	if !s.verifyWebhookSignature(payload, header) {
		t.Error("Valid signature rejected")
	}

	if s.verifyWebhookSignature(payload, stripeHeader("whsec_other", "1756400000", payload)) {
		t.Error("Signature from wrong secret accepted")
	}

	if s.verifyWebhookSignature([]byte(`{"id":"evt_456"}`), header) {
		t.Error("Signature for different payload accepted")
	}

	if s.verifyWebhookSignature(payload, "v1=deadbeef") {
		t.Error("Header without timestamp accepted")
	}
	if s.verifyWebhookSignature(payload, "t=1756400000") {
		t.Error("Header without v1 signature accepted")
	}
	if s.verifyWebhookSignature(payload, "") {
		t.Error("Empty header accepted")
	}
}

func TestStripeVerifyMultipleSignatures(t *testing.T) {
	s := &StripeService{webhookSecret: "whsec_test"}
	payload := []byte(`{"id":"evt_123"}`)

	// Stripe sends multiple v1 entries during secret rotation; any match passes.
	valid := stripeHeader("whsec_test", "1756400000", payload)
	header := "t=1756400000,v1=" + hex.EncodeToString(make([]byte, 32)) + "," + valid[len("t=1756400000,"):]
	if !s.verifyWebhookSignature(payload, header) {
		t.Error("Valid signature among multiple v1 entries rejected")
	}
}

func TestStripeVerifyDevMode(t *testing.T) {
	s := &StripeService{}
	if !s.verifyWebhookSignature([]byte(`{}`), "") {
		t.Error("Empty webhook secret should skip verification")
	}
}

func nowpaymentsSig(secret string, sorted []byte) string {
	h := hmac.New(sha512.New, []byte(secret))
	h.Write(sorted)
	return hex.EncodeToString(h.Sum(nil))
}

func TestNOWPaymentsVerifyIPNSignature(t *testing.T) {
	n := &NOWPaymentsService{ipnSecret: "ipn_test"}

	// Keys arrive unsorted; the signature covers the key-sorted form.
	payload := []byte(`{"payment_status":"finished","order_id":"abc","payment_id":12345}`)
	sorted := []byte(`{"order_id":"abc","payment_id":12345,"payment_status":"finished"}`)

	if !n.verifyIPNSignature(payload, nowpaymentsSig("ipn_test", sorted)) {
		t.Error("Valid IPN signature rejected")
	}
	if n.verifyIPNSignature(payload, nowpaymentsSig("ipn_test", payload)) {
		t.Error("Signature over unsorted payload accepted")
	}
	if n.verifyIPNSignature(payload, nowpaymentsSig("wrong", sorted)) {
		t.Error("Signature from wrong secret accepted")
	}
	if n.verifyIPNSignature([]byte("not json"), nowpaymentsSig("ipn_test", sorted)) {
		t.Error("Non-JSON payload accepted")
	}
}

func TestSortedJSON(t *testing.T) {
	out, err := sortedJSON([]byte(`{"b":2,"a":"x","c":{"z":1,"y":2}}`))
	if err != nil {
		t.Fatalf("sortedJSON failed: %v", err)
	}
	// Only top-level keys are sorted; nested values pass through untouched.
	expected := `{"a":"x","b":2,"c":{"z":1,"y":2}}`
	if string(out) != expected {
		t.Errorf("Expected %s, got %s", expected, string(out))
	}

	if _, err := sortedJSON([]byte(`[1,2]`)); err == nil {
		t.Error("Expected error for non-object payload")
	}
}
