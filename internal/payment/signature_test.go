package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	const secret = "test_key_secret"

	sig := ComputeSignature(secret, "order_123", "pay_456")
	assert.Len(t, sig, 64)

	assert.True(t, VerifySignature(secret, "order_123", "pay_456", sig))
	assert.False(t, VerifySignature(secret, "order_123", "pay_456", sig[:63]+"0"), "tampered signature accepted")
	assert.False(t, VerifySignature(secret, "order_999", "pay_456", sig), "signature bound to wrong order")
	assert.False(t, VerifySignature(secret, "order_123", "pay_999", sig), "signature bound to wrong payment")
	assert.False(t, VerifySignature("other_secret", "order_123", "pay_456", sig), "signature valid under wrong secret")
	assert.False(t, VerifySignature(secret, "order_123", "pay_456", ""))
}

func TestComputeSignatureSeparatesFields(t *testing.T) {
	const secret = "s"

	// "ab|c" and "a|bc" must not collide.
	assert.NotEqual(t,
		ComputeSignature(secret, "ab", "c"),
		ComputeSignature(secret, "a", "bc"),
	)
}
