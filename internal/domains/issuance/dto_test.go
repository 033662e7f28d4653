package issuance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-registry/internal/domains/registry"
)

func validMintRequest() MintRequest {
	return MintRequest{
		Username:  "alice",
		Address:   "0x00000000000000000000000000000000000000A1",
		Expiry:    1735689600,
		ChainID:   1,
		Years:     2,
		Signature: strings.Repeat("ab", 64),
		Payment:   "10.5",
	}
}

func TestMintRequestValidate(t *testing.T) {
	assert.NoError(t, validMintRequest().Validate())

	t.Run("rejects bad usernames", func(t *testing.T) {
		req := validMintRequest()
		req.Username = "Not Valid!"
		assert.Error(t, req.Validate())
	})

	t.Run("rejects malformed addresses", func(t *testing.T) {
		req := validMintRequest()
		req.Address = "a1"
		assert.Error(t, req.Validate())
	})

	t.Run("rejects zero years", func(t *testing.T) {
		req := validMintRequest()
		req.Years = 0
		assert.Error(t, req.Validate())
	})

	t.Run("rejects short signatures", func(t *testing.T) {
		req := validMintRequest()
		req.Signature = "abcd"
		assert.Error(t, req.Validate())
	})

	t.Run("rejects non-decimal payment", func(t *testing.T) {
		req := validMintRequest()
		req.Payment = "ten"
		assert.Error(t, req.Validate())

		req.Payment = "-3"
		assert.Error(t, req.Validate())
	})

	t.Run("payment is optional", func(t *testing.T) {
		req := validMintRequest()
		req.Payment = ""
		assert.NoError(t, req.Validate())
	})
}

func TestMintRequestToSubmission(t *testing.T) {
	sub, err := validMintRequest().ToSubmission()
	require.NoError(t, err)

	// Address is canonicalized, payment parsed as decimal.
	assert.Equal(t, registry.Address("0x00000000000000000000000000000000000000a1"), sub.Address)
	assert.Equal(t, "10.5", sub.Payment.String())
	assert.Equal(t, uint64(2), sub.Years)

	empty := validMintRequest()
	empty.Payment = ""
	sub, err = empty.ToSubmission()
	require.NoError(t, err)
	assert.True(t, sub.Payment.IsZero())
}

func TestSetFeeRequestParseFee(t *testing.T) {
	fee, err := SetFeeRequest{Fee: "12.25"}.ParseFee()
	require.NoError(t, err)
	assert.Equal(t, "12.25", fee.String())

	_, err = SetFeeRequest{Fee: "not-a-number"}.ParseFee()
	assert.Error(t, err)
}
