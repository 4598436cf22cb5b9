package multisig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultisigAccount_RoundTrip(t *testing.T) {
	expected := &MultisigAccount{
		Owners:        generateKeys(t, 3),
		Threshold:     2,
		Nonce:         253,
		OwnerSetSeqno: 7,
	}

	actual, err := UnmarshalMultisigAccount(expected.Marshal())
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
	assert.Contains(t, actual.String(), "threshold=2")
}

func TestMultisigAccount_Invalid(t *testing.T) {
	valid := (&MultisigAccount{Owners: generateKeys(t, 2), Threshold: 1}).Marshal()

	_, err := UnmarshalMultisigAccount(nil)
	assert.ErrorIs(t, err, ErrInvalidAccountData)

	wrongDiscriminator := append([]byte{}, valid...)
	wrongDiscriminator[0] ^= 0xff
	_, err = UnmarshalMultisigAccount(wrongDiscriminator)
	assert.ErrorIs(t, err, ErrInvalidAccountData)

	// Owner count claims more keys than the data holds.
	tooManyOwners := append([]byte{}, valid...)
	tooManyOwners[8] = 0xff
	tooManyOwners[9] = 0xff
	_, err = UnmarshalMultisigAccount(tooManyOwners)
	assert.ErrorIs(t, err, ErrInvalidAccountData)

	_, err = UnmarshalMultisigAccount(valid[:8+4+2*32+4])
	assert.ErrorIs(t, err, ErrInvalidAccountData)
}
