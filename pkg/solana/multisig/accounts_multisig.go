package multisig

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/solfarm/multisig-cli/pkg/solana/binary"
)

var MultisigAccountDiscriminator = []byte{
	0xe0, 0x74, 0x79, 0xba, 0x44, 0xa1, 0x4f, 0xec,
}

type MultisigAccount struct {
	Owners        []ed25519.PublicKey
	Threshold     uint64
	Nonce         uint8
	OwnerSetSeqno uint32
}

func (obj *MultisigAccount) Unmarshal(data []byte) error {
	if len(data) < 8+4 {
		return ErrInvalidAccountData
	}

	var offset int

	var discriminator []byte
	getDiscriminator(data, &discriminator, &offset)
	if !bytes.Equal(discriminator, MultisigAccountDiscriminator) {
		return ErrInvalidAccountData
	}

	if err := binary.GetKeyVec(data[offset:], &obj.Owners, &offset); err != nil {
		return errors.Wrapf(ErrInvalidAccountData, "owners: %v", err)
	}
	if len(data) < offset+8+1+4 {
		return ErrInvalidAccountData
	}
	binary.GetUint64(data[offset:], &obj.Threshold, &offset)
	binary.GetUint8(data[offset:], &obj.Nonce, &offset)
	binary.GetUint32(data[offset:], &obj.OwnerSetSeqno, &offset)

	return nil
}

func (obj *MultisigAccount) String() string {
	owners := make([]string, len(obj.Owners))
	for i, owner := range obj.Owners {
		owners[i] = base58.Encode(owner)
	}

	return fmt.Sprintf(
		"Multisig{owners=[%s],threshold=%d,nonce=%d,owner_set_seqno=%d}",
		strings.Join(owners, ","),
		obj.Threshold,
		obj.Nonce,
		obj.OwnerSetSeqno,
	)
}

// UnmarshalMultisigAccount decodes the data of an on-chain multisig account.
func UnmarshalMultisigAccount(data []byte) (*MultisigAccount, error) {
	var account MultisigAccount
	if err := account.Unmarshal(data); err != nil {
		return nil, err
	}
	return &account, nil
}

// Marshal encodes the account the way the program stores it, zero padded to
// MultisigAccountSize.
func (obj *MultisigAccount) Marshal() []byte {
	var offset int

	data := make([]byte, MultisigAccountSize)
	putDiscriminator(data, MultisigAccountDiscriminator, &offset)
	binary.PutKeyVec(data[offset:], obj.Owners, &offset)
	binary.PutUint64(data[offset:], obj.Threshold, &offset)
	binary.PutUint8(data[offset:], obj.Nonce, &offset)
	binary.PutUint32(data[offset:], obj.OwnerSetSeqno, &offset)

	return data
}
