package evm

import (
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
)

// EthSignedMessageHash returns keccak256("\x19Ethereum Signed Message:\n" + len(message) + message),
// the digest produced by personal_sign / eth_sign.
func EthSignedMessageHash(message []byte) []byte {
	return accounts.TextHash(message)
}

// RecoverPersonal recovers the address that personal-signed message.
func RecoverPersonal(message []byte, sig Signature) (common.Address, error) {
	return ECDSARecoverer{}.RecoverIdentity(EthSignedMessageHash(message), sig)
}
