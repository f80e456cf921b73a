package evm

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// First hardhat development account.
const hardhatKey0 = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var hardhatAddr0 = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func signDigest(t *testing.T, digest []byte) Signature {
	t.Helper()
	key, err := crypto.HexToECDSA(hardhatKey0)
	if err != nil {
		t.Fatalf("bad key: %v", err)
	}
	raw, err := crypto.Sign(digest, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig, err := SignatureFromBytes(raw)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	return sig
}

func TestECDSARecoverer(t *testing.T) {
	digest, err := HashPermit(testPermit(), testDomain())
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	t.Run("Recovers the signer", func(t *testing.T) {
		sig := signDigest(t, digest)
		if sig.V != 27 && sig.V != 28 {
			t.Fatalf("Expected v in {27,28}, got %d", sig.V)
		}

		addr, err := ECDSARecoverer{}.RecoverIdentity(digest, sig)
		if err != nil {
			t.Fatalf("recover: %v", err)
		}
		if addr != hardhatAddr0 {
			t.Errorf("Expected %s, got %s", hardhatAddr0.Hex(), addr.Hex())
		}
	})

	t.Run("Tampered digest recovers someone else", func(t *testing.T) {
		sig := signDigest(t, digest)
		other := append([]byte{}, digest...)
		other[0] ^= 0xff

		addr, err := ECDSARecoverer{}.RecoverIdentity(other, sig)
		if err == nil && addr == hardhatAddr0 {
			t.Error("Tampered digest must not recover the original signer")
		}
	})

	t.Run("Rejects bad v", func(t *testing.T) {
		sig := signDigest(t, digest)
		sig.V = 30

		_, err := ECDSARecoverer{}.RecoverIdentity(digest, sig)
		if !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("Expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("Rejects zero signature", func(t *testing.T) {
		_, err := ECDSARecoverer{}.RecoverIdentity(digest, Signature{V: 27})
		if !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("Expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("Rejects short digest", func(t *testing.T) {
		sig := signDigest(t, digest)
		_, err := ECDSARecoverer{}.RecoverIdentity(digest[:31], sig)
		if !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("Expected ErrInvalidSignature, got %v", err)
		}
	})
}

func TestRecoverPersonal(t *testing.T) {
	message := []byte("hello store")
	sig := signDigest(t, EthSignedMessageHash(message))

	addr, err := RecoverPersonal(message, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if addr != hardhatAddr0 {
		t.Errorf("Expected %s, got %s", hardhatAddr0.Hex(), addr.Hex())
	}
}
