package evm

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseSignature(t *testing.T) {
	t.Run("correctly splits a 65-byte signature", func(t *testing.T) {
		sig := "0x" +
			strings.Repeat("aa", 32) + // r
			strings.Repeat("bb", 32) + // s
			"1b" // v = 27

		parsed, err := ParseSignature(sig)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if parsed.V != 27 {
			t.Errorf("expected v=27, got %d", parsed.V)
		}
		for _, b := range parsed.R {
			if b != 0xaa {
				t.Errorf("expected r bytes to be 0xaa, got %x", b)
				break
			}
		}
		for _, b := range parsed.S {
			if b != 0xbb {
				t.Errorf("expected s bytes to be 0xbb, got %x", b)
				break
			}
		}
		if parsed.Hex() != sig {
			t.Errorf("round trip mismatch: %s", parsed.Hex())
		}
	})

	t.Run("normalizes v of 0/1", func(t *testing.T) {
		parsed, err := ParseSignature("0x" + strings.Repeat("11", 64) + "01")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if parsed.V != 28 {
			t.Errorf("expected v=28, got %d", parsed.V)
		}
	})

	t.Run("rejects signature that is not 65 bytes", func(t *testing.T) {
		if _, err := ParseSignature("0xaabb"); err == nil {
			t.Fatal("expected error for short signature")
		}
	})
}

func TestSignatureJSON(t *testing.T) {
	raw := "0x" + strings.Repeat("01", 32) + strings.Repeat("02", 32) + "1c"
	sig, err := ParseSignature(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("object form", func(t *testing.T) {
		data, err := json.Marshal(sig)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var decoded Signature
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if decoded != sig {
			t.Errorf("expected %+v, got %+v", sig, decoded)
		}
	})

	t.Run("hex string form", func(t *testing.T) {
		var decoded Signature
		if err := json.Unmarshal([]byte(`"`+raw+`"`), &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if decoded != sig {
			t.Errorf("expected %+v, got %+v", sig, decoded)
		}
	})
}

func TestParseUint256(t *testing.T) {
	if _, err := ParseUint256("-1"); err == nil {
		t.Error("expected error for negative")
	}
	if _, err := ParseUint256("abc"); err == nil {
		t.Error("expected error for non-numeric")
	}
	if _, err := ParseUint256(MaxUint256().String() + "0"); err == nil {
		t.Error("expected error for overflow")
	}
	v, err := ParseUint256("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Cmp(MaxUint256()) != 0 {
		t.Error("expected max uint256")
	}
}

func TestParseAddress(t *testing.T) {
	if _, err := ParseAddress("invalid"); err == nil {
		t.Error("expected error for bad address")
	}
	addr, err := ParseAddress("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != hardhatAddr0 {
		t.Errorf("expected %s, got %s", hardhatAddr0.Hex(), addr.Hex())
	}
}
