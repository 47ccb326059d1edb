package standx

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const testKey = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

func TestNewSignerDerivesAddress(t *testing.T) {
	signer, err := NewSigner(testKey)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	if got := signer.Address().Hex(); got != "0x70997970C51812dc3A010C7d01b50e0d17dc79C8" {
		t.Fatalf("unexpected address: %s", got)
	}
}

func TestNewSignerRejectsEmptyKey(t *testing.T) {
	if _, err := NewSigner("  "); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestSignMessageRecoverable(t *testing.T) {
	signer, err := NewSigner(testKey)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	message := "login to standx: nonce 12345"
	sigHex, err := signer.SignMessage(message)
	if err != nil {
		t.Fatalf("sign message: %v", err)
	}
	if !strings.HasPrefix(sigHex, "0x") {
		t.Fatalf("expected hex signature, got %q", sigHex)
	}
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("expected 65-byte signature, got %d", len(sig))
	}
	if sig[64] != 27 && sig[64] != 28 {
		t.Fatalf("expected recovery id 27 or 28, got %d", sig[64])
	}
	sig[64] -= 27
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		t.Fatalf("recover pubkey: %v", err)
	}
	if recovered := crypto.PubkeyToAddress(*pub); recovered != signer.Address() {
		t.Fatalf("recovered %s, want %s", recovered.Hex(), signer.Address().Hex())
	}
}
