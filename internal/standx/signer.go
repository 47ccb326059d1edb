package standx

import (
	"crypto/ecdsa"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer holds the wallet key used for the signature login flow. StandX
// authenticates a session by asking the wallet to personal-sign a server
// supplied message and exchanging the signature for a bearer token.
type Signer struct {
	privKey *ecdsa.PrivateKey
	address common.Address
}

func NewSigner(hexKey string) (*Signer, error) {
	clean := strings.TrimSpace(hexKey)
	if clean == "" {
		return nil, errors.New("private key is required")
	}
	clean = strings.TrimPrefix(clean, "0x")
	key, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, err
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	return &Signer{privKey: key, address: addr}, nil
}

func (s *Signer) Address() common.Address {
	return s.address
}

// SignMessage signs a login message with the EIP-191 personal-sign prefix
// and returns the 65-byte signature hex encoded, recovery id offset by 27.
func (s *Signer) SignMessage(message string) (string, error) {
	digest := accounts.TextHash([]byte(message))
	sig, err := crypto.Sign(digest, s.privKey)
	if err != nil {
		return "", err
	}
	if len(sig) != 65 {
		return "", errors.New("unexpected signature length")
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}
