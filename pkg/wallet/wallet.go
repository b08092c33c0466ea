// Package wallet loads or creates the agent's signing identity.
package wallet

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// Identity is a secp256k1 key pair and its ledger address.
type Identity struct {
	Key     *ecdsa.PrivateKey
	Address string

	// Generated is true when the key was created in this process and will not
	// survive a restart.
	Generated bool
}

// Load parses a hex encoded private key, with or without a 0x prefix.
func Load(hexKey string) (*Identity, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return fromKey(key, false), nil
}

// Generate creates a fresh identity.
func Generate() (*Identity, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating private key: %w", err)
	}
	return fromKey(key, true), nil
}

// LoadOrGenerate loads hexKey, falling back to a fresh identity when hexKey is
// empty or cannot be parsed. Only a failure to generate is returned.
func LoadOrGenerate(hexKey string, logger *zap.Logger) (*Identity, error) {
	if strings.TrimSpace(hexKey) != "" {
		id, err := Load(hexKey)
		if err == nil {
			return id, nil
		}
		logger.Warn("configured agent key is invalid, generating an ephemeral one", zap.Error(err))
	}

	id, err := Generate()
	if err != nil {
		return nil, err
	}
	logger.Info("using ephemeral agent identity", zap.String("address", id.Address))
	return id, nil
}

// HexKey returns the private key hex encoded without a prefix.
func (i *Identity) HexKey() string {
	return hex.EncodeToString(crypto.FromECDSA(i.Key))
}

func fromKey(key *ecdsa.PrivateKey, generated bool) *Identity {
	return &Identity{
		Key:       key,
		Address:   crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Generated: generated,
	}
}
