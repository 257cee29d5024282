package contract

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"verification/model"
	"verification/registry"
)

const (
	keySourceCertificate = "certificate"
	keySourceDerived     = "derived"
)

// IdentityResolver maps the invoking client to the registry identity it signs as.
type IdentityResolver struct {
	Ctx contractapi.TransactionContextInterface
}

func NewIdentityResolver(ctx contractapi.TransactionContextInterface) *IdentityResolver {
	return &IdentityResolver{Ctx: ctx}
}

func isValidX509ID(id string) bool {
	return strings.HasPrefix(id, "x509::") || strings.HasPrefix(id, "eDUwOTo6") // "eDUwOTo6" is "x509::" base64 encoded
}

// GetCurrentIdentityFullID retrieves the full X.509 ID of the current transactor.
func (ir *IdentityResolver) GetCurrentIdentityFullID() (string, error) {
	clientIdentity := ir.Ctx.GetClientIdentity()
	if clientIdentity == nil {
		return "", errors.New("client identity is nil from context")
	}
	id, err := clientIdentity.GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client identity ID from context: %w", err)
	}
	if id == "" {
		return "", errors.New("client identity ID from context is empty")
	}
	if !isValidX509ID(id) {
		logger.Warningf("Current client ID '%s' does not appear to be a standard X.509 format.", id)
	}
	return id, nil
}

// Resolve returns the caller's registry address. Clients enrolled with an ed25519
// certificate act as that key; everyone else gets a stable address hashed from their
// MSP and client IDs.
func (ir *IdentityResolver) Resolve() (registry.Address, *model.CallerIdentity, error) {
	fullID, err := ir.GetCurrentIdentityFullID()
	if err != nil {
		return registry.ZeroAddress, nil, err
	}
	clientIdentity := ir.Ctx.GetClientIdentity()
	mspID, err := clientIdentity.GetMSPID()
	if err != nil {
		return registry.ZeroAddress, nil, fmt.Errorf("failed to get client MSPID: %w", err)
	}

	info := &model.CallerIdentity{MSPID: mspID, ID: fullID}
	cert, err := clientIdentity.GetX509Certificate()
	if err != nil {
		logger.Debugf("No X.509 certificate for caller '%s': %v", fullID, err)
	}
	if cert != nil {
		if pub, ok := cert.PublicKey.(ed25519.PublicKey); ok {
			addr, err := registry.AddressFromBytes(pub)
			if err == nil {
				info.Address = addr.String()
				info.KeySource = keySourceCertificate
				return addr, info, nil
			}
		}
	}

	addr := registry.Address(sha256.Sum256([]byte(mspID + "::" + fullID)))
	info.Address = addr.String()
	info.KeySource = keySourceDerived
	return addr, info, nil
}
