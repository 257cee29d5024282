package contract

import (
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"

	"verification/registry"
)

var logger = flogging.MustGetLogger("verification.contract")

// Chaincode event names.
const (
	eventInitialized   = "EventInitialized"
	walletRegistered   = "WalletRegistered"
	entryMarkedValid   = "EntryMarkedValid"
	entryMarkedInvalid = "EntryMarkedInvalid"
	eventClosed        = "EventClosed"
)

// Limits on raw transaction arguments, checked before decoding.
const (
	maxRequirementsJSONLength = 4096
	maxRelayedTxLength        = 8192
)

// VerificationContract exposes the verification registry as chaincode.
// @contract:VerificationContract
type VerificationContract struct {
	contractapi.Contract
	programID registry.Address
}

// NewVerificationContract returns a contract whose records are addressed under programID.
func NewVerificationContract(programID registry.Address) *VerificationContract {
	return &VerificationContract{programID: programID}
}

// Instantiate is called during chaincode instantiation.
func (c *VerificationContract) Instantiate(ctx contractapi.TransactionContextInterface) {
	logger.Infof("VerificationContract instantiated with program ID %s", c.programID)
}

func (c *VerificationContract) registryFor(ctx contractapi.TransactionContextInterface) *registry.Registry {
	return registry.New(newLedgerStore(ctx.GetStub()), c.programID)
}
