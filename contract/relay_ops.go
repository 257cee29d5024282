package contract

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"verification/model"
	"verification/program"
)

var relayedEventNames = map[string]string{
	program.OpNameInitializeEvent: eventInitialized,
	program.OpNameRegisterWallet:  walletRegistered,
	program.OpNameMarkValid:       entryMarkedValid,
	program.OpNameMarkInvalid:     entryMarkedInvalid,
	program.OpNameCloseEvent:      eventClosed,
}

// SubmitTransaction runs an ed25519-signed registry transaction. The Fabric caller only
// relays it: authority and wallet ownership come from the transaction signature, so
// holders of wallet keys can act without a Fabric identity of their own.
func (c *VerificationContract) SubmitTransaction(ctx contractapi.TransactionContextInterface, txBase64 string) (*model.TransactionResult, error) {
	logger.Infof("Chaincode Call: SubmitTransaction (%d bytes)", len(txBase64))

	if err := validateRequiredString(txBase64, "txBase64", maxRelayedTxLength); err != nil {
		return nil, fmt.Errorf("SubmitTransaction: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return nil, fmt.Errorf("SubmitTransaction: invalid base64: %w", err)
	}
	tx, err := program.DecodeTransaction(raw)
	if err != nil {
		return nil, fmt.Errorf("SubmitTransaction: %w", err)
	}

	res, err := program.NewProcessor(c.registryFor(ctx)).Process(context.Background(), tx)
	if err != nil {
		return nil, err
	}

	result := &model.TransactionResult{Op: res.Op, Signer: res.Signer.String()}
	payload := map[string]interface{}{
		"op":    res.Op,
		"event": res.Event.String(),
	}
	if res.EventRecord != nil {
		result.Event = model.NewEventView(res.Event, res.EventRecord)
	}
	if res.EntryRecord != nil {
		result.Entry = model.NewEntryView(res.Entry, res.EntryRecord)
		payload["entry"] = result.Entry.Address
		payload["valid"] = result.Entry.Valid
	}
	payload["relayed"] = true
	emitRegistryEvent(ctx, relayedEventNames[res.Op], res.Signer, payload)
	return result, nil
}
