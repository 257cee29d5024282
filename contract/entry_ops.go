package contract

import (
	"context"
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"verification/model"
)

// RegisterWallet records the caller as a participant of the event at eventAddress.
func (c *VerificationContract) RegisterWallet(ctx contractapi.TransactionContextInterface, eventAddress string) (*model.EntryView, error) {
	logger.Infof("Chaincode Call: RegisterWallet for event '%s'", eventAddress)

	eventAddr, err := parseAddressArg(eventAddress, "eventAddress")
	if err != nil {
		return nil, fmt.Errorf("RegisterWallet: %w", err)
	}
	caller, _, err := NewIdentityResolver(ctx).Resolve()
	if err != nil {
		return nil, fmt.Errorf("RegisterWallet: failed to resolve caller: %w", err)
	}

	entry, addr, err := c.registryFor(ctx).RegisterWallet(context.Background(), caller, eventAddr)
	if err != nil {
		return nil, err
	}

	view := model.NewEntryView(addr, entry)
	emitRegistryEvent(ctx, walletRegistered, caller, map[string]interface{}{
		"event":  view.Event,
		"entry":  view.Address,
		"wallet": view.Wallet,
	})
	return view, nil
}

// MarkValid records that the entry passed the event's requirements.
func (c *VerificationContract) MarkValid(ctx contractapi.TransactionContextInterface, eventAddress, entryAddress string) (*model.EntryView, error) {
	logger.Infof("Chaincode Call: MarkValid for entry '%s'", entryAddress)
	return c.setValidity(ctx, "MarkValid", eventAddress, entryAddress, true)
}

// MarkInvalid records that the entry failed the event's requirements.
func (c *VerificationContract) MarkInvalid(ctx contractapi.TransactionContextInterface, eventAddress, entryAddress string) (*model.EntryView, error) {
	logger.Infof("Chaincode Call: MarkInvalid for entry '%s'", entryAddress)
	return c.setValidity(ctx, "MarkInvalid", eventAddress, entryAddress, false)
}

func (c *VerificationContract) setValidity(ctx contractapi.TransactionContextInterface, op, eventAddress, entryAddress string, valid bool) (*model.EntryView, error) {
	eventAddr, err := parseAddressArg(eventAddress, "eventAddress")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	entryAddr, err := parseAddressArg(entryAddress, "entryAddress")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	caller, _, err := NewIdentityResolver(ctx).Resolve()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve caller: %w", op, err)
	}

	reg := c.registryFor(ctx)
	markFn, eventName := reg.MarkInvalid, entryMarkedInvalid
	if valid {
		markFn, eventName = reg.MarkValid, entryMarkedValid
	}
	entry, err := markFn(context.Background(), caller, eventAddr, entryAddr)
	if err != nil {
		return nil, err
	}

	view := model.NewEntryView(entryAddr, entry)
	emitRegistryEvent(ctx, eventName, caller, map[string]interface{}{
		"event":  view.Event,
		"entry":  view.Address,
		"wallet": view.Wallet,
		"valid":  view.Valid,
	})
	return view, nil
}
