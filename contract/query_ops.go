package contract

import (
	"context"
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"verification/model"
	"verification/registry"
)

// GetEvent returns the event record at eventAddress.
func (c *VerificationContract) GetEvent(ctx contractapi.TransactionContextInterface, eventAddress string) (*model.EventView, error) {
	logger.Debugf("Chaincode Call: GetEvent for '%s'", eventAddress)
	eventAddr, err := parseAddressArg(eventAddress, "eventAddress")
	if err != nil {
		return nil, fmt.Errorf("GetEvent: %w", err)
	}
	event, err := c.registryFor(ctx).Event(context.Background(), eventAddr)
	if err != nil {
		return nil, fmt.Errorf("GetEvent: %w", err)
	}
	return model.NewEventView(eventAddr, event), nil
}

// GetEventByID derives the event address for eventID and returns its record.
func (c *VerificationContract) GetEventByID(ctx contractapi.TransactionContextInterface, eventID string) (*model.EventView, error) {
	logger.Debugf("Chaincode Call: GetEventByID for '%s'", eventID)
	event, addr, err := c.registryFor(ctx).EventByID(context.Background(), eventID)
	if err != nil {
		return nil, fmt.Errorf("GetEventByID: %w", err)
	}
	return model.NewEventView(addr, event), nil
}

// GetEntry returns the entry record at entryAddress.
func (c *VerificationContract) GetEntry(ctx contractapi.TransactionContextInterface, entryAddress string) (*model.EntryView, error) {
	logger.Debugf("Chaincode Call: GetEntry for '%s'", entryAddress)
	entryAddr, err := parseAddressArg(entryAddress, "entryAddress")
	if err != nil {
		return nil, fmt.Errorf("GetEntry: %w", err)
	}
	entry, err := c.registryFor(ctx).Entry(context.Background(), entryAddr)
	if err != nil {
		return nil, fmt.Errorf("GetEntry: %w", err)
	}
	return model.NewEntryView(entryAddr, entry), nil
}

// GetWalletEntry returns the entry of wallet on the event at eventAddress.
func (c *VerificationContract) GetWalletEntry(ctx contractapi.TransactionContextInterface, eventAddress, wallet string) (*model.EntryView, error) {
	logger.Debugf("Chaincode Call: GetWalletEntry for wallet '%s' on event '%s'", wallet, eventAddress)
	eventAddr, err := parseAddressArg(eventAddress, "eventAddress")
	if err != nil {
		return nil, fmt.Errorf("GetWalletEntry: %w", err)
	}
	walletAddr, err := parseAddressArg(wallet, "wallet")
	if err != nil {
		return nil, fmt.Errorf("GetWalletEntry: %w", err)
	}
	entry, addr, err := c.registryFor(ctx).EntryFor(context.Background(), eventAddr, walletAddr)
	if err != nil {
		return nil, fmt.Errorf("GetWalletEntry: %w", err)
	}
	return model.NewEntryView(addr, entry), nil
}

// GetEventEntries lists every entry registered on the event, ordered by wallet.
func (c *VerificationContract) GetEventEntries(ctx contractapi.TransactionContextInterface, eventAddress string) ([]*model.EntryView, error) {
	logger.Debugf("Chaincode Call: GetEventEntries for '%s'", eventAddress)
	eventAddr, err := parseAddressArg(eventAddress, "eventAddress")
	if err != nil {
		return nil, fmt.Errorf("GetEventEntries: %w", err)
	}
	records, err := c.registryFor(ctx).Entries(context.Background(), eventAddr)
	if err != nil {
		return nil, fmt.Errorf("GetEventEntries: %w", err)
	}
	views := []*model.EntryView{}
	for i := range records {
		views = append(views, model.NewEntryView(records[i].Address, &records[i].Entry))
	}
	logger.Infof("GetEventEntries: Returning %d entries for event '%s'", len(views), eventAddress)
	return views, nil
}

// GetEntryHistory returns every committed state of an entry, showing how its validity
// changed over time.
func (c *VerificationContract) GetEntryHistory(ctx contractapi.TransactionContextInterface, entryAddress string) ([]model.EntryHistoryRecord, error) {
	logger.Debugf("Chaincode Call: GetEntryHistory for '%s'", entryAddress)
	entryAddr, err := parseAddressArg(entryAddress, "entryAddress")
	if err != nil {
		return nil, fmt.Errorf("GetEntryHistory: %w", err)
	}
	key, err := newLedgerStore(ctx.GetStub()).recordKey(entryAddr)
	if err != nil {
		return nil, fmt.Errorf("GetEntryHistory: failed to create record key: %w", err)
	}

	historyIter, err := ctx.GetStub().GetHistoryForKey(key)
	if err != nil {
		return nil, fmt.Errorf("GetEntryHistory: failed to get history for entry '%s': %w", entryAddress, err)
	}
	defer historyIter.Close()

	history := []model.EntryHistoryRecord{}
	for historyIter.HasNext() {
		historyItem, iterErr := historyIter.Next()
		if iterErr != nil {
			logger.Warningf("GetEntryHistory: Error iterating history for '%s': %v. Skipping entry.", entryAddress, iterErr)
			continue
		}
		record := model.EntryHistoryRecord{
			TxID:     historyItem.TxId,
			IsDelete: historyItem.IsDelete,
		}
		if historyItem.Timestamp != nil {
			record.Timestamp = historyItem.Timestamp.AsTime()
		}
		if !historyItem.IsDelete {
			if entry, err := registry.UnmarshalEntry(historyItem.Value); err == nil {
				record.Entry = model.NewEntryView(entryAddr, entry)
			} else {
				logger.Warningf("GetEntryHistory: Undecodable value in tx '%s' for '%s': %v", historyItem.TxId, entryAddress, err)
			}
		}
		history = append(history, record)
	}
	return history, nil
}

// DeriveEventAddress returns the address an event with eventID has or would have.
func (c *VerificationContract) DeriveEventAddress(ctx contractapi.TransactionContextInterface, eventID string) (*model.AddressDerivation, error) {
	addr, bump, err := registry.EventAddress(c.programID, eventID)
	if err != nil {
		return nil, fmt.Errorf("DeriveEventAddress: %w", err)
	}
	return &model.AddressDerivation{Address: addr.String(), Bump: bump}, nil
}

// DeriveEntryAddress returns the address of wallet's entry on the event.
func (c *VerificationContract) DeriveEntryAddress(ctx contractapi.TransactionContextInterface, eventAddress, wallet string) (*model.AddressDerivation, error) {
	eventAddr, err := parseAddressArg(eventAddress, "eventAddress")
	if err != nil {
		return nil, fmt.Errorf("DeriveEntryAddress: %w", err)
	}
	walletAddr, err := parseAddressArg(wallet, "wallet")
	if err != nil {
		return nil, fmt.Errorf("DeriveEntryAddress: %w", err)
	}
	addr, bump, err := registry.EntryAddress(c.programID, eventAddr, walletAddr)
	if err != nil {
		return nil, fmt.Errorf("DeriveEntryAddress: %w", err)
	}
	return &model.AddressDerivation{Address: addr.String(), Bump: bump}, nil
}

// GetCallerIdentity reports the registry address the caller acts as.
func (c *VerificationContract) GetCallerIdentity(ctx contractapi.TransactionContextInterface) (*model.CallerIdentity, error) {
	_, info, err := NewIdentityResolver(ctx).Resolve()
	if err != nil {
		return nil, fmt.Errorf("GetCallerIdentity: %w", err)
	}
	return info, nil
}
