package contract

import (
	"context"
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"verification/model"
)

// InitializeEvent creates the event record for eventID with the caller as its authority.
// requirementsJSON is a JSON array of {"requirementType", "config"} objects, or empty.
func (c *VerificationContract) InitializeEvent(ctx contractapi.TransactionContextInterface, eventID string, maxWinners uint32, requirementsJSON string) (*model.EventView, error) {
	logger.Infof("Chaincode Call: InitializeEvent for '%s'", eventID)

	requirements, err := parseRequirements(requirementsJSON)
	if err != nil {
		return nil, fmt.Errorf("InitializeEvent: %w", err)
	}
	caller, _, err := NewIdentityResolver(ctx).Resolve()
	if err != nil {
		return nil, fmt.Errorf("InitializeEvent: failed to resolve caller: %w", err)
	}

	event, addr, err := c.registryFor(ctx).InitializeEvent(context.Background(), caller, eventID, maxWinners, requirements)
	if err != nil {
		return nil, err
	}

	view := model.NewEventView(addr, event)
	emitRegistryEvent(ctx, eventInitialized, caller, map[string]interface{}{
		"event":      view.Address,
		"eventId":    view.EventID,
		"maxWinners": view.MaxWinners,
	})
	return view, nil
}

// CloseEvent stops new registrations on an event. Only its authority may close it.
func (c *VerificationContract) CloseEvent(ctx contractapi.TransactionContextInterface, eventAddress string) (*model.EventView, error) {
	logger.Infof("Chaincode Call: CloseEvent for '%s'", eventAddress)

	eventAddr, err := parseAddressArg(eventAddress, "eventAddress")
	if err != nil {
		return nil, fmt.Errorf("CloseEvent: %w", err)
	}
	caller, _, err := NewIdentityResolver(ctx).Resolve()
	if err != nil {
		return nil, fmt.Errorf("CloseEvent: failed to resolve caller: %w", err)
	}

	event, err := c.registryFor(ctx).CloseEvent(context.Background(), caller, eventAddr)
	if err != nil {
		return nil, err
	}

	view := model.NewEventView(eventAddr, event)
	emitRegistryEvent(ctx, eventClosed, caller, map[string]interface{}{
		"event":   view.Address,
		"eventId": view.EventID,
	})
	return view, nil
}
