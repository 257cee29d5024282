package contract

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"verification/model"
	"verification/registry"
)

// getCurrentTxTimestamp retrieves the current transaction timestamp from the stub.
func getCurrentTxTimestamp(ctx contractapi.TransactionContextInterface) (time.Time, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime(), nil
}

func validateRequiredString(input, field string, max int) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if len(input) > max {
		return fmt.Errorf("%s exceeds max length %d", field, max)
	}
	return nil
}

func parseAddressArg(input, field string) (registry.Address, error) {
	if err := validateRequiredString(input, field, 64); err != nil {
		return registry.ZeroAddress, err
	}
	addr, err := registry.ParseAddress(strings.TrimSpace(input))
	if err != nil {
		return registry.ZeroAddress, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

// parseRequirements decodes the requirementsJSON argument. An empty string means none.
func parseRequirements(requirementsJSON string) ([]registry.Requirement, error) {
	if strings.TrimSpace(requirementsJSON) == "" {
		return nil, nil
	}
	if len(requirementsJSON) > maxRequirementsJSONLength {
		return nil, fmt.Errorf("requirementsJSON exceeds max length %d", maxRequirementsJSONLength)
	}
	var reqs []model.Requirement
	if err := json.Unmarshal([]byte(requirementsJSON), &reqs); err != nil {
		return nil, fmt.Errorf("invalid requirementsJSON: %w", err)
	}
	return model.RegistryRequirements(reqs), nil
}

// emitRegistryEvent sends a chaincode event. Failures are logged, not returned; the
// state change stands without its notification.
func emitRegistryEvent(ctx contractapi.TransactionContextInterface, eventName string, actor registry.Address, payload map[string]interface{}) {
	body := map[string]interface{}{
		"actor": actor.String(),
		"txId":  ctx.GetStub().GetTxID(),
	}
	if ts, err := getCurrentTxTimestamp(ctx); err == nil {
		body["transactionTimestamp"] = ts.Format(time.RFC3339)
	}
	for k, v := range payload {
		body[k] = v
	}
	eventBytes, err := json.Marshal(body)
	if err != nil {
		logger.Warningf("emitRegistryEvent: Failed to marshal event payload for event '%s': %v", eventName, err)
		return
	}
	if errSet := ctx.GetStub().SetEvent(eventName, eventBytes); errSet != nil {
		logger.Warningf("emitRegistryEvent: Failed to set event '%s': %v", eventName, errSet)
	}
}
