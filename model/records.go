// File: model/records.go
package model

import (
	"time"

	"verification/registry"
)

// Requirement mirrors registry.Requirement for ledger clients.
type Requirement struct {
	RequirementType string `json:"requirementType"`
	Config          string `json:"config"`
}

// EventView is the client-facing form of an event record. Addresses are base58.
type EventView struct {
	Address      string        `json:"address"`
	Authority    string        `json:"authority"`
	EventID      string        `json:"eventId"`
	MaxWinners   uint32        `json:"maxWinners"`
	Requirements []Requirement `json:"requirements"` // never null
	Active       bool          `json:"active"`
	Bump         uint8         `json:"bump"`
}

// EntryView is the client-facing form of an entry record.
type EntryView struct {
	Address  string `json:"address"`
	Event    string `json:"event"`
	Wallet   string `json:"wallet"`
	Verified bool   `json:"verified"`
	Valid    bool   `json:"valid"`
}

// EntryHistoryRecord is one committed state of an entry, oldest to newest as the ledger
// returns them.
type EntryHistoryRecord struct {
	TxID      string     `json:"txId"`
	Timestamp time.Time  `json:"timestamp"`
	IsDelete  bool       `json:"isDelete"`
	Entry     *EntryView `json:"entry,omitempty"` // nil for deletes and undecodable values
}

// AddressDerivation is a derived record address with the bump that produced it.
type AddressDerivation struct {
	Address string `json:"address"`
	Bump    uint8  `json:"bump"`
}

// CallerIdentity describes how the invoking client maps to a registry identity.
type CallerIdentity struct {
	Address string `json:"address"`
	MSPID   string `json:"mspId"`
	ID      string `json:"id"`
	// KeySource is "certificate" when Address is the certificate's ed25519 key, otherwise
	// "derived".
	KeySource string `json:"keySource"`
}

// TransactionResult reports a relayed signed transaction.
type TransactionResult struct {
	Op     string     `json:"op"`
	Signer string     `json:"signer"`
	Event  *EventView `json:"event,omitempty"`
	Entry  *EntryView `json:"entry,omitempty"`
}

func NewEventView(addr registry.Address, e *registry.Event) *EventView {
	reqs := make([]Requirement, 0, len(e.Requirements))
	for _, r := range e.Requirements {
		reqs = append(reqs, Requirement{RequirementType: r.RequirementType, Config: r.Config})
	}
	return &EventView{
		Address:      addr.String(),
		Authority:    e.Authority.String(),
		EventID:      e.EventID,
		MaxWinners:   e.MaxWinners,
		Requirements: reqs,
		Active:       e.Active,
		Bump:         e.Bump,
	}
}

func NewEntryView(addr registry.Address, e *registry.Entry) *EntryView {
	return &EntryView{
		Address:  addr.String(),
		Event:    e.Event.String(),
		Wallet:   e.Wallet.String(),
		Verified: e.Verified,
		Valid:    e.Valid,
	}
}

// RegistryRequirements converts client requirements into registry form.
func RegistryRequirements(reqs []Requirement) []registry.Requirement {
	if len(reqs) == 0 {
		return nil
	}
	out := make([]registry.Requirement, len(reqs))
	for i, r := range reqs {
		out[i] = registry.Requirement{RequirementType: r.RequirementType, Config: r.Config}
	}
	return out
}
