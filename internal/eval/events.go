package eval

import (
	"encoding/hex"

	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// EventType names an emitted event.
type EventType string

const (
	PrintEvent       EventType = "print_event"
	STXTransferEvent EventType = "stx_transfer_event"
	STXBurnEvent     EventType = "stx_burn_event"
	FTTransferEvent  EventType = "ft_transfer_event"
	FTMintEvent      EventType = "ft_mint_event"
	FTBurnEvent      EventType = "ft_burn_event"
	NFTTransferEvent EventType = "nft_transfer_event"
	NFTMintEvent     EventType = "nft_mint_event"
	NFTBurnEvent     EventType = "nft_burn_event"
)

// Event is one entry of a call's ordered event log.
type Event struct {
	Type      EventType
	Contract  string // Emitting contract; empty for a plain STX transfer
	Asset     string // "<contract>::<token>" for token events
	Sender    string
	Recipient string
	Amount    string      // Decimal amount of fungible events
	Value     value.Value // Print payload or NFT identifier
	Memo      []byte
}

// Canonical returns the event as a canonical JSON object.
func (e Event) Canonical() map[string]any {
	m := map[string]any{"type": string(e.Type)}
	set := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	set("contract", e.Contract)
	set("asset", e.Asset)
	set("sender", e.Sender)
	set("recipient", e.Recipient)
	set("amount", e.Amount)
	if e.Value != nil {
		m["value"] = e.Value.String()
	}
	if len(e.Memo) > 0 {
		m["memo"] = "0x" + hex.EncodeToString(e.Memo)
	}
	return m
}
