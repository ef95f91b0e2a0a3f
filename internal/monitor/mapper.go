package monitor

import (
	"math/big"

	"github.com/smartdevs17/event-indexer/internal/models"
	"github.com/smartdevs17/event-indexer/pkg/utils"
)

// EventMapper converts a decoded event into its persisted record
type EventMapper func(models.DecodedEvent) (*models.EventRecord, error)

// MapEvent builds the flat record for ev. Only the kind-relevant fields are
// set and the id is left for the sink to assign.
func MapEvent(ev models.DecodedEvent) (*models.EventRecord, error) {
	switch e := ev.(type) {
	case models.DepositEvent:
		amount, err := copyAmount(e.Amount)
		if err != nil {
			return nil, err
		}
		from := utils.AddressString(e.From)
		return &models.EventRecord{
			EventType:   models.EventTypeDeposit,
			Amount:      amount,
			FromAddress: &from,
		}, nil

	case models.WithdrawEvent:
		amount, err := copyAmount(e.Amount)
		if err != nil {
			return nil, err
		}
		to := utils.AddressString(e.To)
		return &models.EventRecord{
			EventType: models.EventTypeWithdraw,
			Amount:    amount,
			ToAddress: &to,
		}, nil

	case models.OwnershipTransferredEvent:
		previous := utils.AddressString(e.PreviousOwner)
		next := utils.AddressString(e.NewOwner)
		return &models.EventRecord{
			EventType:     models.EventTypeOwnershipTransferred,
			PreviousOwner: &previous,
			NewOwner:      &next,
		}, nil
	}

	kind := "<nil>"
	if ev != nil {
		kind = ev.Kind().String()
	}
	return nil, utils.NewAppError(utils.ErrCodeUnknownEventKind, "No mapping for decoded event", kind)
}

func copyAmount(amount *big.Int) (*big.Int, error) {
	if amount == nil {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "Decoded event has no amount")
	}
	return new(big.Int).Set(amount), nil
}
