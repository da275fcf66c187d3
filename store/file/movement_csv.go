package file

import (
	"fmt"

	"github.com/warp/pocket-ledger/finance"
	"github.com/warp/pocket-ledger/store"
	"github.com/warp/pocket-ledger/store/codec"
)

// MovementColumns is the fixed column order of movements.csv.
var MovementColumns = []string{"type", "date", "amount", "description", "origin", "destination", "tags"}

// MovementCodec encodes movements as movements.csv rows.
// Files written with a subset of the columns still load: only amount is required.
func MovementCodec() codec.CSV[finance.Movement] {
	return codec.CSV[finance.Movement]{
		Header:   MovementColumns,
		Required: []string{"amount"},
		Encode:   encodeMovement,
		Decode:   decodeMovement,
	}
}

func encodeMovement(m finance.Movement) ([]string, error) {
	tags, err := store.JoinTags(m.Tags)
	if err != nil {
		return nil, err
	}
	return []string{
		string(m.Type),
		m.Date,
		m.Amount.String(),
		m.Description,
		m.Origin,
		m.Destination,
		tags,
	}, nil
}

func decodeMovement(r codec.Row) (finance.Movement, error) {
	mt, err := finance.ParseMovementType(r["type"])
	if err != nil {
		return finance.Movement{}, err
	}
	if r["amount"] == "" {
		return finance.Movement{}, fmt.Errorf("amount is empty")
	}
	amount, err := finance.ParseAmount(r["amount"])
	if err != nil {
		return finance.Movement{}, err
	}
	return finance.Movement{
		Amount:      amount,
		Type:        mt,
		Description: r["description"],
		Origin:      r["origin"],
		Destination: r["destination"],
		Date:        r["date"],
		Tags:        store.SplitTags(r["tags"]),
	}, nil
}
