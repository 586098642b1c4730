package response

import (
	"time"

	"parkwise/internal/usecase/commands"
	"parkwise/internal/usecase/queries"

	"github.com/jinzhu/copier"
)

type SlotResponse struct {
	ID          string     `json:"id"`
	Number      string     `json:"slot_number"`
	Status      string     `json:"status"`
	Occupied    bool       `json:"occupied"`
	Reserved    bool       `json:"reserved"`
	HolderEmail string     `json:"holder_email,omitempty"`
	ReservedAt  *time.Time `json:"reserved_at,omitempty"`
}

type PlaceholderResponse struct {
	Label  string `json:"label"`
	Status string `json:"status"`
}

type LotResponse struct {
	Slots        []SlotResponse        `json:"slots"`
	Maintenance  []PlaceholderResponse `json:"maintenance"`
	Health       string                `json:"health"`
	Reservations []SlotResponse        `json:"reservations"`
}

type ReservationResponse struct {
	Slot               SlotResponse `json:"slot"`
	ConfirmationNumber string       `json:"confirmation_number"`
	CodeURL            string       `json:"code_url"`
}

func FromLotView(v *queries.LotView) (*LotResponse, error) {
	res := LotResponse{
		Slots:        []SlotResponse{},
		Maintenance:  []PlaceholderResponse{},
		Reservations: []SlotResponse{},
	}
	if err := copier.Copy(&res, v); err != nil {
		return nil, err
	}
	return &res, nil
}

func FromSlotViews(views []queries.SlotView) ([]SlotResponse, error) {
	res := make([]SlotResponse, 0, len(views))
	if err := copier.Copy(&res, &views); err != nil {
		return nil, err
	}
	return res, nil
}

func FromReserveResult(r *commands.ReserveResult) (*ReservationResponse, error) {
	res := ReservationResponse{
		ConfirmationNumber: r.ConfirmationNumber,
		CodeURL:            r.CodeURL,
	}
	view := queries.ToSlotView(r.Slot)
	if err := copier.Copy(&res.Slot, &view); err != nil {
		return nil, err
	}
	return &res, nil
}
