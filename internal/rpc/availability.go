package rpc

import (
	"context"
	"log/slog"

	"github.com/leonletto/tellersim/internal/dispatch"
)

// AvailableTellersResponse is the reply to available_tellers.
type AvailableTellersResponse struct {
	Success          bool     `json:"success"`
	Availability     int      `json:"availability"`
	AvailableTellers []Teller `json:"available_tellers"`
	WaitTime         int      `json:"wait_time"`
}

// Teller is one teller offered to the terminal.
type Teller struct {
	ID     int64      `json:"id"`
	User   TellerUser `json:"user"`
	Skills []Skill    `json:"skills"`
}

// TellerUser is the account behind a teller.
type TellerUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}

// Skill is a teller capability, such as a spoken language.
type Skill struct {
	ID       int           `json:"id"`
	Category SkillCategory `json:"category"`
	Value    string        `json:"value"`
}

// SkillCategory groups skills.
type SkillCategory struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AvailabilityHandler answers liveness and staffing queries.
type AvailabilityHandler struct {
	mock   MockData
	logger *slog.Logger
}

// HandlePing handles AvailabilityController.ping.
func (h *AvailabilityHandler) HandlePing(ctx context.Context, call *dispatch.Call) (any, error) {
	h.logger.Info("ping received", "action", "ping", "conn", call.Conn.ID())
	return ack, nil
}

// HandleAvailableTellers handles AvailabilityController.available_tellers.
func (h *AvailabilityHandler) HandleAvailableTellers(ctx context.Context, call *dispatch.Call) (any, error) {
	h.logger.Info("available tellers requested", "action", "available_tellers", "conn", call.Conn.ID())

	language := func(id int, value string) Skill {
		return Skill{
			ID:       id,
			Category: SkillCategory{ID: id, Name: "Language", Description: "Language skills"},
			Value:    value,
		}
	}

	return AvailableTellersResponse{
		Success:      true,
		Availability: 1,
		AvailableTellers: []Teller{{
			ID: h.mock.TellerID,
			User: TellerUser{
				ID:        h.mock.TellerID,
				Username:  h.mock.TellerUsername,
				FirstName: h.mock.TellerFirstName,
				LastName:  h.mock.TellerLastName,
			},
			Skills: []Skill{language(1, "English"), language(2, "Spanish")},
		}},
		WaitTime: 0,
	}, nil
}

// ConnectionEstablished is the params of the greeting sent to a terminal as
// soon as it connects.
type ConnectionEstablished struct {
	Success   bool  `json:"success"`
	Timestamp int64 `json:"timestamp"`
}
