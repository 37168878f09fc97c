// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// =============================================================================
// Appointment Actions
// =============================================================================

// Action names the model may emit.
const (
	ActionBook      = "book_appointment"
	ActionShowSlots = "show_slots"
	ActionList      = "list_appointments"
	ActionCancel    = "cancel_appointment"
	ActionUpdate    = "update_appointment"
)

// AppointmentAction is a validated operation extracted from a model
// reply. Each concrete variant carries only the fields its operation
// needs; replies with unknown actions or invalid fields are rejected at
// this boundary rather than acted on.
type AppointmentAction interface {
	// ActionName returns the wire action name.
	ActionName() string
}

// BookAction books a new appointment.
type BookAction struct {
	DoctorName      string
	ScheduledTime   time.Time
	Reason          string
	Type            string
	IsVirtual       bool
	DurationMinutes int
}

func (BookAction) ActionName() string { return ActionBook }

// ShowSlotsAction requests available appointment slots.
type ShowSlotsAction struct {
	StartDate  time.Time
	DaysAhead  int
	DoctorName string
}

func (ShowSlotsAction) ActionName() string { return ActionShowSlots }

// ListAction lists the stored appointments.
type ListAction struct{}

func (ListAction) ActionName() string { return ActionList }

// CancelAction cancels an appointment by id.
type CancelAction struct {
	AppointmentID int
}

func (CancelAction) ActionName() string { return ActionCancel }

// UpdateAction reschedules or modifies an appointment.
type UpdateAction struct {
	AppointmentID   int
	ScheduledTime   *time.Time
	DurationMinutes *int
	IsVirtual       *bool
}

func (UpdateAction) ActionName() string { return ActionUpdate }

// actionEnvelope is the raw wire shape before validation.
type actionEnvelope struct {
	Action             string          `json:"action"`
	AppointmentDetails json.RawMessage `json:"appointment_details"`
	SlotRequest        json.RawMessage `json:"slot_request"`
	AppointmentID      int             `json:"appointment_id"`
	Updates            json.RawMessage `json:"updates"`
}

type wireAppointmentDetails struct {
	DoctorName      string `json:"doctor_name"`
	ScheduledTime   string `json:"scheduled_time"`
	Reason          string `json:"reason"`
	AppointmentType string `json:"appointment_type"`
	IsVirtual       bool   `json:"is_virtual"`
	DurationMinutes int    `json:"duration_minutes"`
}

type wireSlotRequest struct {
	StartDate  string `json:"start_date"`
	DaysAhead  int    `json:"days_ahead"`
	DoctorName string `json:"doctor_name"`
}

type wireUpdates struct {
	ScheduledTime   *string `json:"scheduled_time"`
	DurationMinutes *int    `json:"duration_minutes"`
	IsVirtual       *bool   `json:"is_virtual"`
}

var embeddedJSONPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// ExtractAction finds and validates an action object embedded in a
// model reply.
//
// Description:
//
//	Searches the reply for the outermost brace-delimited JSON object,
//	decodes it, and validates it into a typed action. Replies without
//	an embedded object, with an unknown action name, or with invalid
//	fields produce (nil, false); the caller then treats the reply as
//	plain conversation.
//
// Inputs:
//
//	reply - The model's text reply.
//
// Outputs:
//
//	AppointmentAction - The validated action.
//	bool - True if a valid action was found.
func ExtractAction(reply string) (AppointmentAction, bool) {
	match := embeddedJSONPattern.FindString(reply)
	if match == "" {
		return nil, false
	}

	var env actionEnvelope
	if err := json.Unmarshal([]byte(match), &env); err != nil {
		return nil, false
	}

	action, err := env.validate()
	if err != nil {
		return nil, false
	}
	return action, true
}

// StripAction removes the embedded action JSON from a reply so the
// remaining text can be shown to the user.
func StripAction(reply string) string {
	return strings.TrimSpace(embeddedJSONPattern.ReplaceAllString(reply, ""))
}

func (env actionEnvelope) validate() (AppointmentAction, error) {
	switch env.Action {
	case ActionBook:
		return env.validateBook()
	case ActionShowSlots:
		return env.validateShowSlots()
	case ActionList:
		return ListAction{}, nil
	case ActionCancel:
		if env.AppointmentID <= 0 {
			return nil, fmt.Errorf("assistant: cancel_appointment requires a positive appointment_id")
		}
		return CancelAction{AppointmentID: env.AppointmentID}, nil
	case ActionUpdate:
		return env.validateUpdate()
	default:
		return nil, fmt.Errorf("assistant: unknown action %q", env.Action)
	}
}

func (env actionEnvelope) validateBook() (AppointmentAction, error) {
	var details wireAppointmentDetails
	if len(env.AppointmentDetails) == 0 {
		return nil, fmt.Errorf("assistant: book_appointment requires appointment_details")
	}
	if err := json.Unmarshal(env.AppointmentDetails, &details); err != nil {
		return nil, fmt.Errorf("assistant: decoding appointment_details: %w", err)
	}
	if details.DoctorName == "" {
		return nil, fmt.Errorf("assistant: book_appointment requires doctor_name")
	}
	if details.Reason == "" {
		return nil, fmt.Errorf("assistant: book_appointment requires reason")
	}
	scheduled, err := parseTimestamp(details.ScheduledTime)
	if err != nil {
		return nil, fmt.Errorf("assistant: book_appointment scheduled_time: %w", err)
	}

	apptType := details.AppointmentType
	if apptType == "" {
		apptType = AppointmentConsultation
	}
	duration := details.DurationMinutes
	if duration <= 0 {
		duration = 30
	}
	return BookAction{
		DoctorName:      details.DoctorName,
		ScheduledTime:   scheduled,
		Reason:          details.Reason,
		Type:            apptType,
		IsVirtual:       details.IsVirtual,
		DurationMinutes: duration,
	}, nil
}

func (env actionEnvelope) validateShowSlots() (AppointmentAction, error) {
	action := ShowSlotsAction{DaysAhead: 7}
	if len(env.SlotRequest) == 0 {
		return action, nil
	}
	var req wireSlotRequest
	if err := json.Unmarshal(env.SlotRequest, &req); err != nil {
		return nil, fmt.Errorf("assistant: decoding slot_request: %w", err)
	}
	if req.StartDate != "" {
		start, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return nil, fmt.Errorf("assistant: slot_request start_date: %w", err)
		}
		action.StartDate = start
	}
	if req.DaysAhead > 0 {
		action.DaysAhead = req.DaysAhead
	}
	action.DoctorName = req.DoctorName
	return action, nil
}

func (env actionEnvelope) validateUpdate() (AppointmentAction, error) {
	if env.AppointmentID <= 0 {
		return nil, fmt.Errorf("assistant: update_appointment requires a positive appointment_id")
	}
	if len(env.Updates) == 0 {
		return nil, fmt.Errorf("assistant: update_appointment requires updates")
	}
	var updates wireUpdates
	if err := json.Unmarshal(env.Updates, &updates); err != nil {
		return nil, fmt.Errorf("assistant: decoding updates: %w", err)
	}

	action := UpdateAction{AppointmentID: env.AppointmentID}
	if updates.ScheduledTime != nil {
		scheduled, err := parseTimestamp(*updates.ScheduledTime)
		if err != nil {
			return nil, fmt.Errorf("assistant: update_appointment scheduled_time: %w", err)
		}
		action.ScheduledTime = &scheduled
	}
	action.DurationMinutes = updates.DurationMinutes
	action.IsVirtual = updates.IsVirtual

	if action.ScheduledTime == nil && action.DurationMinutes == nil && action.IsVirtual == nil {
		return nil, fmt.Errorf("assistant: update_appointment has no recognized updates")
	}
	return action, nil
}

// parseTimestamp accepts the timestamp shapes models actually emit:
// RFC 3339 with or without offset, and "Z" suffixes.
func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
