// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carelyhealth/carely/services/datatypes"
	"github.com/carelyhealth/carely/services/llm"
)

// =============================================================================
// Appointment Intent Detection
// =============================================================================

// Appointment operation intents.
const (
	ApptIntentCreate  = "create"
	ApptIntentList    = "list"
	ApptIntentCancel  = "cancel"
	ApptIntentUpdate  = "update"
	ApptIntentGeneral = "general"
	ApptIntentNone    = ""
)

var (
	cancelKeywords = []string{"cancel", "delete", "remove appointment", "cancel appointment"}
	updateKeywords = []string{"reschedule", "change", "move", "update", "modify appointment"}
	listKeywords   = []string{
		"my appointments", "my appointment", "list appointments", "list appointment",
		"show appointments", "show appointment", "show my", "list my",
		"view appointments", "view appointment", "view my",
		"upcoming appointments", "appointment history", "see my appointments",
		"all appointments", "next appointment", "check my appointments",
		"display appointments", "get my appointments", "what appointments",
	}
	createKeywords = []string{
		"book", "schedule", "make appointment", "need appointment",
		"want appointment", "see a doctor", "consultation", "check-up",
		"available", "time slot",
	}
)

// DetectAppointmentIntent classifies an appointment-related message
// into an operation. Precedence is cancel, update, list, create; a bare
// mention of "appointment" is general, everything else none.
func DetectAppointmentIntent(message string) string {
	lower := strings.ToLower(message)

	containsAny := func(keywords []string) bool {
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				return true
			}
		}
		return false
	}

	switch {
	case containsAny(cancelKeywords):
		return ApptIntentCancel
	case containsAny(updateKeywords):
		return ApptIntentUpdate
	case containsAny(listKeywords):
		return ApptIntentList
	case containsAny(createKeywords):
		return ApptIntentCreate
	case strings.Contains(lower, "appointment"):
		return ApptIntentGeneral
	default:
		return ApptIntentNone
	}
}

// =============================================================================
// Slot Generation
// =============================================================================

// MaxSlots caps the slot list returned to the user.
const MaxSlots = 20

// Slot is one bookable appointment time.
type Slot struct {
	// Time is the slot start.
	Time time.Time `json:"datetime"`

	// Formatted is a human-readable rendering of the slot.
	Formatted string `json:"formatted"`

	// Doctor is the doctor the slot belongs to, or "Any available
	// doctor".
	Doctor string `json:"doctor"`
}

// GenerateSlots produces bookable slots on weekdays between 9:00 and
// 17:00 in half-hour steps, skipping times before now, capped at
// MaxSlots.
//
// Inputs:
//
//	now - The current time; slots before it are skipped.
//	startDate - First day to offer. Zero means today.
//	daysAhead - Days to scan. Non-positive means 7.
//	doctorName - Doctor the slots are for. Empty means any.
func GenerateSlots(now time.Time, startDate time.Time, daysAhead int, doctorName string) []Slot {
	if startDate.IsZero() {
		startDate = now
	}
	if daysAhead <= 0 {
		daysAhead = 7
	}
	doctor := doctorName
	if doctor == "" {
		doctor = "Any available doctor"
	}

	day := time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, startDate.Location())

	var slots []Slot
	for offset := 0; offset < daysAhead; offset++ {
		current := day.AddDate(0, 0, offset)
		if wd := current.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		for hour := 9; hour < 17; hour++ {
			for _, minute := range []int{0, 30} {
				slot := time.Date(current.Year(), current.Month(), current.Day(), hour, minute, 0, 0, current.Location())
				if slot.Before(now) {
					continue
				}
				slots = append(slots, Slot{
					Time:      slot,
					Formatted: slot.Format("Monday, January 2 at 3:04 PM"),
					Doctor:    doctor,
				})
				if len(slots) == MaxSlots {
					return slots
				}
			}
		}
	}
	return slots
}

// =============================================================================
// Appointment Agent
// =============================================================================

const appointmentSystemPrompt = `You are an intelligent appointment management agent for Carely Healthcare.

Your capabilities:
1. **Book appointments** - Schedule new appointments with doctors
2. **List appointments** - Show upcoming and past appointments
3. **Cancel appointments** - Cancel existing appointments by ID
4. **Update/Reschedule appointments** - Modify appointment times and details
5. **Show available slots** - Display available time slots

Guidelines:
- Be conversational, friendly, and helpful
- For booking: Ask clarifying questions if details are missing
- For cancellations: Confirm before cancelling
- Handle date/time parsing intelligently (e.g., "tomorrow at 2pm")
- Default to 30-minute appointments unless specified
- Remind users they can choose in-person or virtual appointments
- Users can reference appointments by their ID number (e.g., "appointment #5")

**CRITICAL: For booking new appointments**, when you have ALL required information (doctor, date/time, reason),
you MUST include the JSON object in your response. The appointment will ONLY be created if you include this JSON:

{"action": "book_appointment", "appointment_details": {"appointment_type": "consultation", "doctor_name": "Dr. James Williams", "scheduled_time": "2024-11-22T10:00:00", "reason": "Shoulder issue", "is_virtual": false, "duration_minutes": 30}}

**For showing available slots**:
{"action": "show_slots", "slot_request": {"start_date": "2024-11-10", "days_ahead": 7, "doctor_name": "Dr. Sarah Johnson"}}

**For rescheduling**, when the user provides a new time and appointment ID:
{"action": "update_appointment", "appointment_id": 5, "updates": {"scheduled_time": "2024-11-12T15:00:00"}}

**For canceling appointments**:
{"action": "cancel_appointment", "appointment_id": 123}

Always include the JSON action when performing operations. Do NOT say an appointment is booked unless you include the JSON.`

var appointmentIDPattern = regexp.MustCompile(`#?(\d+)`)

// AppointmentAgent handles appointment operations through conversation.
//
// Description:
//
//	List and cancel requests that name an appointment id are handled
//	directly against the store. Everything else goes through the model,
//	whose reply may embed a JSON action this agent then executes.
//
// Thread Safety: Safe for concurrent use if the client and store are.
type AppointmentAgent struct {
	client llm.ChatClient
	store  AppointmentStore
	logger *slog.Logger

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// AgentReply is the outcome of one appointment interaction.
type AgentReply struct {
	// Response is the text shown to the user.
	Response string

	// ActionData carries structured data about the executed action,
	// nil when the turn was purely conversational.
	ActionData map[string]any
}

// NewAppointmentAgent builds an agent over the given model client and
// store.
func NewAppointmentAgent(client llm.ChatClient, store AppointmentStore, logger *slog.Logger) *AppointmentAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppointmentAgent{
		client: client,
		store:  store,
		logger: logger,
		Now:    time.Now,
	}
}

// Process handles one appointment-related message.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	message - The user's message.
//	history - Prior conversation messages, oldest first.
//
// Outputs:
//
//	*AgentReply - The response and any executed action's data.
//	error - Non-nil on model transport failure.
func (a *AppointmentAgent) Process(ctx context.Context, message string, history []datatypes.Message) (*AgentReply, error) {
	ctx, span := assistantTracer.Start(ctx, "assistant.AppointmentAgent.Process")
	defer span.End()

	intent := DetectAppointmentIntent(message)
	span.SetAttributes(attribute.String("appointment_intent", intent))

	switch intent {
	case ApptIntentList:
		return a.listAppointments(ctx)
	case ApptIntentCancel:
		if m := appointmentIDPattern.FindStringSubmatch(message); m != nil {
			id, err := strconv.Atoi(m[1])
			if err == nil {
				return a.cancelAppointment(ctx, id)
			}
		}
	}

	messages := make([]datatypes.Message, 0, len(history)+2)
	messages = append(messages, datatypes.Message{Role: "system", Content: appointmentSystemPrompt})
	messages = append(messages, history...)
	messages = append(messages, datatypes.Message{Role: "user", Content: message})

	reply, err := a.client.Chat(ctx, messages, llm.GenerationParams{
		Temperature: llm.Temperature(0.3),
		MaxTokens:   llm.MaxTokens(1000),
	})
	if err != nil {
		return nil, fmt.Errorf("assistant: appointment model request: %w", err)
	}

	action, ok := ExtractAction(reply)
	if !ok {
		return &AgentReply{Response: strings.TrimSpace(reply)}, nil
	}
	return a.execute(ctx, action, reply)
}

func (a *AppointmentAgent) execute(ctx context.Context, action AppointmentAction, reply string) (*AgentReply, error) {
	switch act := action.(type) {
	case BookAction:
		return a.bookAppointment(ctx, act, reply)
	case ShowSlotsAction:
		return a.showSlots(act, reply)
	case ListAction:
		return a.listAppointments(ctx)
	case CancelAction:
		return a.cancelAppointment(ctx, act.AppointmentID)
	case UpdateAction:
		return a.updateAppointment(ctx, act)
	default:
		return &AgentReply{Response: StripAction(reply)}, nil
	}
}

func (a *AppointmentAgent) bookAppointment(ctx context.Context, act BookAction, reply string) (*AgentReply, error) {
	location := "Main Clinic"
	if act.IsVirtual {
		location = "Virtual"
	}
	appt, err := a.store.Create(ctx, &Appointment{
		DoctorName:      act.DoctorName,
		Type:            act.Type,
		ScheduledTime:   act.ScheduledTime,
		DurationMinutes: act.DurationMinutes,
		Reason:          act.Reason,
		IsVirtual:       act.IsVirtual,
		Status:          StatusScheduled,
		Location:        location,
	})
	if err != nil {
		return nil, fmt.Errorf("assistant: booking appointment: %w", err)
	}

	a.logger.Info("appointment booked",
		slog.Int("appointment_id", appt.ID),
		slog.String("doctor", appt.DoctorName),
		slog.Time("scheduled_time", appt.ScheduledTime))

	response := StripAction(reply)
	if response == "" {
		response = fmt.Sprintf(
			"Appointment booked successfully!\n\nDoctor: %s\nDate & Time: %s\nDuration: %d minutes\nLocation: %s\nReason: %s",
			appt.DoctorName,
			appt.ScheduledTime.Format("Monday, January 2, 2006 at 3:04 PM"),
			appt.DurationMinutes,
			appt.Location,
			appt.Reason,
		)
	}
	return &AgentReply{
		Response: response,
		ActionData: map[string]any{
			"action":         ActionBook,
			"success":        true,
			"appointment_id": appt.ID,
			"appointment":    appt,
		},
	}, nil
}

func (a *AppointmentAgent) showSlots(act ShowSlotsAction, reply string) (*AgentReply, error) {
	slots := GenerateSlots(a.Now(), act.StartDate, act.DaysAhead, act.DoctorName)
	if len(slots) > 10 {
		slots = slots[:10]
	}

	var b strings.Builder
	response := StripAction(reply)
	if response == "" {
		response = "Here are the available appointment slots:"
	}
	b.WriteString(response)
	b.WriteString("\n\nAvailable Appointments:\n")
	for i, slot := range slots {
		fmt.Fprintf(&b, "%d. %s\n", i+1, slot.Formatted)
	}

	return &AgentReply{
		Response: b.String(),
		ActionData: map[string]any{
			"action": ActionShowSlots,
			"slots":  slots,
		},
	}, nil
}

func (a *AppointmentAgent) listAppointments(ctx context.Context) (*AgentReply, error) {
	appointments, err := a.store.List(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("assistant: listing appointments: %w", err)
	}

	if len(appointments) == 0 {
		return &AgentReply{
			Response: "You don't have any appointments scheduled yet. Would you like to book one?",
			ActionData: map[string]any{
				"action":       ActionList,
				"appointments": appointments,
				"count":        0,
			},
		}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your Appointments (%d total):\n\n", len(appointments))
	for _, appt := range appointments {
		fmt.Fprintf(&b, "Appointment #%d\n", appt.ID)
		fmt.Fprintf(&b, "  Doctor: %s\n", appt.DoctorName)
		fmt.Fprintf(&b, "  Type: %s\n", appt.Type)
		fmt.Fprintf(&b, "  Date: %s\n", appt.ScheduledTime.Format("Monday, January 2, 2006 at 3:04 PM"))
		fmt.Fprintf(&b, "  Status: %s\n", appt.Status)
		if appt.Reason != "" {
			fmt.Fprintf(&b, "  Reason: %s\n", appt.Reason)
		}
		fmt.Fprintf(&b, "  Location: %s\n\n", appt.Location)
	}
	b.WriteString("You can cancel or reschedule any appointment by telling me the appointment number.")

	return &AgentReply{
		Response: b.String(),
		ActionData: map[string]any{
			"action":       ActionList,
			"appointments": appointments,
			"count":        len(appointments),
		},
	}, nil
}

func (a *AppointmentAgent) cancelAppointment(ctx context.Context, id int) (*AgentReply, error) {
	appt, err := a.store.Get(ctx, id)
	if err != nil {
		return &AgentReply{
			Response: fmt.Sprintf("I couldn't find appointment #%d. Please check the appointment number.", id),
			ActionData: map[string]any{
				"action":  ActionCancel,
				"success": false,
				"error":   "appointment not found",
			},
		}, nil
	}
	if appt.Status == StatusCancelled {
		return &AgentReply{
			Response: fmt.Sprintf("Appointment #%d is already cancelled.", id),
			ActionData: map[string]any{
				"action":  ActionCancel,
				"success": false,
				"error":   "already cancelled",
			},
		}, nil
	}

	appt.Status = StatusCancelled
	if err := a.store.Update(ctx, appt); err != nil {
		return nil, fmt.Errorf("assistant: cancelling appointment #%d: %w", id, err)
	}

	a.logger.Info("appointment cancelled", slog.Int("appointment_id", id))

	response := fmt.Sprintf(
		"Appointment Cancelled\n\nAppointment #%d has been successfully cancelled.\n\nDoctor: %s\nWas scheduled for: %s\n\nIf you'd like to book a new appointment, just let me know!",
		appt.ID,
		appt.DoctorName,
		appt.ScheduledTime.Format("Monday, January 2, 2006 at 3:04 PM"),
	)
	return &AgentReply{
		Response: response,
		ActionData: map[string]any{
			"action":         ActionCancel,
			"success":        true,
			"appointment_id": appt.ID,
		},
	}, nil
}

func (a *AppointmentAgent) updateAppointment(ctx context.Context, act UpdateAction) (*AgentReply, error) {
	appt, err := a.store.Get(ctx, act.AppointmentID)
	if err != nil {
		return &AgentReply{
			Response: fmt.Sprintf("I couldn't find appointment #%d.", act.AppointmentID),
			ActionData: map[string]any{
				"action":  ActionUpdate,
				"success": false,
				"error":   "appointment not found",
			},
		}, nil
	}
	if appt.Status == StatusCancelled {
		return &AgentReply{
			Response: fmt.Sprintf("Appointment #%d is cancelled. Would you like to book a new one instead?", act.AppointmentID),
			ActionData: map[string]any{
				"action":  ActionUpdate,
				"success": false,
				"error":   "appointment is cancelled",
			},
		}, nil
	}

	if act.ScheduledTime != nil {
		appt.ScheduledTime = *act.ScheduledTime
	}
	if act.DurationMinutes != nil {
		appt.DurationMinutes = *act.DurationMinutes
	}
	if act.IsVirtual != nil {
		appt.IsVirtual = *act.IsVirtual
		if appt.IsVirtual {
			appt.Location = "Virtual"
		} else {
			appt.Location = "Main Clinic"
		}
	}
	if err := a.store.Update(ctx, appt); err != nil {
		return nil, fmt.Errorf("assistant: updating appointment #%d: %w", act.AppointmentID, err)
	}

	a.logger.Info("appointment updated", slog.Int("appointment_id", appt.ID))

	response := fmt.Sprintf(
		"Appointment Updated\n\nAppointment #%d has been successfully updated.\n\nDoctor: %s\nNew Date & Time: %s\nDuration: %d minutes\nLocation: %s",
		appt.ID,
		appt.DoctorName,
		appt.ScheduledTime.Format("Monday, January 2, 2006 at 3:04 PM"),
		appt.DurationMinutes,
		appt.Location,
	)
	return &AgentReply{
		Response: response,
		ActionData: map[string]any{
			"action":         ActionUpdate,
			"success":        true,
			"appointment_id": appt.ID,
		},
	}, nil
}
