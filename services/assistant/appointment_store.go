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
	"sort"
	"sync"
	"time"
)

// =============================================================================
// Appointment Storage
// =============================================================================

// Appointment statuses.
const (
	StatusScheduled = "scheduled"
	StatusCancelled = "cancelled"
)

// Appointment types.
const (
	AppointmentConsultation = "consultation"
	AppointmentFollowUp     = "follow-up"
	AppointmentEmergency    = "emergency"
	AppointmentCheckUp      = "check-up"
)

// Appointment is one booked appointment.
type Appointment struct {
	// ID is assigned by the store on creation.
	ID int `json:"id"`

	// DoctorName is the full doctor name, e.g. "Dr. Michael Chen".
	DoctorName string `json:"doctor_name"`

	// Type is one of the appointment type constants.
	Type string `json:"appointment_type"`

	// ScheduledTime is when the appointment takes place.
	ScheduledTime time.Time `json:"scheduled_time"`

	// DurationMinutes is the length of the appointment.
	DurationMinutes int `json:"duration_minutes"`

	// Reason is why the appointment was booked.
	Reason string `json:"reason"`

	// IsVirtual marks a virtual visit.
	IsVirtual bool `json:"is_virtual"`

	// Status is scheduled or cancelled.
	Status string `json:"status"`

	// Location is "Virtual" or the clinic name.
	Location string `json:"location"`
}

// AppointmentStore persists appointments.
type AppointmentStore interface {
	// Create stores a new appointment and assigns its id.
	Create(ctx context.Context, appt *Appointment) (*Appointment, error)

	// Get returns the appointment with the given id.
	Get(ctx context.Context, id int) (*Appointment, error)

	// List returns non-cancelled appointments, newest first, up to
	// limit (non-positive means no limit).
	List(ctx context.Context, limit int) ([]Appointment, error)

	// Update replaces the stored appointment with the given value.
	Update(ctx context.Context, appt *Appointment) error
}

// ErrAppointmentNotFound is returned for unknown appointment ids.
var ErrAppointmentNotFound = fmt.Errorf("assistant: appointment not found")

// =============================================================================
// In-Memory Appointment Store
// =============================================================================

// MemoryAppointmentStore keeps appointments in process memory.
//
// Thread Safety: Safe for concurrent use.
type MemoryAppointmentStore struct {
	mu           sync.RWMutex
	appointments map[int]*Appointment
	nextID       int
}

// NewMemoryAppointmentStore returns an empty store.
func NewMemoryAppointmentStore() *MemoryAppointmentStore {
	return &MemoryAppointmentStore{
		appointments: make(map[int]*Appointment),
		nextID:       1,
	}
}

// Create stores a new appointment and assigns the next id.
func (s *MemoryAppointmentStore) Create(_ context.Context, appt *Appointment) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *appt
	stored.ID = s.nextID
	s.nextID++
	if stored.Status == "" {
		stored.Status = StatusScheduled
	}
	s.appointments[stored.ID] = &stored

	result := stored
	return &result, nil
}

// Get returns a copy of the appointment with the given id.
func (s *MemoryAppointmentStore) Get(_ context.Context, id int) (*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	appt, ok := s.appointments[id]
	if !ok {
		return nil, fmt.Errorf("%w: #%d", ErrAppointmentNotFound, id)
	}
	result := *appt
	return &result, nil
}

// List returns non-cancelled appointments, newest scheduled time first.
func (s *MemoryAppointmentStore) List(_ context.Context, limit int) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Appointment, 0, len(s.appointments))
	for _, appt := range s.appointments {
		if appt.Status == StatusCancelled {
			continue
		}
		result = append(result, *appt)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledTime.After(result[j].ScheduledTime)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Update replaces the stored appointment.
func (s *MemoryAppointmentStore) Update(_ context.Context, appt *Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.appointments[appt.ID]; !ok {
		return fmt.Errorf("%w: #%d", ErrAppointmentNotFound, appt.ID)
	}
	stored := *appt
	s.appointments[appt.ID] = &stored
	return nil
}
