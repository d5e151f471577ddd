package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskAppointmentReminder is the asynq task type for day-before reminders.
const TaskAppointmentReminder = "appointments.reminder"

// AppointmentReminderPayload identifies the appointment and the slot it was
// scheduled for. The worker compares the slot against the current row so a
// reminder enqueued before a reschedule no-ops instead of firing for the
// wrong time.
type AppointmentReminderPayload struct {
	AppointmentID int64  `json:"appointmentId"`
	PreferredDate string `json:"preferredDate"`
	PreferredTime string `json:"preferredTime"`
}

// NewAppointmentReminderTask builds the asynq task for a reminder.
func NewAppointmentReminderTask(payload AppointmentReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAppointmentReminder, data), nil
}

// ParseAppointmentReminderPayload decodes a reminder task payload.
func ParseAppointmentReminderPayload(task *asynq.Task) (AppointmentReminderPayload, error) {
	var payload AppointmentReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AppointmentReminderPayload{}, err
	}
	return payload, nil
}
