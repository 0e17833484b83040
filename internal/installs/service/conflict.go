package service

import (
	"context"
	"fmt"
	"time"

	"fieldops_backend/internal/installs/repository"
	"fieldops_backend/internal/installs/schedule"
	"fieldops_backend/internal/installs/transport"
	"fieldops_backend/platform/geo"

	"github.com/google/uuid"
)

const (
	// travelDistanceKm is the distance above which a tight turnaround
	// between consecutive jobs is flagged.
	travelDistanceKm = 50.0
	// travelGapHours is the minimum gap needed to cover that distance.
	travelGapHours = 2
	// dailyTaskLimit is the same-day active task count, including the
	// candidate, at which an installer is considered overloaded.
	dailyTaskLimit = 3
)

// ConflictParams describes a proposed assignment to check.
type ConflictParams struct {
	TenantID       uuid.UUID
	InstallerID    uuid.UUID
	ExcludeTaskID  uuid.UUID
	Date           time.Time
	TimeSlot       string
	TargetLocation *geo.Point
}

// CheckConflict evaluates a proposed installer assignment against the
// installer's existing schedule for that day. Hard conflicts are time-slot
// overlaps; soft conflicts flag travel-time risk and daily overload.
func (s *Service) CheckConflict(ctx context.Context, p ConflictParams) (transport.ConflictResult, error) {
	none := transport.ConflictResult{HasConflict: false, ConflictType: transport.ConflictNone}

	if p.Date.IsZero() {
		return none, nil
	}

	tasks, err := s.store.ListForInstallerOnDate(ctx, p.TenantID, p.InstallerID, p.Date, p.ExcludeTaskID)
	if err != nil {
		return none, err
	}

	var active []repository.InstallTask
	for _, t := range tasks {
		if t.Status != string(transport.StatusCompleted) {
			active = append(active, t)
		}
	}

	candidate, candidateParseable := schedule.Parse(p.TimeSlot)

	if candidateParseable {
		if result, found := findOverlap(active, candidate); found {
			return result, nil
		}
		if result, found := findTravelRisk(active, candidate, p.TargetLocation); found {
			return result, nil
		}
	}

	// The candidate counts toward the installer's daily load.
	if len(active)+1 >= dailyTaskLimit {
		return transport.ConflictResult{
			HasConflict:  true,
			ConflictType: transport.ConflictSoft,
			Message:      fmt.Sprintf("installer already has %d active tasks that day", len(active)),
		}, nil
	}

	return none, nil
}

// findOverlap returns a hard conflict for the first active task whose
// parseable slot overlaps the candidate slot.
func findOverlap(active []repository.InstallTask, candidate schedule.HourRange) (transport.ConflictResult, bool) {
	for i := range active {
		task := &active[i]
		existing, ok := parseTaskSlot(task)
		if !ok {
			continue
		}
		if candidate.Overlaps(existing) {
			id := task.ID
			return transport.ConflictResult{
				HasConflict:       true,
				ConflictType:      transport.ConflictHard,
				Message:           fmt.Sprintf("time slot overlaps with task %s (%02d:00-%02d:00)", task.TaskNo, existing.Start, existing.End),
				ConflictingTaskID: &id,
				ConflictingTaskNo: task.TaskNo,
			}, true
		}
	}
	return transport.ConflictResult{}, false
}

// findTravelRisk flags the assignment when the installer's latest preceding
// job that day is far away and the gap before the candidate slot is short.
// Tasks without coordinates never trigger this: an unknown distance is
// treated as neither zero nor infinite.
func findTravelRisk(active []repository.InstallTask, candidate schedule.HourRange, target *geo.Point) (transport.ConflictResult, bool) {
	if target == nil {
		return transport.ConflictResult{}, false
	}

	var prev *repository.InstallTask
	var prevSlot schedule.HourRange
	for i := range active {
		task := &active[i]
		slot, ok := parseTaskSlot(task)
		if !ok || slot.Start >= candidate.Start {
			continue
		}
		if prev == nil || slot.End > prevSlot.End {
			prev = task
			prevSlot = slot
		}
	}
	if prev == nil {
		return transport.ConflictResult{}, false
	}

	distance, known := geo.DistanceKm(prev.AddressLocation, target)
	if !known {
		return transport.ConflictResult{}, false
	}

	gap := candidate.Start - prevSlot.End
	if distance > travelDistanceKm && gap < travelGapHours {
		id := prev.ID
		return transport.ConflictResult{
			HasConflict:       true,
			ConflictType:      transport.ConflictSoft,
			Message:           fmt.Sprintf("previous task %s ends at %02d:00 about %.0f km away, travel window under %d hours", prev.TaskNo, prevSlot.End, distance, travelGapHours),
			ConflictingTaskID: &id,
			ConflictingTaskNo: prev.TaskNo,
		}, true
	}

	return transport.ConflictResult{}, false
}

func parseTaskSlot(task *repository.InstallTask) (schedule.HourRange, bool) {
	if task.ScheduledTimeSlot == nil {
		return schedule.HourRange{}, false
	}
	return schedule.Parse(*task.ScheduledTimeSlot)
}
