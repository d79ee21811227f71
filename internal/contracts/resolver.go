package contracts

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/usil/eventhos-relay/internal/models"
)

// EventContract is one dispatch-eligible contract joined with its
// action and the action's security row.
type EventContract struct {
	Contract models.Contract
	Action   models.Action
	Security models.ActionSecurity
}

// Resolver loads the active, non-deleted contracts bound to an event,
// ordered by their execution tier.
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// ResolveForEvent returns the event's dispatch-eligible contracts in
// ascending tier order. An empty result is a valid outcome: an event
// with zero bound contracts is still auditable.
func (r *Resolver) ResolveForEvent(eventID int64) ([]EventContract, error) {
	var rows []models.Contract
	err := r.db.
		Joins("Action").
		Where("contracts.event_id = ? AND contracts.active = ?", eventID, true).
		Order(`contracts."order" ASC, contracts.id ASC`).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load contracts for event %d: %w", eventID, err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	// The join excludes soft-deleted actions; a contract whose action is
	// gone is not dispatch-eligible.
	eligible := rows[:0]
	for _, row := range rows {
		if row.Action.ID != 0 {
			eligible = append(eligible, row)
		}
	}
	rows = eligible
	if len(rows) == 0 {
		return nil, nil
	}

	actionIDs := make([]int64, 0, len(rows))
	for _, row := range rows {
		actionIDs = append(actionIDs, row.ActionID)
	}

	var securities []models.ActionSecurity
	err = r.db.Where("action_id IN ?", actionIDs).Find(&securities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load action securities: %w", err)
	}

	securityByAction := make(map[int64]models.ActionSecurity, len(securities))
	for _, sec := range securities {
		securityByAction[sec.ActionID] = sec
	}

	resolved := make([]EventContract, 0, len(rows))
	for _, row := range rows {
		sec, ok := securityByAction[row.ActionID]
		if !ok {
			// Every action is supposed to carry exactly one security row;
			// a contract without one cannot be executed.
			return nil, fmt.Errorf("action %d has no security row", row.ActionID)
		}
		resolved = append(resolved, EventContract{
			Contract: row,
			Action:   row.Action,
			Security: sec,
		})
	}

	return resolved, nil
}
