// Package sheets exports budget activity to spreadsheets.
package sheets

import (
	"context"
	"time"

	"lifehub/internal/amqp"
)

// ActivityRow is one exported expense mutation.
type ActivityRow struct {
	Timestamp time.Time
	OwnerID   string
	Action    string
	ExpenseID string
	Name      string
	Amount    string
	Category  string
}

// Values is the row as written to the sheet, columns A to G.
func (r ActivityRow) Values() []any {
	return []any{
		r.Timestamp.UTC().Format(time.RFC3339),
		r.OwnerID,
		r.Action,
		r.ExpenseID,
		r.Name,
		r.Amount,
		r.Category,
	}
}

// RowFromEvent maps an expense event onto a row. ok is false for other entities.
func RowFromEvent(ev *amqp.MutationEvent) (ActivityRow, bool) {
	if ev == nil || ev.Entity != amqp.EntityExpense {
		return ActivityRow{}, false
	}
	return ActivityRow{
		Timestamp: ev.Timestamp,
		OwnerID:   ev.OwnerID,
		Action:    ev.Action,
		ExpenseID: ev.ID,
		Name:      ev.Payload["name"],
		Amount:    ev.Payload["amount"],
		Category:  ev.Payload["category"],
	}, true
}

// ActivityWriter appends rows to an export target.
type ActivityWriter interface {
	Append(ctx context.Context, row ActivityRow) (rowRef string, err error)
}
