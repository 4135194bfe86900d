package amqp

import (
	"encoding/json"
	"time"
)

// ExpenseExportMessage asks the worker to export one expense to the
// tenant's spreadsheet. It carries only identifiers; the worker fetches
// the full expense from the database.
type ExpenseExportMessage struct {
	ExpenseID string    `json:"expense_id"`
	TenantID  string    `json:"tenant_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseExportMessage(expenseID, tenantID string) *ExpenseExportMessage {
	return &ExpenseExportMessage{
		ExpenseID: expenseID,
		TenantID:  tenantID,
		Timestamp: time.Now(),
	}
}

func (m *ExpenseExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseExportMessageFromJSON(data []byte) (*ExpenseExportMessage, error) {
	var msg ExpenseExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
