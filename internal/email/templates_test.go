package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceMessage(t *testing.T) {
	msg, err := InvoiceMessage("client@example.com", InvoiceEmailData{
		ClientName: "Ada",
		PublicID:   "INV7F3KQ2P9A",
		Total:      "100.00 USD",
		DueDate:    "2024-02-14",
		InvoiceURL: "https://example.com/public/invoices/INV7F3KQ2P9A",
	})
	require.NoError(t, err)

	assert.Equal(t, "client@example.com", msg.To)
	assert.Equal(t, "Invoice INV7F3KQ2P9A for 100.00 USD", msg.Subject)
	assert.Contains(t, msg.HTML, "INV7F3KQ2P9A")
	assert.Contains(t, msg.HTML, "https://example.com/public/invoices/INV7F3KQ2P9A")
	assert.Contains(t, msg.Text, "due on 2024-02-14")
}

func TestReminderMessage_Overdue(t *testing.T) {
	msg, err := ReminderMessage("client@example.com", InvoiceEmailData{
		ClientName:  "Ada",
		PublicID:    "INV7F3KQ2P9A",
		AmountDue:   "60.00 USD",
		DueDate:     "2024-02-14",
		DaysOverdue: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, "Overdue: invoice INV7F3KQ2P9A (60.00 USD outstanding)", msg.Subject)
	assert.Contains(t, msg.HTML, "3 day(s) overdue")
}
