package email

// Message is a rendered email ready for delivery
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// SendResult represents the response from sending an email
type SendResult struct {
	MessageID string
	Success   bool
	Error     string
}

// InvoiceEmailData fills the invoice and reminder templates
type InvoiceEmailData struct {
	ClientName  string
	SenderName  string
	PublicID    string
	AmountDue   string
	Total       string
	DueDate     string
	InvoiceURL  string
	Notes       string
	DaysOverdue int
}
