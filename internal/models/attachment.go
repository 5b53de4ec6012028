package models

const MIMETypePDF = "application/pdf"

// Attachment is a file supplied alongside a user turn.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

func (a *Attachment) Empty() bool {
	return a == nil || len(a.Data) == 0
}
