package shell

import (
	"mime"
	"net/http"
	"strings"

	"orientachat/internal/models"
)

// NotPDFText is shown next to the file picker when a non-PDF is chosen.
const NotPDFText = "Per favore seleziona un file PDF."

// ValidateAttachment accepts a file when either its content or its declared
// media type says PDF.
func ValidateAttachment(name, declared string, data []byte) (*models.Attachment, error) {
	if len(data) == 0 {
		return nil, ErrNotPDF
	}
	if !isPDF(declared) && !isPDF(http.DetectContentType(data)) {
		return nil, ErrNotPDF
	}
	return &models.Attachment{Name: name, MIMEType: models.MIMETypePDF, Data: data}, nil
}

func isPDF(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.EqualFold(mediaType, models.MIMETypePDF)
}
