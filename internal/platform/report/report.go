package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Completion describes one executed deletion for the archived report.
type Completion struct {
	RequestID    string
	UserID       string
	UserEmail    string
	UserName     string
	AdminID      string
	Reason       string
	CompletedAt  time.Time
	RemovedLinks int64
	RemovedNotes int64
	RemovedWarns int64
	RemovedAudit int64
}

type Service struct {
	Dir string
}

func New(dir string) *Service {
	return &Service{Dir: dir}
}

// WriteCompletion archives a PDF record of an executed deletion. The database
// no longer holds the user's data at this point, so the report is the only
// human-readable artifact of what was removed.
func (s *Service) WriteCompletion(c Completion) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	filePath := filepath.Join(s.Dir, c.RequestID+".pdf")

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Account Deletion Report")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Request: %s", c.RequestID))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Account: %s <%s>", c.UserName, c.UserEmail))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Issued by admin: %s", c.AdminID))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Reason: %s", c.Reason))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Completed: %s", c.CompletedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(10)
	pdf.Cell(0, 8, fmt.Sprintf("Links removed: %d", c.RemovedLinks))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Notes removed: %d", c.RemovedNotes))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Warnings removed: %d", c.RemovedWarns))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Audit records removed: %d", c.RemovedAudit))

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", err
	}
	return filePath, nil
}
