package certpdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateData carries everything printed on a publication certificate.
type CertificateData struct {
	CertificateID   string
	IssuerName      string
	ArticleTitle    string
	AuthorNames     string
	JournalName     string
	SubmissionID    string
	PublicationDate time.Time
	VerificationURL string
}

// Renderer produces publication certificate PDFs.
type Renderer struct{}

// NewRenderer constructs a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render creates a landscape A4 certificate document.
func (r *Renderer) Render(data CertificateData) ([]byte, error) {
	if data.ArticleTitle == "" {
		return nil, fmt.Errorf("certificate requires an article title")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 22)
	pdf.CellFormat(0, 16, "CERTIFICATE OF PUBLICATION", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, data.IssuerName, "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, "This certifies that the article", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "BI", 14)
	pdf.MultiCell(0, 8, data.ArticleTitle, "", "C", false)
	pdf.Ln(2)

	if data.AuthorNames != "" {
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 7, "by "+data.AuthorNames, "", 1, "C", false, 0, "")
		pdf.Ln(2)
	}

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("was published in %s on %s",
		data.JournalName, data.PublicationDate.Format("2 January 2006")), "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, "Submission "+data.SubmissionID, "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, "Certificate "+data.CertificateID, "", 1, "C", false, 0, "")
	if data.VerificationURL != "" {
		pdf.CellFormat(0, 6, "Verify at "+data.VerificationURL, "", 1, "C", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}
