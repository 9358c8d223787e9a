// Package attach embeds generated XML into a PDF as a file attachment and
// reads it back, using pdfcpu.
package attach

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Conventional attachment names. Order-X files are written as orderx.xml;
// order-x.xml is still recognized when reading.
const (
	FilenameFacturX     = "factur-x.xml"
	FilenameOrderX      = "orderx.xml"
	FilenameOrderXAlias = "order-x.xml"
)

// invoiceNames are tried in order by ExtractInvoiceXML
var invoiceNames = []string{FilenameFacturX, FilenameOrderX, FilenameOrderXAlias}

// MimeXML is the media type of the embedded document
const MimeXML = "application/xml"

// ErrNotFound is returned when the PDF carries no attachment of that name
var ErrNotFound = errors.New("attachment not found")

// Attachment describes one embedded file
type Attachment struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Embedder adds and reads PDF attachments
type Embedder struct {
	conf *model.Configuration
}

// NewEmbedder creates an embedder with relaxed PDF validation and no
// on-disk pdfcpu configuration
func NewEmbedder() *Embedder {
	api.DisableConfigDir()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Embedder{conf: conf}
}

// ValidName reports whether name is usable as an attachment file name
func ValidName(name string) bool {
	return name != "" &&
		name == filepath.Base(name) &&
		strings.EqualFold(filepath.Ext(name), ".xml")
}

// Embed writes pdf with xmlData attached under name to w. An empty name
// means FilenameFacturX. The embedded file stream is tagged with MimeXML.
func (e *Embedder) Embed(pdf io.ReadSeeker, w io.Writer, xmlData []byte, name string) error {
	if name == "" {
		name = FilenameFacturX
	}
	if !ValidName(name) {
		return fmt.Errorf("invalid attachment name %q", name)
	}

	dir, err := os.MkdirTemp("", "facturx-attach-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, xmlData, 0o600); err != nil {
		return fmt.Errorf("write attachment: %w", err)
	}

	var raw bytes.Buffer
	if err := api.AddAttachments(pdf, &raw, []string{path}, false, e.conf); err != nil {
		return fmt.Errorf("add attachment: %w", err)
	}

	ctx, err := api.ReadContext(bytes.NewReader(raw.Bytes()), e.conf)
	if err != nil {
		return fmt.Errorf("read pdf: %w", err)
	}
	if tagEmbeddedFiles(ctx, MimeXML) == 0 {
		return fmt.Errorf("add attachment: no embedded file stream written")
	}
	if err := api.WriteContext(ctx, w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// tagEmbeddedFiles sets /Subtype on embedded file streams that lack one and
// returns the number of embedded file streams seen
func tagEmbeddedFiles(ctx *model.Context, mime string) int {
	n := 0
	for _, entry := range ctx.XRefTable.Table {
		if entry == nil || entry.Free {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if t := sd.NameEntry("Type"); t == nil || *t != "EmbeddedFile" {
			continue
		}
		if sd.NameEntry("Subtype") == nil {
			sd.Dict["Subtype"] = types.Name(mime)
		}
		n++
	}
	return n
}

// noAttachments reports pdfcpu's error for a document without an
// EmbeddedFiles name tree
func noAttachments(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no attachments")
}

// List returns the attachments of pdf
func (e *Embedder) List(pdf io.ReadSeeker) ([]Attachment, error) {
	if _, err := pdf.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	found, err := api.Attachments(pdf, e.conf)
	if noAttachments(err) {
		return []Attachment{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	out := make([]Attachment, 0, len(found))
	for _, a := range found {
		out = append(out, Attachment{Name: a.FileName, Description: a.Desc})
	}
	return out, nil
}

// Extract returns the content of the named attachment. A PDF without that
// attachment, or without any, yields ErrNotFound.
func (e *Embedder) Extract(pdf io.ReadSeeker, name string) ([]byte, error) {
	list, err := e.List(pdf)
	if err != nil {
		return nil, err
	}
	if !hasAttachment(list, name) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	if _, err := pdf.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	found, err := api.ExtractAttachmentsRaw(pdf, "", []string{name}, e.conf)
	if noAttachments(err) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("extract attachment: %w", err)
	}
	for _, a := range found {
		if a.FileName != name || a.Reader == nil {
			continue
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, a.Reader); err != nil {
			return nil, fmt.Errorf("read attachment %s: %w", name, err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
}

// ExtractInvoiceXML returns the first conventional invoice attachment
func (e *Embedder) ExtractInvoiceXML(pdf io.ReadSeeker) (name string, data []byte, err error) {
	for _, candidate := range invoiceNames {
		if _, err := pdf.Seek(0, io.SeekStart); err != nil {
			return "", nil, err
		}
		data, err = e.Extract(pdf, candidate)
		if err == nil {
			return candidate, data, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", nil, err
		}
	}
	return "", nil, ErrNotFound
}

func hasAttachment(list []Attachment, name string) bool {
	for _, a := range list {
		if a.Name == name {
			return true
		}
	}
	return false
}

// EmbedFile reads pdfPath and xmlPath and writes the result to outPath
func (e *Embedder) EmbedFile(pdfPath, xmlPath, outPath, name string) error {
	xmlData, err := os.ReadFile(xmlPath)
	if err != nil {
		return fmt.Errorf("read xml: %w", err)
	}

	in, err := os.Open(pdfPath)
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	defer in.Close()

	var out bytes.Buffer
	if err := e.Embed(in, &out, xmlData, name); err != nil {
		return err
	}
	return os.WriteFile(outPath, out.Bytes(), 0o644)
}

// IsPDF reports whether data starts with a PDF header
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-"))
}
