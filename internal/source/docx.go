package source

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DocumentText is the extracted view of a generated DOCX deliverable:
// visible text plus per-paragraph alignment for format checks.
type DocumentText struct {
	Paragraphs []DocumentParagraph
}

// DocumentParagraph is one paragraph's text and declared justification
// ("center", "right", ... or empty when unset).
type DocumentParagraph struct {
	Text      string
	Alignment string
}

// Text joins the visible paragraph text, one paragraph per line.
func (d DocumentText) Text() string {
	parts := make([]string, 0, len(d.Paragraphs))
	for _, p := range d.Paragraphs {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// TitleAlignment returns the alignment of the first non-empty paragraph.
func (d DocumentText) TitleAlignment() string {
	for _, p := range d.Paragraphs {
		if p.Text != "" {
			return p.Alignment
		}
	}
	return ""
}

// SignatureAlignment returns the alignment of the last non-empty paragraph.
func (d DocumentText) SignatureAlignment() string {
	for i := len(d.Paragraphs) - 1; i >= 0; i-- {
		if d.Paragraphs[i].Text != "" {
			return d.Paragraphs[i].Alignment
		}
	}
	return ""
}

// ExtractDocx parses a DOCX deliverable (a zip archive) and extracts the
// visible text of word/document.xml: paragraph runs and table cell content.
// Decoding the raw bytes as text is meaningless for DOCX; this mirrors how
// document content assertions are meant to see the file.
func ExtractDocx(data []byte) (DocumentText, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return DocumentText{}, fmt.Errorf("open docx archive: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return DocumentText{}, fmt.Errorf("open document.xml: %w", err)
		}
		docXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return DocumentText{}, fmt.Errorf("read document.xml: %w", err)
		}
		break
	}
	if docXML == nil {
		return DocumentText{}, fmt.Errorf("docx archive has no word/document.xml")
	}

	return parseDocumentXML(docXML)
}

// parseDocumentXML walks WordprocessingML with a streaming decoder.
// Only three constructs matter here: paragraph boundaries (w:p), paragraph
// justification (w:jc inside w:pPr), and text runs (w:t).
func parseDocumentXML(data []byte) (DocumentText, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var doc DocumentText
	var cur DocumentParagraph
	inParagraph := false
	depth := 0 // nesting of w:p, tables nest paragraphs inside cells

	flush := func() {
		cur.Text = strings.TrimSpace(cur.Text)
		doc.Paragraphs = append(doc.Paragraphs, cur)
		cur = DocumentParagraph{}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return DocumentText{}, fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if depth == 0 {
					inParagraph = true
				}
				depth++
			case "jc":
				if inParagraph {
					for _, attr := range t.Attr {
						if attr.Name.Local == "val" {
							cur.Alignment = attr.Value
						}
					}
				}
			case "t":
				if inParagraph {
					var text string
					if err := dec.DecodeElement(&text, &t); err != nil {
						return DocumentText{}, fmt.Errorf("parse document.xml text run: %w", err)
					}
					cur.Text += text
				}
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				depth--
				if depth == 0 && inParagraph {
					inParagraph = false
					flush()
				}
			}
		}
	}

	return doc, nil
}
