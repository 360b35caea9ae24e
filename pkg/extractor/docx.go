package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxDocumentPart = "word/document.xml"

func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != docxDocumentPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", docxDocumentPart, err)
		}
		defer rc.Close()

		paragraphs, err := bodyParagraphs(rc)
		if err != nil {
			return "", err
		}
		return strings.Join(paragraphs, "\n"), nil
	}

	return "", fmt.Errorf("missing %s", docxDocumentPart)
}

// bodyParagraphs returns the text of every paragraph that is a direct child
// of w:body, in document order. Paragraphs nested in tables, text boxes or
// content controls are not part of the body paragraph list, and text box
// content inside a body paragraph is not part of its text.
func bodyParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		stack      []string
		current    strings.Builder
		inPara     bool
		inText     bool
		nested     int
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", docxDocumentPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			switch {
			case name == "p" && len(stack) == 2 && stack[1] == "body":
				inPara = true
				current.Reset()
			case inPara && name == "p":
				nested++
			case inPara && nested == 0 && name == "t":
				inText = true
			case inPara && nested == 0 && name == "tab" && parentIs(stack, "r"):
				current.WriteByte('\t')
			case inPara && nested == 0 && (name == "br" || name == "cr") && parentIs(stack, "r"):
				current.WriteByte('\n')
			}
			stack = append(stack, name)

		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			switch {
			case t.Name.Local == "t":
				inText = false
			case t.Name.Local == "p" && inPara && len(stack) == 2:
				paragraphs = append(paragraphs, current.String())
				inPara = false
			case t.Name.Local == "p" && inPara:
				nested--
			}

		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}

	return paragraphs, nil
}

func parentIs(stack []string, name string) bool {
	return len(stack) > 0 && stack[len(stack)-1] == name
}
