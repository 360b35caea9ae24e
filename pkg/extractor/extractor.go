// Package extractor turns the raw bytes of a downloaded file into plain
// text. The file kind is decided by the lowercased filename suffix through a
// fixed lookup table; anything not in the table is skipped.
package extractor

import (
	"fmt"
	"path"
	"strings"

	"github.com/xhad/docbot/internal/types"
)

type Kind int

const (
	KindSkip Kind = iota
	KindPDF
	KindDOCX
	KindXLSX
	KindXLS
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindDOCX:
		return "docx"
	case KindXLSX:
		return "xlsx"
	case KindXLS:
		return "xls"
	default:
		return "skip"
	}
}

var kinds = map[string]Kind{
	".pdf":  KindPDF,
	".docx": KindDOCX,
	".xlsx": KindXLSX,
	".xls":  KindXLS,
}

// KindOf maps a remote path to the kind of extractor that handles it.
func KindOf(filePath string) Kind {
	if kind, ok := kinds[strings.ToLower(path.Ext(filePath))]; ok {
		return kind
	}
	return KindSkip
}

type extractFunc func(data []byte) (string, error)

type Extractor struct {
	funcs map[Kind]extractFunc
}

func New() *Extractor {
	return &Extractor{
		funcs: map[Kind]extractFunc{
			KindPDF:  extractPDF,
			KindDOCX: extractDOCX,
			KindXLSX: extractXLSX,
			KindXLS:  extractXLS,
		},
	}
}

// Supported reports whether filePath has a suffix the extractor handles.
func (e *Extractor) Supported(filePath string) bool {
	_, ok := e.funcs[KindOf(filePath)]
	return ok
}

// Extract returns the text of the file and the kind that produced it. Files
// of an unsupported kind return KindSkip and no error.
func (e *Extractor) Extract(filePath string, data []byte) (text string, kind Kind, err error) {
	kind = KindOf(filePath)
	fn, ok := e.funcs[kind]
	if !ok {
		return "", KindSkip, nil
	}

	// The format parsers panic on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = types.NewPathFault(types.ExtractionFault, fmt.Sprintf("extract %s", kind), filePath, fmt.Errorf("malformed file: %v", r))
		}
	}()

	text, err = fn(data)
	if err != nil {
		return "", kind, types.NewPathFault(types.ExtractionFault, fmt.Sprintf("extract %s", kind), filePath, err)
	}

	return text, kind, nil
}
