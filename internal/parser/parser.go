package parser

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoContent         = errors.New("no text content found")
)

// Document is the raw text extracted from one file
type Document struct {
	Text     string
	FileType string
	// Pages counts pdf pages, docx paragraphs, xlsx sheets, pptx slides or text lines
	Pages int
}

// FileType returns the lower-cased extension of name without the dot
func FileType(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Extract reads the file at filePath as fileType ("pdf", "docx", ...).
// An empty fileType is taken from the path.
func Extract(filePath, fileType string) (*Document, error) {
	if fileType == "" {
		fileType = FileType(filePath)
	}
	fileType = strings.ToLower(strings.TrimPrefix(fileType, "."))

	var (
		doc *Document
		err error
	)
	switch fileType {
	case "pdf":
		doc, err = parsePDF(filePath)
	case "docx":
		doc, err = parseDOCX(filePath)
	case "xlsx":
		doc, err = parseXLSX(filePath)
	case "pptx":
		doc, err = parsePPTX(filePath)
	case "md", "markdown":
		doc, err = parseMarkdown(filePath)
	case "txt":
		doc, err = parseText(filePath)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileType)
	}
	if err != nil {
		return nil, err
	}

	doc.FileType = fileType
	if strings.TrimSpace(doc.Text) == "" {
		return nil, ErrNoContent
	}
	return doc, nil
}

func parsePDF(filePath string) (*Document, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Get file size for reader initialization
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []string
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read pdf page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(pageText))
	}
	return &Document{Text: strings.Join(pages, "\n\n"), Pages: numPages}, nil
}

func parseDOCX(filePath string) (*Document, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}
	defer r.Close()

	paragraphs, err := docxParagraphs(r.Editable().GetContent())
	if err != nil {
		return nil, fmt.Errorf("failed to read docx content: %w", err)
	}
	return &Document{Text: strings.Join(paragraphs, "\n"), Pages: len(paragraphs)}, nil
}

// docxParagraphs collects the text runs of word/document.xml paragraph by paragraph
func docxParagraphs(content string) ([]string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if p := strings.TrimSpace(current.String()); p != "" {
					paragraphs = append(paragraphs, p)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if p := strings.TrimSpace(current.String()); p != "" {
		paragraphs = append(paragraphs, p)
	}
	return paragraphs, nil
}

func parseXLSX(filePath string) (*Document, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var text strings.Builder
	for _, sheetName := range sheets {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
		}
		if len(rows) == 0 {
			continue
		}
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
		text.WriteString("\n")
	}
	return &Document{Text: text.String(), Pages: len(sheets)}, nil
}

// parsePPTX reads the text runs of every ppt/slides/slideN.xml in slide order
func parsePPTX(filePath string) (*Document, error) {
	r, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pptx: %w", err)
	}
	defer r.Close()

	var slides []*zip.File
	for _, f := range r.File {
		if slideNumber(f.Name) > 0 {
			slides = append(slides, f)
		}
	}
	sort.Slice(slides, func(i, j int) bool {
		return slideNumber(slides[i].Name) < slideNumber(slides[j].Name)
	})

	var text strings.Builder
	for _, f := range slides {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}

		paragraphs, err := docxParagraphs(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.Name, err)
		}
		if len(paragraphs) == 0 {
			continue
		}
		text.WriteString(fmt.Sprintf("## Slide %d\n", slideNumber(f.Name)))
		text.WriteString(strings.Join(paragraphs, "\n"))
		text.WriteString("\n\n")
	}
	return &Document{Text: text.String(), Pages: len(slides)}, nil
}

// slideNumber returns N for ppt/slides/slideN.xml and 0 for any other entry
func slideNumber(name string) int {
	rest, ok := strings.CutPrefix(name, "ppt/slides/slide")
	if !ok {
		return 0
	}
	rest, ok = strings.CutSuffix(rest, ".xml")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0
	}
	return n
}

func parseText(filePath string) (*Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	content := strings.ToValidUTF8(string(data), "\uFFFD")
	return &Document{Text: content, Pages: strings.Count(content, "\n") + 1}, nil
}
