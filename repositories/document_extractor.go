package repositories

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/gabriel-vasile/mimetype"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/utils"
)

const (
	mimeTypeDocx      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	docxBodyPart      = "word/document.xml"
	maxDocxBodyLength = 32 << 20
)

// errNotWordDocument marks archives without a WordprocessingML body, as opposed to word documents
// whose body cannot be parsed.
var errNotWordDocument = errors.New("not a word document")

// DocumentExtractor turns an uploaded document into plain text. Plain text (including markdown)
// and Word .docx documents are supported.
type DocumentExtractor struct{}

func NewDocumentExtractor() DocumentExtractor {
	return DocumentExtractor{}
}

// DetectContentType returns the detected mime type, without parameters.
func (DocumentExtractor) DetectContentType(data []byte) string {
	return mimetype.Detect(data).String()
}

func (e DocumentExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", errors.Wrap(models.ErrExtractionFailed, "document is empty")
	}

	mtype := mimetype.Detect(data)
	logger := utils.LoggerFromContext(ctx)
	logger.DebugContext(ctx, "extracting text from document", "mime_type", mtype.String(), "size", len(data))

	switch {
	case mtype.Is(mimeTypeDocx):
		return extractDocxText(data)
	case mtype.Is("text/plain"):
		if !utf8.Valid(data) {
			return "", errors.Wrap(models.ErrExtractionFailed, "text document is not valid utf-8")
		}
		return strings.TrimSpace(string(data)), nil
	case mtype.Is("application/zip"):
		// some writers produce .docx archives that are detected as plain zip files
		text, err := extractDocxText(data)
		if errors.Is(err, errNotWordDocument) {
			return "", errors.Wrapf(models.ErrUnsupportedFormat, "zip archive is not a word document")
		}
		return text, err
	}

	return "", errors.Wrapf(models.ErrUnsupportedFormat, "documents of type %s are not supported", mtype.String())
}

func extractDocxText(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.Mark(errors.Wrap(models.ErrExtractionFailed, err.Error()), errNotWordDocument)
	}

	var body *zip.File
	for _, f := range archive.File {
		if f.Name == docxBodyPart {
			body = f
			break
		}
	}
	if body == nil {
		return "", errors.Mark(
			errors.Wrapf(models.ErrExtractionFailed, "archive has no %s part", docxBodyPart), errNotWordDocument)
	}

	reader, err := body.Open()
	if err != nil {
		return "", errors.Wrap(models.ErrExtractionFailed, err.Error())
	}
	defer reader.Close()

	text, err := wordprocessingText(io.LimitReader(reader, maxDocxBodyLength))
	if err != nil {
		return "", errors.Wrap(models.ErrExtractionFailed, err.Error())
	}
	return text, nil
}

// wordprocessingText collects the text runs of a WordprocessingML body, one line per paragraph.
func wordprocessingText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var (
		out       strings.Builder
		paragraph strings.Builder
		inText    bool
	)
	flush := func() {
		line := strings.TrimSpace(paragraph.String())
		if line != "" {
			out.WriteString(line)
			out.WriteByte('\n')
		}
		paragraph.Reset()
	}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				paragraph.WriteByte('\t')
			case "br", "cr":
				paragraph.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				paragraph.Write(t)
			}
		}
	}
	flush()

	return strings.TrimSpace(out.String()), nil
}
