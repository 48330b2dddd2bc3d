package generation

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/hashstructure/v2"

	"github.com/checkmarble/agent-eval-backend/models"
)

type digestInput struct {
	Source   models.TestCaseSourceType
	SuiteId  string
	Text     string
	TypeHint models.TestCaseType
}

// DescriptionDigest identifies a generation request. Whitespace differences do not change it.
func DescriptionDigest(input models.GenerateFromDescriptionInput) (string, error) {
	typeHint := input.TypeHint
	if typeHint == "" {
		typeHint = models.TestCaseTypeUnspecified
	}
	return digest(digestInput{
		Source:   models.TestCaseSourceText,
		SuiteId:  input.SuiteId.String(),
		Text:     normalizeText(input.Description),
		TypeHint: typeHint,
	})
}

func DocumentDigest(input models.GenerateFromDocumentInput) (string, error) {
	return digest(digestInput{
		Source:  models.TestCaseSourceDocument,
		SuiteId: input.SuiteId.String(),
		Text:    normalizeText(input.ExtractedText),
	})
}

func digest(input digestInput) (string, error) {
	hash, err := hashstructure.Hash(input, hashstructure.FormatV2, nil)
	if err != nil {
		return "", errors.Wrap(err, "could not hash generation input")
	}
	return fmt.Sprintf("%s:%016x", input.Source, hash), nil
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
