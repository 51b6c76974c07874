package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateLength_CountsRunes(t *testing.T) {
	assert.NoError(t, ValidateLength("поле", "пчела", 5, 5))
	assert.Error(t, ValidateLength("поле", "пчела", 6, 0))
	assert.Error(t, ValidateLength("поле", "пчела", 0, 4))
}

func TestValidateGig_Fields(t *testing.T) {
	assert.NoError(t, ValidateGig("Разметка", "500 изображений", "", ""))
	assert.Error(t, ValidateGig("  ", "d", "", ""))
	assert.Error(t, ValidateGig("t", "", "", ""))
	assert.Error(t, ValidateGig(strings.Repeat("a", MaxGigTitleLength+1), "d", "", ""))
	assert.Error(t, ValidateGig("t", "d", "", strings.Repeat("c", MaxCategoryLength+1)))
}

func TestValidateProposal_Hours(t *testing.T) {
	assert.NoError(t, ValidateProposal("сделаю", 0.5))
	assert.Error(t, ValidateProposal("сделаю", 0))
	assert.Error(t, ValidateProposal("сделаю", MaxEstimatedHours+1))
	assert.Error(t, ValidateProposal("", 1))
}

func TestValidateDeliverable_NeedsContentOrLink(t *testing.T) {
	assert.NoError(t, ValidateDeliverable("t", "текст", ""))
	assert.NoError(t, ValidateDeliverable("t", "", "https://example.com/out.zip"))
	assert.Error(t, ValidateDeliverable("t", "", ""))
	assert.Error(t, ValidateDeliverable("t", "", "ftp://example.com/out.zip"))
}

func TestValidateExternalLink_Cases(t *testing.T) {
	cases := []struct {
		name    string
		link    string
		wantErr bool
	}{
		{"empty", "", false},
		{"https", "https://example.com/a", false},
		{"no scheme", "example.com/a", true},
		{"no host", "https:///a", true},
		{"too long", "https://example.com/" + strings.Repeat("a", MaxExternalLinkLength), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateExternalLink(tc.link)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateDisputeReason_EvidenceOptional(t *testing.T) {
	assert.NoError(t, ValidateDisputeReason("не сдано", ""))
	assert.Error(t, ValidateDisputeReason(" ", "скриншот"))
	assert.Error(t, ValidateDisputeReason("r", strings.Repeat("e", MaxEvidenceLength+1)))
}
