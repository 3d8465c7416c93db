package validation

import (
	"strings"
	"testing"

	"wasender/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhoneNumber(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain digits", input: "15550101234", want: "+15550101234"},
		{name: "already e164", input: "+15550101234", want: "+15550101234"},
		{name: "formatted", input: "+1 (555) 010-1234", want: "+15550101234"},
		{name: "dots and spaces", input: "1.555.010 1234", want: "+15550101234"},
		{name: "whitespace trimmed", input: "  +15550101234  ", want: "+15550101234"},
		{name: "empty", input: "", wantErr: true},
		{name: "letters", input: "call-me-maybe", wantErr: true},
		{name: "plus in middle", input: "555+0101234", wantErr: true},
		{name: "too short", input: "123456", wantErr: true},
		{name: "too long", input: "1234567890123456", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhoneNumber(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeInvalidNumberFormat, errors.GetCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateCampaignName(t *testing.T) {
	assert.NoError(t, ValidateCampaignName("Spring Sale 2026"))
	assert.NoError(t, ValidateCampaignName(""))
	assert.Error(t, ValidateCampaignName(strings.Repeat("x", 200)))
	assert.Error(t, ValidateCampaignName("line\nbreak"))
	assert.Error(t, ValidateCampaignName("nul\x00byte"))
}

func TestValidateMessageBody(t *testing.T) {
	assert.NoError(t, ValidateMessageBody("Hello there"))

	err := ValidateMessageBody("   ")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIncompleteCampaign, errors.GetCode(err))

	err = ValidateMessageBody(strings.Repeat("x", 5000))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
}

func TestDedupeRecipients(t *testing.T) {
	got, dropped := DedupeRecipients([]string{
		"+15550100001",
		"+1 (555) 010-0001", // duplicate after normalization
		"+15550100002",
		"garbage",
		"",
		"+15550100001",
	})

	assert.Equal(t, []string{"+15550100001", "+15550100002"}, got)
	assert.Equal(t, 1, dropped)
}

func TestDedupeRecipientsPreservesOrder(t *testing.T) {
	got, dropped := DedupeRecipients([]string{"+15550100003", "+15550100001", "+15550100002"})
	assert.Equal(t, []string{"+15550100003", "+15550100001", "+15550100002"}, got)
	assert.Zero(t, dropped)
}
