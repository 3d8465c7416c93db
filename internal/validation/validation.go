package validation

import (
	"fmt"
	"strings"
	"unicode"

	"wasender/internal/constants"
	"wasender/internal/errors"
)

// NormalizePhoneNumber strips formatting characters and returns the number in
// E.164 form (leading +, digits only). Fails with INVALID_NUMBER_FORMAT when
// the input is not a plausible phone number.
func NormalizePhoneNumber(phone string) (string, error) {
	trimmed := strings.TrimSpace(phone)
	if trimmed == "" {
		return "", errors.New(errors.ErrCodeInvalidNumberFormat, "phone number cannot be empty")
	}

	var digits strings.Builder
	for i, r := range trimmed {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case r == '+' && i == 0:
			// Leading plus is re-added below
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// Formatting characters, dropped
		default:
			return "", errors.New(errors.ErrCodeInvalidNumberFormat,
				fmt.Sprintf("phone number contains invalid character %q", r))
		}
	}

	n := digits.Len()
	if n < constants.MinPhoneNumberLength {
		return "", errors.New(errors.ErrCodeInvalidNumberFormat,
			fmt.Sprintf("phone number must be at least %d digits", constants.MinPhoneNumberLength))
	}
	if n > constants.MaxPhoneNumberLength {
		return "", errors.New(errors.ErrCodeInvalidNumberFormat,
			fmt.Sprintf("phone number too long (max %d digits)", constants.MaxPhoneNumberLength))
	}

	return "+" + digits.String(), nil
}

// ValidatePhoneNumber checks a phone number without returning the normalized form.
func ValidatePhoneNumber(phone string) error {
	_, err := NormalizePhoneNumber(phone)
	return err
}

// ValidateCampaignName validates campaign name length and content
func ValidateCampaignName(name string) error {
	if len(name) > constants.MaxCampaignNameLen {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("campaign name too long (max %d characters)", constants.MaxCampaignNameLen))
	}
	for _, char := range name {
		if char == '\x00' || char == '\n' || char == '\r' {
			return errors.New(errors.ErrCodeInvalidInput, "campaign name contains invalid characters")
		}
	}
	return nil
}

// ValidateMessageBody validates message body length
func ValidateMessageBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return errors.New(errors.ErrCodeIncompleteCampaign, "message body cannot be empty")
	}
	if len(body) > constants.MaxMessageLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("message too long (max %d characters)", constants.MaxMessageLength))
	}
	return nil
}

// DedupeRecipients normalizes recipient numbers, drops malformed ones and
// removes duplicates while preserving insertion order. The second return value
// is the count of dropped entries.
func DedupeRecipients(raw []string) ([]string, int) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	dropped := 0

	for _, r := range raw {
		normalized, err := NormalizePhoneNumber(r)
		if err != nil {
			if strings.TrimSpace(r) != "" {
				dropped++
			}
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}

	return out, dropped
}
