package channels

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/unicode/norm"
)

// SMSMaxRunes is the length limit of a single short message.
const SMSMaxRunes = 70

// defaultPhoneRegion is used for numbers written without a country code.
const defaultPhoneRegion = "CN"

// SMSContent joins title and body, normalizes to NFC and truncates to
// SMSMaxRunes runes.
func SMSContent(title, body string) string {
	s := title
	if body != "" {
		s += ": " + body
	}
	s = norm.NFC.String(strings.TrimSpace(s))
	r := []rune(s)
	if len(r) > SMSMaxRunes {
		r = r[:SMSMaxRunes]
	}
	return string(r)
}

// phoneNumber parses raw with CN as the default region.
func phoneNumber(kind Kind, raw string) (*phonenumbers.PhoneNumber, error) {
	num, err := phonenumbers.Parse(raw, defaultPhoneRegion)
	if err != nil {
		return nil, fmt.Errorf("%w: %s phone number %q: %w", ErrInvalidConfig, kind, raw, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return nil, fmt.Errorf("%w: %s phone number %q is not valid", ErrInvalidConfig, kind, raw)
	}
	return num, nil
}

// domesticOrInternational renders a number the way mainland SMS gateways
// expect: national digits for +86, country code followed by national digits
// otherwise.
func domesticOrInternational(num *phonenumbers.PhoneNumber) string {
	nsn := phonenumbers.GetNationalSignificantNumber(num)
	if num.GetCountryCode() == 86 {
		return nsn
	}
	return strconv.Itoa(int(num.GetCountryCode())) + nsn
}

func normalizePhones(kind Kind, raw []string, format func(*phonenumbers.PhoneNumber) string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		num, err := phoneNumber(kind, r)
		if err != nil {
			return nil, err
		}
		out = append(out, format(num))
	}
	return out, nil
}

func e164(num *phonenumbers.PhoneNumber) string {
	return phonenumbers.Format(num, phonenumbers.E164)
}
