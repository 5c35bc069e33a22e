package accounts

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// phoneListDelimiter joins multiple numbers into the scalar phone column.
const phoneListDelimiter = ","

var nonPhoneRunes = regexp.MustCompile(`[^\d,+]`)

// PhoneList splits the scalar phone column into individual numbers, dropping
// blank entries and preserving order.
func (u *User) PhoneList() []string {
	if u.Phone == "" {
		return nil
	}

	var result []string
	for _, entry := range strings.Split(u.Phone, phoneListDelimiter) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		result = append(result, entry)
	}

	return result
}

// SetPhoneList stores the given numbers as a delimited scalar and refreshes
// the normalized short form. Blank entries are dropped; an empty list clears
// both columns.
func (u *User) SetPhoneList(numbers []string) {
	var clean []string
	for _, entry := range numbers {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		clean = append(clean, entry)
	}

	u.SetPhone(strings.Join(clean, phoneListDelimiter))
}

// SetPhone writes the phone column and derives the normalized digit form.
func (u *User) SetPhone(phone string) {
	u.Phone = phone
	u.PhoneShort = normalizePhones(phone)
}

// normalizePhones reduces a delimited phone list to digits. Numbers that
// parse as valid E.164 candidates keep their country code; anything else
// falls back to stripping non-digit characters.
func normalizePhones(phone string) string {
	if phone == "" {
		return ""
	}

	var short []string
	for _, entry := range strings.Split(phone, phoneListDelimiter) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if num, err := phonenumbers.Parse(entry, ""); err == nil {
			short = append(short, fmt.Sprintf("+%d%d", num.GetCountryCode(), num.GetNationalNumber()))
			continue
		}

		stripped := nonPhoneRunes.ReplaceAllString(entry, "")
		if stripped != "" {
			short = append(short, stripped)
		}
	}

	return strings.Join(short, phoneListDelimiter)
}
