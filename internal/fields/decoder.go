package fields

import "strings"

// DecodeHouseNumber infers the house number from the fractional part of the
// raw amount string. Residents encode their house in the cents of the
// transfer: ".4" means house 40, ".04" means house 4. Three or more
// fractional digits, a zero value, or a value past MaxHouse cannot be a
// house and yield ok=false.
//
// This is the single source of truth for attributing a payment to a house
// when the receipt text does not state one.
func (c ValidatorConfig) DecodeHouseNumber(rawAmount string) (int, bool) {
	amount := strings.TrimSpace(rawAmount)

	sep := strings.IndexAny(amount, ".,")
	if sep < 0 || sep == len(amount)-1 {
		return 0, false
	}

	frac := amount[sep+1:]
	if strings.ContainsAny(frac, ".,") {
		return 0, false
	}

	var n int
	switch len(frac) {
	case 1:
		d := int(frac[0] - '0')
		if d < 0 || d > 9 {
			return 0, false
		}
		n = d * 10
	case 2:
		tens := int(frac[0] - '0')
		ones := int(frac[1] - '0')
		if tens < 0 || tens > 9 || ones < 0 || ones > 9 {
			return 0, false
		}
		n = tens*10 + ones
	default:
		return 0, false
	}

	if n < c.MinHouse || n > c.MaxHouse {
		return 0, false
	}

	return n, true
}
