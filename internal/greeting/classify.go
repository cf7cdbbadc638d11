package greeting

import "strconv"

// Classify resolves the event category for a DD.MM.YYYY date. A non-empty
// explicit category is returned unchanged and the date is not inspected.
// Only day and month take part in the rules; the year is ignored.
func Classify(date string, explicit EventCategory) (EventCategory, error) {
	if explicit != "" {
		return explicit, nil
	}

	day, month, err := ParseDate(date)
	if err != nil {
		return "", err
	}

	switch {
	case day == 1 && month == 1:
		return NewYear, nil
	case day == 8 && month == 3:
		return WomensDay, nil
	default:
		return Birthday, nil
	}
}

// ParseDate strictly parses DD.MM.YYYY and returns day and month. Leap years
// are not checked, so 31.02.2025 is accepted.
func ParseDate(date string) (day, month int, err error) {
	if len(date) != 10 || date[2] != '.' || date[5] != '.' {
		return 0, 0, &ParseError{Input: date, Reason: "expected DD.MM.YYYY"}
	}
	for i, ch := range date {
		if i == 2 || i == 5 {
			continue
		}
		if ch < '0' || ch > '9' {
			return 0, 0, &ParseError{Input: date, Reason: "expected DD.MM.YYYY"}
		}
	}

	day, _ = strconv.Atoi(date[0:2])
	month, _ = strconv.Atoi(date[3:5])
	if day < 1 || day > 31 {
		return 0, 0, &ParseError{Input: date, Reason: "day out of range"}
	}
	if month < 1 || month > 12 {
		return 0, 0, &ParseError{Input: date, Reason: "month out of range"}
	}
	return day, month, nil
}
