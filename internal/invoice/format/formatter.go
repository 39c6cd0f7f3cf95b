package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	seqPadRe = regexp.MustCompile(`\{SEQ(\d+)\}`)
	// The year segment is optional so legacy numbers such as INV-0005 still parse.
	sequenceRe = regexp.MustCompile(`INV-(?:\d{4}-)?(\d+)`)
)

const DefaultInvoiceNumberTemplate = "INV-{YYYY}-{SEQ4}"

// FormatInvoiceNumber formats a human-readable invoice number
// based on a template, invoice issue time, and sequence.
func FormatInvoiceNumber(
	template string,
	issuedAt time.Time,
	seq int64,
) (string, error) {

	if template == "" {
		return "", fmt.Errorf("invoice number template is empty")
	}

	if seq <= 0 {
		return "", fmt.Errorf("invalid invoice sequence: %d", seq)
	}

	out := expandDate(template, issuedAt)

	out = strings.ReplaceAll(out, "{SEQ}", strconv.FormatInt(seq, 10))

	out = seqPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := seqPadRe.FindStringSubmatch(m)
		if len(match) != 2 {
			return m
		}

		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 {
			return m
		}

		return fmt.Sprintf("%0*d", width, seq)
	})

	if strings.Contains(out, "{") || strings.Contains(out, "}") {
		return "", fmt.Errorf("unresolved token in invoice format: %s", out)
	}

	return out, nil
}

func expandDate(template string, issuedAt time.Time) string {
	out := strings.ReplaceAll(template, "{YYYY}", issuedAt.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", issuedAt.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", issuedAt.Format("01"))
	return strings.ReplaceAll(out, "{DD}", issuedAt.Format("02"))
}

// SequencePrefix returns the part of a formatted number that precedes the
// sequence, e.g. "INV-2026-" for the default template.
func SequencePrefix(template string, issuedAt time.Time) string {
	if i := strings.Index(template, "{SEQ"); i >= 0 {
		template = template[:i]
	}
	return expandDate(template, issuedAt)
}

// ParseSequence extracts the sequence from an invoice number. ok is false when
// the number does not follow the INV- scheme.
func ParseSequence(number string) (int64, bool) {
	match := sequenceRe.FindStringSubmatch(strings.TrimSpace(number))
	if len(match) != 2 {
		return 0, false
	}
	seq, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// NextSequence returns the sequence following the given invoice number,
// restarting at 1 when the number cannot be parsed.
func NextSequence(lastNumber string) int64 {
	seq, ok := ParseSequence(lastNumber)
	if !ok {
		return 1
	}
	return seq + 1
}
