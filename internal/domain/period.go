package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Period identifies the reporting slot an evidence file belongs to:
// "M1".."M12" for monthly, "Q1".."Q4" for quarterly, "Y1" otherwise.
type Period string

const PeriodYearly Period = "Y1"

var (
	qSuffix = regexp.MustCompile(`_Q(\d+)$`)
	mSuffix = regexp.MustCompile(`_Month(\d+)$`)
)

// ParsedFileName is the structured form of an evidence file name.
// Uploaded files follow the convention
//
//	{controlId}_{evidenceName}[_MonthN|_QN].pdf
//
// and the name is parsed back into its parts on upload and review paths.
type ParsedFileName struct {
	ControlID    string
	EvidenceName string
	Period       Period
}

// ParseFileName splits an evidence file name into control id, evidence
// name and period. Names without a period suffix map to PeriodYearly.
func ParseFileName(fileName string) (ParsedFileName, error) {
	base := strings.TrimSuffix(fileName, ".pdf")
	if base == fileName {
		base = strings.TrimSuffix(fileName, ".PDF")
	}
	controlID, rest, ok := strings.Cut(base, "_")
	if !ok || controlID == "" || rest == "" {
		return ParsedFileName{}, Validationf("file name %q does not match {controlId}_{evidenceName}[_MonthN|_QN].pdf", fileName)
	}

	period := PeriodYearly
	if m := qSuffix.FindStringSubmatch(rest); m != nil {
		period = Period("Q" + m[1])
		rest = strings.TrimSuffix(rest, m[0])
	} else if m := mSuffix.FindStringSubmatch(rest); m != nil {
		period = Period("M" + m[1])
		rest = strings.TrimSuffix(rest, m[0])
	}
	if rest == "" {
		return ParsedFileName{}, Validationf("file name %q is missing an evidence name", fileName)
	}
	return ParsedFileName{ControlID: controlID, EvidenceName: rest, Period: period}, nil
}

// periodIndex returns the kind prefix and 1-based slot number of p.
func periodIndex(p Period) (kind byte, n int, err error) {
	s := string(p)
	if len(s) < 2 {
		return 0, 0, Validationf("invalid period %q", p)
	}
	n, convErr := strconv.Atoi(s[1:])
	if convErr != nil || n < 1 {
		return 0, 0, Validationf("invalid period %q", p)
	}
	return s[0], n, nil
}

// PeriodCount is the number of reporting slots a frequency has.
func PeriodCount(f Frequency) int {
	switch f {
	case FreqMonthly:
		return 12
	case FreqQuarterly:
		return 4
	default:
		return 1
	}
}

// ValidatePeriod checks that p is a legal slot for the frequency:
// Q1..Q4 for quarterly, M1..M12 for monthly, Y1 otherwise.
func ValidatePeriod(f Frequency, p Period) error {
	kind, n, err := periodIndex(p)
	if err != nil {
		return err
	}
	switch f {
	case FreqQuarterly:
		if kind != 'Q' || n > 4 {
			return Validationf("period %q is not valid for quarterly evidence", p)
		}
	case FreqMonthly:
		if kind != 'M' || n > 12 {
			return Validationf("period %q is not valid for monthly evidence", p)
		}
	default:
		if p != PeriodYearly {
			return Validationf("period %q is not valid for %s evidence", p, f)
		}
	}
	return nil
}

// PriorPeriod returns the slot before p, if any. Q1, M1 and Y1 have no
// prior slot.
func PriorPeriod(p Period) (Period, bool) {
	kind, n, err := periodIndex(p)
	if err != nil || n <= 1 || kind == 'Y' {
		return "", false
	}
	return Period(fmt.Sprintf("%c%d", kind, n-1)), true
}

// CheckSequentialGate enforces the upload-ordering rule for recurring
// evidence: slot N+1 only opens once slot N's file is approved. The
// file for a slot is matched by parsing file names; a re-upload to an
// existing slot always passes.
func CheckSequentialGate(f Frequency, p Period, files []EvidenceFile) error {
	if f != FreqMonthly && f != FreqQuarterly {
		return nil
	}
	prior, ok := PriorPeriod(p)
	if !ok {
		return nil
	}
	for _, file := range files {
		parsed, err := ParseFileName(file.FileName)
		if err != nil {
			continue
		}
		if parsed.Period == p {
			return nil
		}
	}
	for _, file := range files {
		parsed, err := ParseFileName(file.FileName)
		if err != nil {
			continue
		}
		if parsed.Period == prior {
			if file.Status == FileApproved {
				return nil
			}
			return Validationf("period %s requires the %s upload to be approved first", p, prior)
		}
	}
	return Validationf("period %s cannot be uploaded before %s", p, prior)
}
