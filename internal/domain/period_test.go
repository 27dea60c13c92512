package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileName(t *testing.T) {
	tests := []struct {
		in       string
		control  string
		evidence string
		period   Period
	}{
		{"C010_Evidence 1_Q1.pdf", "C010", "Evidence 1", "Q1"},
		{"C010_Evidence 1_Q4.pdf", "C010", "Evidence 1", "Q4"},
		{"C003_Access Review_Month12.pdf", "C003", "Access Review", "M12"},
		{"C007_Policy Document.pdf", "C007", "Policy Document", "Y1"},
		{"C007_Network_Diagram.pdf", "C007", "Network_Diagram", "Y1"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFileName(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.control, got.ControlID)
			assert.Equal(t, tt.evidence, got.EvidenceName)
			assert.Equal(t, tt.period, got.Period)
		})
	}
}

func TestParseFileName_Invalid(t *testing.T) {
	for _, in := range []string{"", "C010.pdf", "_Evidence.pdf", "C010_.pdf"} {
		_, err := ParseFileName(in)
		assert.Error(t, err, "input %q", in)
		assert.True(t, IsValidation(err))
	}
}

func TestValidatePeriod(t *testing.T) {
	assert.NoError(t, ValidatePeriod(FreqQuarterly, "Q1"))
	assert.NoError(t, ValidatePeriod(FreqQuarterly, "Q4"))
	assert.Error(t, ValidatePeriod(FreqQuarterly, "Q5"))
	assert.Error(t, ValidatePeriod(FreqQuarterly, "M1"))
	assert.NoError(t, ValidatePeriod(FreqMonthly, "M12"))
	assert.Error(t, ValidatePeriod(FreqMonthly, "M13"))
	assert.NoError(t, ValidatePeriod(FreqYearly, PeriodYearly))
	assert.Error(t, ValidatePeriod(FreqYearly, "Q1"))
	assert.NoError(t, ValidatePeriod(FreqAdHoc, PeriodYearly))
}

func TestPriorPeriod(t *testing.T) {
	p, ok := PriorPeriod("Q3")
	require.True(t, ok)
	assert.Equal(t, Period("Q2"), p)

	_, ok = PriorPeriod("Q1")
	assert.False(t, ok)
	_, ok = PriorPeriod("M1")
	assert.False(t, ok)
	_, ok = PriorPeriod(PeriodYearly)
	assert.False(t, ok)
}

func TestCheckSequentialGate(t *testing.T) {
	q1 := func(status FileStatus) []EvidenceFile {
		return []EvidenceFile{{FileName: "C010_Evidence 1_Q1.pdf", Status: status}}
	}

	// First slot is always open.
	assert.NoError(t, CheckSequentialGate(FreqQuarterly, "Q1", nil))

	// Q2 opens only once Q1 is approved.
	assert.Error(t, CheckSequentialGate(FreqQuarterly, "Q2", nil))
	assert.Error(t, CheckSequentialGate(FreqQuarterly, "Q2", q1(FilePending)))
	assert.Error(t, CheckSequentialGate(FreqQuarterly, "Q2", q1(FileRejected)))
	assert.NoError(t, CheckSequentialGate(FreqQuarterly, "Q2", q1(FileApproved)))

	// Non-recurring frequencies are never gated.
	assert.NoError(t, CheckSequentialGate(FreqYearly, PeriodYearly, nil))
	assert.NoError(t, CheckSequentialGate(FreqAdHoc, PeriodYearly, nil))

	// A re-upload to a slot that already has a file is never gated,
	// even when the prior slot has meanwhile dropped back to pending.
	bothPending := []EvidenceFile{
		{FileName: "C010_Evidence 1_Q1.pdf", Status: FilePending},
		{FileName: "C010_Evidence 1_Q2.pdf", Status: FilePending},
	}
	assert.NoError(t, CheckSequentialGate(FreqQuarterly, "Q2", bothPending))
	assert.Error(t, CheckSequentialGate(FreqQuarterly, "Q3", bothPending))
}
