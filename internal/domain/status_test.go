package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func file(name string, status FileStatus) EvidenceFile {
	return EvidenceFile{FileName: name, Status: status}
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name  string
		files []EvidenceFile
		want  AssignmentStatus
	}{
		{
			name:  "no files stays pending",
			files: nil,
			want:  StatusPending,
		},
		{
			name:  "single pending file",
			files: []EvidenceFile{file("C010_Evidence 1_Q1.pdf", FilePending)},
			want:  StatusPendingApproval,
		},
		{
			name: "all approved",
			files: []EvidenceFile{
				file("C010_Evidence 1_Q1.pdf", FileApproved),
				file("C010_Evidence 1_Q2.pdf", FileApproved),
			},
			want: StatusApproved,
		},
		{
			name: "one rejected wins over approvals",
			files: []EvidenceFile{
				file("C010_Evidence 1_Q1.pdf", FileApproved),
				file("C010_Evidence 1_Q2.pdf", FileRejected),
			},
			want: StatusPartiallyApproved,
		},
		{
			name: "mixed approved and pending",
			files: []EvidenceFile{
				file("C010_Evidence 1_Q1.pdf", FileApproved),
				file("C010_Evidence 1_Q2.pdf", FilePending),
			},
			want: StatusPendingApproval,
		},
		{
			name: "rejected and pending",
			files: []EvidenceFile{
				file("C010_Evidence 1_Q1.pdf", FileRejected),
				file("C010_Evidence 1_Q2.pdf", FilePending),
			},
			want: StatusPartiallyApproved,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.files))
		})
	}
}

func TestDeriveStatus_QuarterlyLifecycle(t *testing.T) {
	// pending -> pending-approval -> partially-approved -> pending-approval -> approved
	var files []EvidenceFile
	assert.Equal(t, StatusPending, DeriveStatus(files))

	files = append(files, file("C010_Evidence 1_Q1.pdf", FilePending))
	assert.Equal(t, StatusPendingApproval, DeriveStatus(files))

	files[0].Status = FileApproved
	assert.Equal(t, StatusApproved, DeriveStatus(files))

	files = append(files, file("C010_Evidence 1_Q2.pdf", FileRejected))
	assert.Equal(t, StatusPartiallyApproved, DeriveStatus(files))

	// re-upload resets the rejected file to pending
	files[1].Status = FilePending
	assert.Equal(t, StatusPendingApproval, DeriveStatus(files))

	files[1].Status = FileApproved
	files = append(files,
		file("C010_Evidence 1_Q3.pdf", FileApproved),
		file("C010_Evidence 1_Q4.pdf", FileApproved),
	)
	assert.Equal(t, StatusApproved, DeriveStatus(files))
}
