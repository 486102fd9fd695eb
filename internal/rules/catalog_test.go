package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_Profiles(t *testing.T) {
	tests := []struct {
		program   Program
		questions int
		marks     float64
		minutes   int
		ratio     float64
		subjects  int
	}{
		{ProgramIOE, 90, 140, 120, 0.1, 4},
		{ProgramMBBS, 200, 200, 180, 0.25, 5},
	}

	for _, tt := range tests {
		t.Run(string(tt.program), func(t *testing.T) {
			rs, err := Lookup(tt.program)
			require.NoError(t, err)

			assert.Equal(t, tt.program, rs.Program)
			assert.Equal(t, tt.questions, rs.TotalQuestions)
			assert.Equal(t, tt.marks, rs.TotalMarks)
			assert.Equal(t, tt.minutes, rs.DurationMinutes)
			assert.Equal(t, tt.ratio, rs.NegativeMarkingRatio)
			assert.Len(t, rs.Subjects, tt.subjects)
			assert.NotEmpty(t, rs.Instructions)
			assert.NoError(t, rs.Validate())
		})
	}
}

func TestLookup_UnknownProgram(t *testing.T) {
	_, err := Lookup("law")
	assert.ErrorIs(t, err, ErrUnknownProgram)
	assert.False(t, Program("law").Valid())
	assert.Panics(t, func() { MustLookup("law") })
}

func TestLookup_ReturnsCopy(t *testing.T) {
	rs := MustLookup(ProgramIOE)
	rs.Subjects[0].Questions = 999
	rs.Instructions[0] = "changed"

	again := MustLookup(ProgramIOE)
	assert.Equal(t, 30, again.Subjects[0].Questions)
	assert.NotEqual(t, "changed", again.Instructions[0])
}

func TestValidate_SumMismatch(t *testing.T) {
	rs := MustLookup(ProgramMBBS)
	rs.Subjects[0].Questions++
	assert.Error(t, rs.Validate())

	rs = MustLookup(ProgramMBBS)
	rs.Subjects[0].Marks += 0.5
	assert.Error(t, rs.Validate())
}

func TestPrograms(t *testing.T) {
	assert.Equal(t, []Program{ProgramIOE, ProgramMBBS}, Programs())
	for _, p := range Programs() {
		assert.True(t, p.Valid())
	}
}

func TestSubjectQuota(t *testing.T) {
	rs := MustLookup(ProgramIOE)
	assert.Equal(t, 30, rs.SubjectQuota("Mathematics"))
	assert.Equal(t, 0, rs.SubjectQuota("Biology"))
}
