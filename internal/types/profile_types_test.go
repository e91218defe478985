package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfileFromAnalysis(t *testing.T) {
	result := &AnalysisResult{
		Skills: SkillSet{Technical: []string{"Python"}, Soft: []string{"Leadership"}, Tools: []string{"Jira"}},
		Experience: ExperienceInfo{
			Companies: []string{"Acme Corp"},
			Positions: []string{"Senior Engineer", "Data Analyst"},
			Durations: []string{"2019-2021"},
		},
		Education:   EducationInfo{Degrees: []string{"Master"}, Institutions: []string{}, Years: []string{"2018"}},
		ContactInfo: ContactInfo{Email: "a@b.com", Phone: "+15550001111", Location: "Berlin"},
	}

	p := ProfileFromAnalysis(result)
	assert.Equal(t, "a@b.com", p.PersonalInfo.Email)
	assert.Equal(t, "Senior Engineer", p.PersonalInfo.Title)
	assert.Equal(t, []string{"Python", "Jira"}, p.Skills.Technical)
	assert.Equal(t, []string{"Leadership"}, p.Skills.Soft)
	assert.Equal(t, []EducationEntry{{Degree: "Master", Year: "2018"}}, p.Education)
	assert.Len(t, p.Experience, 2)
	assert.Equal(t, ExperienceEntry{Position: "Data Analyst"}, p.Experience[1])
}

func TestProfileFromAnalysisNil(t *testing.T) {
	p := ProfileFromAnalysis(nil)
	assert.NotNil(t, p.Education)
	assert.NotNil(t, p.Skills.Technical)
	assert.Empty(t, p.PersonalInfo.Email)
}

func TestValidCategory(t *testing.T) {
	assert.True(t, ValidCategory(CategoryCV))
	assert.True(t, ValidCategory("academic_transcript"))
	assert.False(t, ValidCategory("selfie"))
}
