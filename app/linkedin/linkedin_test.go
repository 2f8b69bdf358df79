package linkedin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobIDFromHref(t *testing.T) {
	tbl := []struct {
		href string
		id   string
	}{
		{"https://www.linkedin.com/jobs/view/4283/?refId=abc", "4283"},
		{"/jobs/view/123456789", "123456789"},
		{"https://www.linkedin.com/jobs/search/?keywords=go", ""},
		{"/jobs/view/", ""},
		{"", ""},
	}

	for _, tt := range tbl {
		assert.Equal(t, tt.id, JobIDFromHref(tt.href), tt.href)
	}
}

func TestLocationCandidates(t *testing.T) {
	tbl := []struct {
		location string
		expected []string
	}{
		{"Türkiye", []string{"Türkiye", "Turkey"}},
		{"turkiye", []string{"turkiye", "Turkey"}},
		{"Turkey", []string{"Turkey", "Türkiye"}},
		{"Berlin", []string{"Berlin"}},
	}

	for _, tt := range tbl {
		assert.Equal(t, tt.expected, locationCandidates(tt.location), tt.location)
	}
}

func TestLabelRe(t *testing.T) {
	re := labelRe("Past week")
	assert.True(t, re.MatchString("past week"))
	assert.True(t, re.MatchString("PAST WEEK"))
	assert.False(t, re.MatchString("past month"))

	// alternatives split on | before quoting
	re = labelRe("Show results|Apply")
	assert.True(t, re.MatchString("Show results"))
	assert.True(t, re.MatchString("apply"))
	assert.False(t, re.MatchString("Cancel"))

	// regexp metacharacters in labels are treated literally
	re = labelRe("C++ (senior)")
	assert.True(t, re.MatchString("c++ (senior) developer"))
	assert.False(t, re.MatchString("ccc senior"))
}

func TestMatchAnswer(t *testing.T) {
	answers := map[string]string{
		"years of experience":        "3",
		"experience with go":         "5",
		"notice period":              "2 weeks",
		"willing to relocate":        "yes",
		"years of experience with g": "4",
	}

	tbl := []struct {
		question string
		answer   string
		found    bool
	}{
		{"How many years of experience do you have?", "3", true},
		{"Years of experience with Go?", "4", true}, // longest matching key wins
		{"What is your notice period?", "2 weeks", true},
		{"Are you willing to relocate to Berlin?", "yes", true},
		{"Expected salary?", "", false},
		{"", "", false},
	}

	for _, tt := range tbl {
		got, ok := MatchAnswer(tt.question, answers)
		assert.Equal(t, tt.found, ok, tt.question)
		assert.Equal(t, tt.answer, got, tt.question)
	}
}

func TestMatchAnswerEmptyInputs(t *testing.T) {
	_, ok := MatchAnswer("anything", nil)
	assert.False(t, ok)

	_, ok = MatchAnswer("anything", map[string]string{" ": "skip me"})
	assert.False(t, ok)
}
