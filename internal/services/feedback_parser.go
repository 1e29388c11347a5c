package services

import (
	"regexp"
	"strings"
	"unicode"
)

// FeedbackSections is the coach's reply split by heading.
type FeedbackSections struct {
	Pronunciation string   `json:"pronunciation"`
	Stress        string   `json:"stress"`
	Expression    string   `json:"expression"`
	Practice      []string `json:"practice"`
}

var (
	pronunciationHeading = regexp.MustCompile(`(?i)##?\s*Pronunciation`)
	stressHeading        = regexp.MustCompile(`(?i)##?\s*Stress`)
	expressionHeading    = regexp.MustCompile(`(?i)##?\s*Expression`)
	practiceHeading      = regexp.MustCompile(`(?i)##?\s*Practice`)
	practiceLine         = regexp.MustCompile(`\d+\.\s*"([^"]+)"`)
)

// DefaultPractice is used when no numbered, quoted practice sentence is found.
var DefaultPractice = []string{"Practice sentence 1", "Practice sentence 2", "Practice sentence 3"}

// ParseFeedbackSections extracts the four named sections. A missing section
// is the empty string.
func ParseFeedbackSections(feedback string) FeedbackSections {
	sections := FeedbackSections{
		Pronunciation: extractSection(feedback, pronunciationHeading),
		Stress:        extractSection(feedback, stressHeading),
		Expression:    extractSection(feedback, expressionHeading),
	}

	for _, m := range practiceLine.FindAllStringSubmatch(extractSection(feedback, practiceHeading), -1) {
		sections.Practice = append(sections.Practice, m[1])
	}
	if len(sections.Practice) == 0 {
		sections.Practice = append([]string(nil), DefaultPractice...)
	}
	return sections
}

// extractSection returns the text from the heading up to the next "##" or
// the end of the input, without trailing whitespace.
func extractSection(text string, heading *regexp.Regexp) string {
	loc := heading.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	end := len(text)
	if i := strings.Index(text[loc[1]:], "##"); i >= 0 {
		end = loc[1] + i
	}
	return strings.TrimRightFunc(text[loc[0]:end], unicode.IsSpace)
}
