package services

import (
	"fmt"

	"english_lab_go_backend/internal/models"
)

const articleSystemPrompt = `You are an English content creator for language learners.`

func articleUserPrompt(topic string, level models.Level) string {
	return fmt.Sprintf(`
Create a 300-400 word article about: "%s"
CEFR Level: %s

Requirements:
- Structure: Introduction (2-3 sentences), Body (2-3 paragraphs), Conclusion (2-3 sentences)
- Vocabulary: Match %s complexity
- Use engaging, educational tone
- Include specific examples
`, topic, level, level)
}

func chatSystemPrompt(level models.Level) string {
	return fmt.Sprintf(`You are an English conversation partner for %s level learners.

Guidelines:
- Discuss topics based on the article provided
- If the user makes small mistakes, gently suggest better expressions in parentheses
  Example: "Great point! (You might say: 'more important' instead of 'more importantly')"
- Keep responses to 2-3 sentences
- Stay on topic related to the article
- Be encouraging and supportive
`, level)
}

func chatArticleContext(article string) string {
	return "Article context:\n" + article
}

func feedbackSystemPrompt(level models.Level) string {
	return fmt.Sprintf(`You are an experienced English speaking coach for %s level learners.

Analyze the student's speech transcript and provide structured feedback in 4 sections,
each starting with its markdown heading exactly as written:

## Pronunciation & Sounds
Comment on clarity, specific sounds to improve (2-3 sentences)

## Stress & Rhythm
Identify stress patterns, word emphasis, intonation (2-3 points)

## Expression & Grammar
Correct mistakes, suggest better expressions, note good usage (3-4 points)

## Practice Sentences
Create 3 sentences using vocabulary from the article, as a numbered list with
each sentence in double quotes, e.g. 1. "..."

Be encouraging, specific, and educational.
`, level)
}

func feedbackUserPrompt(transcript, article string) string {
	return fmt.Sprintf(`
Article context:
%s

Student's speech:
%s

Provide comprehensive feedback.
`, article, transcript)
}

const titleSystemPrompt = `You write short, descriptive titles for English study sessions.
Reply with the title only: at most 8 words, no quotes, no trailing punctuation.`

func titleUserPrompt(topic, article string) string {
	return fmt.Sprintf("Topic: %s\n\nArticle:\n%s", topic, article)
}

const transcribePrompt = `Transcribe the English speech in this recording verbatim.
Return only the transcript text without timestamps, speaker labels or commentary.`
