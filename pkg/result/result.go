package result

import "github.com/backsoul/devquiz/pkg/models"

// Summarize calcula el resumen de la sesión. El total es la cantidad de
// preguntas de la sesión, no la cantidad de respuestas registradas.
func Summarize(questions []models.Question, answers []models.AnswerRecord) models.ResultSummary {
	summary := models.ResultSummary{
		TotalCount:  len(questions),
		MissedItems: make([]models.MissedItem, 0),
	}
	for i := range answers {
		record := &answers[i]
		if record.IsCorrect {
			summary.CorrectCount++

			continue
		}
		summary.MissedItems = append(summary.MissedItems, models.MissedItem{
			QuestionText:  record.Question.Prompt,
			CorrectAnswer: record.CorrectOption.Text,
			UserAnswer:    userAnswer(record),
			Explanation:   record.Question.Explanation,
		})
	}

	return summary
}

func userAnswer(record *models.AnswerRecord) string {
	if record.SelectedOption.Text == "" {
		return models.TimeUpText
	}

	return record.SelectedOption.Text
}
