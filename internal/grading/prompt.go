package grading

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EvaluationUnit is the per-question payload sent to the grading
// model. For multiple-choice questions both answers are option
// letters; for free-text questions they are raw text.
type EvaluationUnit struct {
	QuestionID    uuid.UUID `json:"questionId"`
	QuestionText  string    `json:"questionText"`
	CorrectAnswer string    `json:"correctAnswer"`
	StudentAnswer string    `json:"studentAnswer"`
}

// Judgment is the per-question verdict returned by the grading model.
// It is untrusted external input: question ids must be validated
// against the quiz's known question set before being applied.
type Judgment struct {
	QuestionID uuid.UUID `json:"questionId"`
	Rating     int       `json:"rating"`
	Confidence int       `json:"confidence"`
	Feedback   string    `json:"feedback"`
}

// Response is the decoded body of a grading model reply.
type Response struct {
	Results []Judgment `json:"results"`
}

const instructions = `You are a grading assistant. You will receive a list of questions in JSON format. For each question you get the student's answer and the correct answer; your job is to grade each answer against the correct answer. You have to respond in JSON only, with exactly this format:
{
    "results": [
        {
            "questionId": "uuid",
            "rating": out of 10,
            "confidence": out of 10,
            "feedback": "string"
        }
    ]
}
INPUT:
`

// BuildPrompt assembles the batched evaluation request: the fixed
// instruction template followed by the evaluation units as a JSON
// array.
func BuildPrompt(units []EvaluationUnit) (string, error) {
	input, err := json.Marshal(units)
	if err != nil {
		return "", fmt.Errorf("failed to marshal evaluation units: %w", err)
	}
	return instructions + string(input), nil
}

// DecodeResponse strips any markdown wrapping from the raw model reply
// and decodes the judgment list.
func DecodeResponse(raw string) (*Response, error) {
	cleaned := ExtractJSON(raw)

	var resp Response
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode grading response: %w", err)
	}
	return &resp, nil
}
