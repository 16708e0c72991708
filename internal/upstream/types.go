package upstream

import (
	"io"

	"github.com/tbourn/go-tutor-backend/internal/domain"
)

// AnalyzeRequest is one file sent to the analysis endpoint.
type AnalyzeRequest struct {
	File        io.Reader
	FileName    string
	ContentType string
	Mode        string
	Prompt      string
	UserID      string
}

// AnalysisResult is what the analysis endpoint extracted from a file.
type AnalysisResult struct {
	Summary string `json:"summary"`
	Content string `json:"content,omitempty"`
}

type analyzeResponse struct {
	Success        bool            `json:"success"`
	AnalysisResult *AnalysisResult `json:"analysisResult"`
	Error          string          `json:"error,omitempty"`
}

// ChatMessage is one turn of the conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of the chat completion endpoint.
type ChatRequest struct {
	Messages  []ChatMessage `json:"messages"`
	Mode      string        `json:"mode"`
	MaxTokens int           `json:"max_tokens"`
	UserID    string        `json:"userId"`
}

type chatResponse struct {
	Content string `json:"content"`
}

type validRequest struct {
	User string `json:"user"`
}

type validResponse struct {
	Message string `json:"message"`
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

type promptResponse struct {
	GeneratedText string `json:"generatedText"`
}

// TopicsRequest asks for main topics of a subject.
type TopicsRequest struct {
	Subject        string `json:"subject"`
	Difficulty     string `json:"difficulty"`
	EducationLevel string `json:"educationLevel"`
	Subtopics      string `json:"subtopics"`
	Count          int    `json:"count"`
}

type topicsResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Topics []domain.Topic `json:"topics"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// ContentRequest asks for the material of one subtopic.
type ContentRequest struct {
	MainTopic        string   `json:"mainTopic"`
	SubtopicTitle    string   `json:"subtopicTitle"`
	ContentType      string   `json:"contentType"`
	EducationLevel   string   `json:"educationLevel"`
	Subject          string   `json:"subject"`
	RelatedSubtopics []string `json:"relatedSubtopics"`
	Difficulty       string   `json:"difficulty"`
	Language         string   `json:"language"`
}

type contentResponse struct {
	Success bool   `json:"success"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}
