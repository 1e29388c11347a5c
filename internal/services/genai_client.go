package services

import (
	"context"
	"errors"
	"strings"

	"english_lab_go_backend/internal/models"

	"github.com/google/generative-ai-go/genai"
)

// GenAIModel implements LanguageModel on Google's generative AI API.
type GenAIModel struct {
	client     *genai.Client
	largeModel string
	smallModel string
}

func NewGenAIModel(client *genai.Client, largeModel, smallModel string) *GenAIModel {
	return &GenAIModel{
		client:     client,
		largeModel: largeModel,
		smallModel: smallModel,
	}
}

func (g *GenAIModel) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", errors.New("completion request has no messages")
	}

	name := g.largeModel
	if req.Fast {
		name = g.smallModel
	}
	model := g.client.GenerativeModel(name)
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	cs := model.StartChat()
	last := req.Messages[len(req.Messages)-1]
	for _, m := range req.Messages[:len(req.Messages)-1] {
		cs.History = append(cs.History, &genai.Content{
			Role:  genaiRole(m.Role),
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

func (g *GenAIModel) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	model := g.client.GenerativeModel(g.smallModel)
	model.SetTemperature(0)

	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: audio},
		genai.Text(transcribePrompt),
	)
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

func genaiRole(role models.Role) string {
	if role == models.RoleAssistant {
		return "model"
	}
	return "user"
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			sb.WriteString(string(p))
		case *genai.Text:
			sb.WriteString(string(*p))
		}
	}
	return sb.String()
}
