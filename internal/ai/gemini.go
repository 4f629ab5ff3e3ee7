package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Duhfx/LembrAI/internal/domain"
	"github.com/Duhfx/LembrAI/internal/nlp"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	geminiModel   = "gemini-2.5-flash-lite"

	// RequestTimeout bounds one extractor call; a slow model must never
	// stall a dialog turn.
	RequestTimeout = 15 * time.Second
)

// GeminiExtractor asks Gemini for a structured read of the user's message and
// hands anything unusable to the offline extractor.
type GeminiExtractor struct {
	apiKey     string
	httpClient *http.Client
	parser     *nlp.Parser
	fallback   *OfflineExtractor
	now        func() time.Time
}

func NewGeminiExtractor(apiKey string, parser *nlp.Parser) *GeminiExtractor {
	return &GeminiExtractor{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: RequestTimeout,
		},
		parser:   parser,
		fallback: NewOfflineExtractor(parser),
		now:      time.Now,
	}
}

// IsConfigured returns true if the client has an API key.
func (g *GeminiExtractor) IsConfigured() bool {
	return g.apiKey != ""
}

func (g *GeminiExtractor) Extract(ctx context.Context, text string, history []domain.Turn, user UserSnapshot) (*Result, error) {
	if !g.IsConfigured() {
		return g.fallback.Extract(ctx, text, history, user)
	}

	raw, err := g.generate(ctx, g.buildPrompt(text, history, user))
	if err != nil {
		log.Printf("Gemini extract failed, using offline parser: %v", err)
		return g.fallback.Extract(ctx, text, history, user)
	}

	result, err := g.parseResponse(raw)
	if err != nil {
		log.Printf("Gemini response unusable, using offline parser: %v", err)
		return g.fallback.Extract(ctx, text, history, user)
	}
	return result, nil
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiExtractor) generate(ctx context.Context, prompt string) (string, error) {
	body := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal body: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", geminiBaseURL, geminiModel, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func (g *GeminiExtractor) buildPrompt(text string, history []domain.Turn, user UserSnapshot) string {
	var sb strings.Builder

	now := g.now()
	sb.WriteString("Você é o LembrAI, um assistente de lembretes em português brasileiro.\n\n")
	sb.WriteString("DATA E HORA ATUAL: " + g.parser.FormatMoment(now) + "\n")

	if user.PlanType != "" {
		fmt.Fprintf(&sb, "PLANO: %s | Lembretes ativos: %d | Criados este mês: %d\n",
			user.PlanType, user.ActiveReminders, user.MonthlyReminders)
	}

	if len(history) > 0 {
		sb.WriteString("\nHISTÓRICO DA CONVERSA:\n")
		for _, turn := range history {
			role := "Usuário"
			if turn.Role == "assistant" {
				role = "Você"
			}
			sb.WriteString(role + ": " + turn.Content + "\n")
		}
	}

	sb.WriteString("\nNOVA MENSAGEM DO USUÁRIO:\n\"" + text + "\"\n\n")
	sb.WriteString(`TAREFA:
Classifique a intenção e extraia os campos. Converta termos relativos
("amanhã", "segunda", "em 2 horas") para data/hora exata com base na data
atual. Datas sempre no futuro.

FORMATO DE RESPOSTA (apenas JSON, sem texto adicional):
{
  "intent": "create | query | delete | none",
  "reply": "resposta curta e simpática para o usuário",
  "message": "texto do lembrete (intent=create)",
  "dateTime": "YYYY-MM-DD HH:mm (intent=create, se presente)",
  "advanceMinutes": null,
  "queryPeriod": "hoje | amanhã | esta semana | ... (intent=query)",
  "deleteKeyword": "palavra-chave do lembrete a cancelar (intent=delete)",
  "confidence": "high | medium | low"
}

EXEMPLOS:
"me lembre de comprar leite amanhã às 15h" -> intent=create, message="Comprar leite", dateTime presente
"quais lembretes tenho essa semana?" -> intent=query, queryPeriod="esta semana"
"cancela o lembrete do dentista" -> intent=delete, deleteKeyword="dentista"`)

	return sb.String()
}

var reJSONBlock = regexp.MustCompile(`\{[\s\S]*\}`)

type geminiExtractPayload struct {
	Intent         string `json:"intent"`
	Reply          string `json:"reply"`
	Message        string `json:"message"`
	DateTime       string `json:"dateTime"`
	AdvanceMinutes *int   `json:"advanceMinutes"`
	QueryPeriod    string `json:"queryPeriod"`
	DeleteKeyword  string `json:"deleteKeyword"`
	Confidence     string `json:"confidence"`
}

// parseResponse validates the model output into the tagged Result. A variant
// missing its required slot degrades to IntentNone rather than erroring.
func (g *GeminiExtractor) parseResponse(raw string) (*Result, error) {
	jsonBlock := reJSONBlock.FindString(raw)
	if jsonBlock == "" {
		return nil, fmt.Errorf("no JSON in model output")
	}

	var payload geminiExtractPayload
	if err := json.Unmarshal([]byte(jsonBlock), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal model output: %w", err)
	}

	confidence := Confidence(payload.Confidence)
	switch confidence {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
	default:
		confidence = ConfidenceMedium
	}

	result := &Result{Reply: payload.Reply, Confidence: confidence}

	switch Intent(payload.Intent) {
	case IntentCreate:
		slots := &CreateSlots{Message: strings.TrimSpace(payload.Message)}
		if payload.DateTime != "" {
			if moment, err := time.ParseInLocation("2006-01-02 15:04", payload.DateTime, g.parser.Location()); err == nil {
				if g.parser.Validate(moment, g.now()) {
					slots.Moment = &moment
				} else {
					log.Printf("Discarding out-of-range datetime from model: %s", payload.DateTime)
				}
			}
		}
		if payload.AdvanceMinutes != nil && *payload.AdvanceMinutes >= 0 {
			slots.LeadMinutes = payload.AdvanceMinutes
		}
		result.Intent = IntentCreate
		result.Create = slots

	case IntentDelete:
		keyword := strings.TrimSpace(payload.DeleteKeyword)
		if keyword == "" {
			result.Intent = IntentNone
			break
		}
		result.Intent = IntentDelete
		result.Delete = &DeleteSlots{Keyword: keyword}

	case IntentQuery:
		period := strings.TrimSpace(payload.QueryPeriod)
		if period == "" {
			result.Intent = IntentNone
			break
		}
		result.Intent = IntentQuery
		result.Query = &QuerySlots{Period: period}

	default:
		result.Intent = IntentNone
	}

	return result, nil
}
