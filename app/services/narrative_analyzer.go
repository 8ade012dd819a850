package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/amirphl/page-pilot/models"
	"github.com/amirphl/page-pilot/utils"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	maxNarrativePosts   = 10
	narrativeTextPrefix = 200
)

// NarrativeAnalyzer extracts qualitative content traits from successful posts
type NarrativeAnalyzer interface {
	Analyze(ctx context.Context, posts []models.TopPost, locale models.Locale) Result[models.NarrativeInsights]
}

// DisabledNarrativeAnalyzer always reports the analyzer as unavailable
type DisabledNarrativeAnalyzer struct{}

// Analyze implements NarrativeAnalyzer
func (DisabledNarrativeAnalyzer) Analyze(context.Context, []models.TopPost, models.Locale) Result[models.NarrativeInsights] {
	return Err[models.NarrativeInsights](ErrorKindUnavailable, "narrative analysis is disabled")
}

// AnthropicNarrativeAnalyzer asks a Claude model for a JSON description of what the posts share
type AnthropicNarrativeAnalyzer struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	logger    *log.Logger
}

// NewNarrativeAnalyzer returns an Anthropic backed analyzer, or a disabled one without an API key
func NewNarrativeAnalyzer(apiKey, model string, maxTokens int, logger *log.Logger, opts ...option.RequestOption) NarrativeAnalyzer {
	if strings.TrimSpace(apiKey) == "" {
		return DisabledNarrativeAnalyzer{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &AnthropicNarrativeAnalyzer{
		client:    &client,
		model:     model,
		maxTokens: int64(maxTokens),
		logger:    logger,
	}
}

// Analyze implements NarrativeAnalyzer
func (a *AnthropicNarrativeAnalyzer) Analyze(ctx context.Context, posts []models.TopPost, locale models.Locale) Result[models.NarrativeInsights] {
	if len(posts) < utils.MinPostsForNarrative {
		return Err[models.NarrativeInsights](ErrorKindRejected, "need at least %d posts, got %d", utils.MinPostsForNarrative, len(posts))
	}
	locale = locale.Concrete()

	prompt, err := buildNarrativePrompt(posts, locale)
	if err != nil {
		return Err[models.NarrativeInsights](ErrorKindRejected, "build prompt: %v", err)
	}

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: narrativeSystemPrompt(locale)}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return Err[models.NarrativeInsights](ErrorKindTransient, "narrative request failed: %v", err)
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	insights, err := ParseNarrativeResponse(text)
	if err != nil {
		a.logger.Printf("narrative: unparsable response (%d bytes): %v", len(text), err)
		return Err[models.NarrativeInsights](ErrorKindRejected, "parse narrative response: %v", err)
	}
	return Ok(insights)
}

type narrativePostEN struct {
	Number         int     `json:"number"`
	Text           string  `json:"text"`
	Length         int     `json:"length"`
	EngagementRate float64 `json:"engagement_rate"`
	Likes          int64   `json:"likes"`
	Comments       int64   `json:"comments"`
}

type narrativePostUK struct {
	Number         int     `json:"номер"`
	Text           string  `json:"текст"`
	Length         int     `json:"довжина"`
	EngagementRate float64 `json:"engagement_rate"`
	Likes          int64   `json:"лайки"`
	Comments       int64   `json:"коментарі"`
}

func buildNarrativePrompt(posts []models.TopPost, locale models.Locale) (string, error) {
	if len(posts) > maxNarrativePosts {
		posts = posts[:maxNarrativePosts]
	}

	var rows any
	if locale == models.LocaleEnglish {
		list := make([]narrativePostEN, 0, len(posts))
		for i, p := range posts {
			list = append(list, narrativePostEN{
				Number:         i + 1,
				Text:           utils.Truncate(p.Content, narrativeTextPrefix),
				Length:         p.TextLength,
				EngagementRate: utils.RoundTo(p.AvgEngagementRate, 4),
				Likes:          p.TotalLikes,
				Comments:       p.TotalComments,
			})
		}
		rows = list
	} else {
		list := make([]narrativePostUK, 0, len(posts))
		for i, p := range posts {
			list = append(list, narrativePostUK{
				Number:         i + 1,
				Text:           utils.Truncate(p.Content, narrativeTextPrefix),
				Length:         p.TextLength,
				EngagementRate: utils.RoundTo(p.AvgEngagementRate, 4),
				Likes:          p.TotalLikes,
				Comments:       p.TotalComments,
			})
		}
		rows = list
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", err
	}

	if locale == models.LocaleEnglish {
		return fmt.Sprintf(`Analyze %d most successful posts:

%s

Respond ONLY with JSON:
{
  "content_style": "style description",
  "effective_topics": ["topic1", "topic2"],
  "key_phrases": ["phrase1", "phrase2"],
  "tone": "tone description",
  "structure_tips": "tips",
  "emoji_usage": "how to use",
  "call_to_action": "recommendations"
}`, len(posts), data), nil
	}
	return fmt.Sprintf(`Проаналізуй %d найуспішніших постів:

%s

Відповідай ТІЛЬКИ JSON:
{
  "content_style": "стиль",
  "effective_topics": ["тема1", "тема2"],
  "key_phrases": ["фраза1", "фраза2"],
  "tone": "тон",
  "structure_tips": "поради",
  "emoji_usage": "як",
  "call_to_action": "чи потрібні"
}`, len(posts), data), nil
}

func narrativeSystemPrompt(locale models.Locale) string {
	if locale == models.LocaleEnglish {
		return "You are a content analysis expert. Respond ONLY with JSON."
	}
	return "Ти експерт з аналізу контенту. Відповідай ТІЛЬКИ JSON."
}

// ParseNarrativeResponse extracts the JSON object from a model reply, tolerating code fences
// and prose around it
func ParseNarrativeResponse(text string) (models.NarrativeInsights, error) {
	var out models.NarrativeInsights

	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return out, fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return out, err
	}
	return out, nil
}
