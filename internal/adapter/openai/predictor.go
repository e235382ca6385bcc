package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/riverwatch-service/internal/domain"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrMalformedResponse is returned when the model's reply is not a usable
// prediction.
var ErrMalformedResponse = errors.New("malformed prediction response")

// Predictor implements domain.Predictor with an OpenAI chat model constrained
// to a JSON schema.
type Predictor struct {
	client openai.Client
	model  string
	schema any
	logger *slog.Logger
}

// GenerateSchema generates a JSON schema for a given type.
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// NewPredictor creates a Predictor. Extra request options are appended after
// the API key, which lets tests point the client at a local server.
func NewPredictor(apiKey, model string, logger *slog.Logger, opts ...option.RequestOption) (*Predictor, error) {
	if apiKey == "" {
		return nil, errors.New("openai API key is empty")
	}
	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	return &Predictor{
		client: openai.NewClient(clientOpts...),
		model:  model,
		schema: GenerateSchema[domain.Prediction](),
		logger: logger,
	}, nil
}

const systemPrompt = `You are an experienced river flood-prevention expert. Using the real-time river data provided, analyze the flood risk and give local residents calm, precise, concrete instructions.

Produce a JSON object with:
1. flood_probability_3hr: the probability of reaching the flood danger level within the next 3 hours, as a percentage string (for example "60%").
2. time_to_danger_level: if the current rate of rise continues, the estimated time until the danger level is reached (for example "about 1 hour 45 minutes").
3. resident_actions: the three most important actions residents should take now, ordered by priority and matched to the danger level. Keep each one short and specific.

Output JSON only.`

// Predict asks the model for a flood forecast for the given trend.
func (p *Predictor) Predict(ctx context.Context, trend domain.TrendResult, dangerLevelCM float64) (domain.Prediction, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "flood_prediction",
		Description: openai.String("Flood probability, time to danger level and resident actions"),
		Schema:      p.schema,
		Strict:      openai.Bool(true),
	}
	respFormat := openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
	}

	chat, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(trend, dangerLevelCM)),
		},
		ResponseFormat: respFormat,
		Model:          openai.ChatModel(p.model),
	})
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("openai chat completion: %w", err)
	}

	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return domain.Prediction{}, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	content := chat.Choices[0].Message.Content
	prediction, err := parsePrediction(content)
	if err != nil {
		p.logger.Warn("unusable prediction response", "error", err, "raw_response", content)
		return domain.Prediction{}, err
	}
	return prediction, nil
}

// userPrompt renders the river data block of the request.
func userPrompt(trend domain.TrendResult, dangerLevelCM float64) string {
	var b strings.Builder
	b.WriteString("# Real-time river data\n")
	fmt.Fprintf(&b, "- Current water level: %.2f cm\n", trend.CurrentLevel)
	fmt.Fprintf(&b, "- Rate of change: %+.2f cm/min (positive is rising)\n", trend.ChangePerMinute)
	fmt.Fprintf(&b, "- Air temperature: %.1f °C\n", trend.Temperature)
	fmt.Fprintf(&b, "- Relative humidity: %.1f %%\n", trend.Humidity)
	fmt.Fprintf(&b, "- Flood danger level: %g cm\n", dangerLevelCM)
	return b.String()
}

// parsePrediction decodes a model reply, tolerating markdown code fences.
func parsePrediction(content string) (domain.Prediction, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var pred domain.Prediction
	if err := json.Unmarshal([]byte(cleaned), &pred); err != nil {
		return domain.Prediction{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	pred.FloodProbability3h = strings.TrimSpace(pred.FloodProbability3h)
	pred.TimeToDangerLevel = strings.TrimSpace(pred.TimeToDangerLevel)
	if pred.FloodProbability3h == "" || pred.TimeToDangerLevel == "" {
		return domain.Prediction{}, fmt.Errorf("%w: missing probability or time to danger level", ErrMalformedResponse)
	}

	actions := make([]string, 0, domain.MaxResidentActions)
	for _, a := range pred.ResidentActions {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		actions = append(actions, a)
		if len(actions) == domain.MaxResidentActions {
			break
		}
	}
	pred.ResidentActions = actions
	return pred, nil
}
