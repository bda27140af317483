package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"food-share-server/config"
	applog "food-share-server/logger"
	"food-share-server/models"
)

// AIService rates listing quality with Gemini, or with a local heuristic
// when no API key is configured.
type AIService struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type GeminiRequest struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

type Content struct {
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text,omitempty"`
}

type GenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	TopK             int     `json:"topK"`
	TopP             float64 `json:"topP"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

// ListingRating is the outcome of rating a listing
type ListingRating struct {
	Rating   float64 `json:"rating"`
	Feedback string  `json:"feedback"`
	Source   string  `json:"source"`
}

func NewAIService(cfg config.AIConfig) *AIService {
	if cfg.GeminiAPIKey == "" {
		applog.Log.Warn("⚠️ GEMINI_API_KEY not set, listing ratings use the local heuristic")
	}

	return &AIService{
		apiKey:  cfg.GeminiAPIKey,
		model:   cfg.GeminiModel,
		baseURL: strings.TrimRight(cfg.GeminiBaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (ai *AIService) Enabled() bool {
	return ai.apiKey != ""
}

// RateListing scores a listing between 0 and 5
func (ai *AIService) RateListing(ctx context.Context, listing *models.FoodListing) (*ListingRating, error) {
	if !ai.Enabled() {
		return heuristicRating(listing), nil
	}

	text, err := ai.callGeminiAPI(ctx, buildRatingPrompt(listing))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAIUnavailable, err)
	}

	rating, err := parseRatingResponse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAIUnavailable, err)
	}
	return rating, nil
}

func buildRatingPrompt(listing *models.FoodListing) string {
	return fmt.Sprintf(`You review food donation listings on a community food-sharing platform.
Rate how useful and trustworthy this listing is for a receiver, from 0 (unusable) to 5 (excellent).
Consider clarity of the description, whether quantity and food type are specific,
and whether the pickup window leaves enough time before expiry.

Title: %s
Food type: %s
Quantity: %s
Description: %s
Pickup: %s
Expiry: %s
Has photo: %t

Respond only with JSON: {"rating": <number 0-5>, "feedback": "<one short sentence>"}`,
		listing.Title,
		listing.FoodType,
		listing.Quantity,
		listing.Description,
		listing.PickupTime.Format("2006-01-02 15:04 MST"),
		listing.ExpiryTime.Format("2006-01-02 15:04 MST"),
		listing.ImageURL != nil && *listing.ImageURL != "",
	)
}

func (ai *AIService) callGeminiAPI(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", ai.baseURL, ai.model, ai.apiKey)

	request := GeminiRequest{
		Contents: []Content{
			{Parts: []Part{{Text: prompt}}},
		},
		GenerationConfig: GenerationConfig{
			Temperature:      0.2,
			TopK:             40,
			TopP:             0.95,
			MaxOutputTokens:  256,
			ResponseMimeType: "application/json",
		},
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ai.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini API error (%d): %s", resp.StatusCode, gjson.GetBytes(body, "error.message").String())
	}

	text := gjson.GetBytes(body, "candidates.0.content.parts.0.text")
	if !text.Exists() {
		return "", fmt.Errorf("no response from gemini")
	}
	return text.String(), nil
}

// parseRatingResponse reads {"rating", "feedback"} from the model text,
// tolerating markdown code fences around the JSON.
func parseRatingResponse(text string) (*ListingRating, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if !gjson.Valid(text) {
		return nil, fmt.Errorf("unparseable rating response: %q", text)
	}

	rating := gjson.Get(text, "rating")
	if !rating.Exists() {
		return nil, fmt.Errorf("rating missing from response")
	}

	return &ListingRating{
		Rating:   roundRating(rating.Float()),
		Feedback: gjson.Get(text, "feedback").String(),
		Source:   "gemini",
	}, nil
}

// heuristicRating scores completeness of the listing. Deterministic for a given listing.
func heuristicRating(listing *models.FoodListing) *ListingRating {
	score := 2.0
	var missing []string

	if len(strings.TrimSpace(listing.Description)) >= 30 {
		score += 1
	} else {
		missing = append(missing, "a longer description")
	}
	if listing.ImageURL != nil && *listing.ImageURL != "" {
		score += 1
	} else {
		missing = append(missing, "a photo")
	}
	if listing.ExpiryTime.Sub(listing.PickupTime).Hours() >= 2 {
		score += 0.5
	} else {
		missing = append(missing, "a wider pickup window")
	}
	if strings.TrimSpace(listing.Location.Address) != "" {
		score += 0.5
	} else {
		missing = append(missing, "a pickup address")
	}

	feedback := "Complete listing, nothing to improve."
	if len(missing) > 0 {
		feedback = "Consider adding " + strings.Join(missing, ", ") + "."
	}

	return &ListingRating{
		Rating:   roundRating(score),
		Feedback: feedback,
		Source:   "heuristic",
	}
}

func roundRating(rating float64) float64 {
	return math.Round(clampRating(rating)*10) / 10
}
