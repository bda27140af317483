package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"food-share-server/config"
)

const maxSuggestions = 10

// PlaceSuggestion is one autocomplete candidate
type PlaceSuggestion struct {
	PlaceID     string  `json:"placeId"`
	Description string  `json:"description"`
	MainText    string  `json:"mainText"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

// PlacesService resolves free-text addresses through OpenStreetMap Nominatim
type PlacesService struct {
	baseURL      string
	userAgent    string
	countryCodes string
	client       *http.Client
}

func NewPlacesService(cfg config.PlacesConfig) *PlacesService {
	return &PlacesService{
		baseURL:      strings.TrimRight(cfg.NominatimURL, "/"),
		userAgent:    cfg.UserAgent,
		countryCodes: cfg.CountryCodes,
		client:       &http.Client{Timeout: cfg.Timeout},
	}
}

// Autocomplete returns up to limit suggestions for input. Blank input yields none.
func (p *PlacesService) Autocomplete(ctx context.Context, input string, limit int) ([]PlaceSuggestion, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return []PlaceSuggestion{}, nil
	}
	if limit <= 0 || limit > maxSuggestions {
		limit = 5
	}

	params := url.Values{}
	params.Set("q", input)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))
	if p.countryCodes != "" {
		params.Set("countrycodes", p.countryCodes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	// Nominatim's usage policy rejects requests without an identifying agent
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make geocoding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding service returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read geocoding response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("failed to decode geocoding response")
	}

	suggestions := []PlaceSuggestion{}
	gjson.ParseBytes(body).ForEach(func(_, place gjson.Result) bool {
		display := place.Get("display_name").String()
		suggestions = append(suggestions, PlaceSuggestion{
			PlaceID:     place.Get("place_id").String(),
			Description: display,
			MainText:    mainText(display),
			Lat:         place.Get("lat").Float(),
			Lng:         place.Get("lon").Float(),
		})
		return true
	})

	return suggestions, nil
}

// mainText is the first component of a display name
func mainText(displayName string) string {
	parts := strings.Split(displayName, ",")
	return strings.TrimSpace(parts[0])
}
