// Package vehicle provides VIN decoding and tire fitment lookups backed by
// the NHTSA vPIC API and an optional fitment data provider, with a redis
// read-through cache in front of both.
package vehicle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"tireshop_backend/platform/config"
	"tireshop_backend/platform/logger"
)

const defaultHTTPTimeout = 10 * time.Second

// VINResult is the decoded vehicle identity for one VIN.
type VINResult struct {
	VIN             string `json:"vin"`
	Make            string `json:"make"`
	Model           string `json:"model"`
	ModelYear       string `json:"modelYear"`
	Trim            string `json:"trim,omitempty"`
	BodyClass       string `json:"bodyClass,omitempty"`
	EngineCylinders string `json:"engineCylinders,omitempty"`
	FuelType        string `json:"fuelType,omitempty"`
}

// TireSize is one factory tire fitment option.
type TireSize struct {
	Size     string `json:"size"`
	Position string `json:"position,omitempty"`
	LoadIdx  string `json:"loadIndex,omitempty"`
	SpeedIdx string `json:"speedRating,omitempty"`
}

// Client calls the external vehicle data providers.
type Client struct {
	httpClient  *http.Client
	vpicBaseURL string
	fitmentURL  string
	fitmentKey  string
	log         *logger.Logger
}

// NewClient creates a vehicle data client from configuration.
func NewClient(cfg config.VehicleDataConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: defaultHTTPTimeout},
		vpicBaseURL: cfg.GetVPICBaseURL(),
		fitmentURL:  cfg.GetTireFitmentURL(),
		fitmentKey:  cfg.GetTireFitmentKey(),
		log:         log,
	}
}

// vpicDecodeResponse mirrors the DecodeVinValues payload. vPIC returns every
// attribute flattened onto a single result row as strings.
type vpicDecodeResponse struct {
	Results []struct {
		Make            string `json:"Make"`
		Model           string `json:"Model"`
		ModelYear       string `json:"ModelYear"`
		Trim            string `json:"Trim"`
		BodyClass       string `json:"BodyClass"`
		EngineCylinders string `json:"EngineCylinders"`
		FuelTypePrimary string `json:"FuelTypePrimary"`
		ErrorCode       string `json:"ErrorCode"`
		ErrorText       string `json:"ErrorText"`
	} `json:"Results"`
}

// DecodeVIN resolves a VIN through vPIC. The caller validates the VIN shape;
// here an empty Make means vPIC could not identify the vehicle.
func (c *Client) DecodeVIN(ctx context.Context, vin string) (*VINResult, error) {
	endpoint := fmt.Sprintf("%s/vehicles/DecodeVinValues/%s?format=json", c.vpicBaseURL, url.PathEscape(vin))

	var decoded vpicDecodeResponse
	if err := c.getJSON(ctx, endpoint, "", &decoded); err != nil {
		return nil, fmt.Errorf("vpic decode: %w", err)
	}
	if len(decoded.Results) == 0 {
		return nil, fmt.Errorf("vpic decode: empty result set for %s", vin)
	}

	r := decoded.Results[0]
	if r.Make == "" {
		return nil, nil
	}
	return &VINResult{
		VIN:             vin,
		Make:            r.Make,
		Model:           r.Model,
		ModelYear:       r.ModelYear,
		Trim:            r.Trim,
		BodyClass:       r.BodyClass,
		EngineCylinders: r.EngineCylinders,
		FuelType:        r.FuelTypePrimary,
	}, nil
}

type fitmentResponse struct {
	Sizes []TireSize `json:"sizes"`
}

// FitmentConfigured reports whether a tire fitment provider is set up.
func (c *Client) FitmentConfigured() bool {
	return c.fitmentURL != ""
}

// TireFitment looks up factory tire sizes for a make/model/year.
func (c *Client) TireFitment(ctx context.Context, vehicleMake, model, year string) ([]TireSize, error) {
	params := url.Values{}
	params.Set("make", vehicleMake)
	params.Set("model", model)
	params.Set("year", year)
	endpoint := c.fitmentURL + "?" + params.Encode()

	var resp fitmentResponse
	if err := c.getJSON(ctx, endpoint, c.fitmentKey, &resp); err != nil {
		return nil, fmt.Errorf("tire fitment: %w", err)
	}
	return resp.Sizes, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, bearer string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
