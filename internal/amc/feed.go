package amc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/intellisoft-ke/findams/internal/config"
)

// FeedQuery filters a feed request. Zero values fetch everything the
// feed currently exposes.
type FeedQuery struct {
	PatientID string
	StartDate string
	EndDate   string
}

// Prescription is one antibiotic prescription from the feed.
type Prescription struct {
	AtcCode string  `json:"atc_code"`
	Drug    string  `json:"drug"`
	Dose    float64 `json:"dose"`
}

// AdmissionsFeed is the daily admissions envelope.
type AdmissionsFeed struct {
	Patients []struct {
		PatientID string `json:"patient_id"`
		Ward      string `json:"ward"`
	} `json:"patients"`
}

type prescriptionsFeed struct {
	Patients []struct {
		Visits []struct {
			AntibioticPrescriptions []Prescription `json:"antibiotic_prescriptions"`
		} `json:"visits"`
	} `json:"patients"`
}

// FeedClient talks to the hospital system's consumption feeds.
type FeedClient struct {
	amuURL string
	amcURL string
	http   *http.Client
}

// NewFeedClient builds a FeedClient from configuration.
func NewFeedClient(cfg config.FunsoftConfig) *FeedClient {
	return &FeedClient{
		amuURL: cfg.AmuURL,
		amcURL: cfg.AmcURL,
		http:   &http.Client{Timeout: cfg.Timeout},
	}
}

// AntibioticPrescriptions fetches and flattens the prescriptions feed.
func (c *FeedClient) AntibioticPrescriptions(ctx context.Context, q FeedQuery) ([]Prescription, error) {
	var feed prescriptionsFeed
	if err := c.get(ctx, c.amuURL, q, &feed); err != nil {
		return nil, fmt.Errorf("prescriptions feed: %w", err)
	}

	var out []Prescription
	for _, patient := range feed.Patients {
		for _, visit := range patient.Visits {
			out = append(out, visit.AntibioticPrescriptions...)
		}
	}
	return out, nil
}

// DailyAdmissions fetches the admissions feed.
func (c *FeedClient) DailyAdmissions(ctx context.Context, q FeedQuery) (*AdmissionsFeed, error) {
	var feed AdmissionsFeed
	if err := c.get(ctx, c.amcURL, q, &feed); err != nil {
		return nil, fmt.Errorf("admissions feed: %w", err)
	}
	return &feed, nil
}

func (c *FeedClient) get(ctx context.Context, base string, q FeedQuery, out any) error {
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("parse feed url: %w", err)
	}
	query := u.Query()
	query.Set("patient_id", q.PatientID)
	query.Set("startDate", q.StartDate)
	query.Set("endDate", q.EndDate)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("feed returned %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
