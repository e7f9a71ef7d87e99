package shippo

import "time"

// AddressInput mirrors the Shippo address payload.
type AddressInput struct {
	Name    string `json:"name"`
	Street1 string `json:"street1"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
}

// ParcelInput mirrors the Shippo parcel payload. Dimensions are
// inches and weight is ounces to match stored listing parcels.
type ParcelInput struct {
	Length       string `json:"length"`
	Width        string `json:"width"`
	Height       string `json:"height"`
	DistanceUnit string `json:"distance_unit"`
	Weight       string `json:"weight"`
	MassUnit     string `json:"mass_unit"`
}

type shipmentRequest struct {
	AddressFrom AddressInput  `json:"address_from"`
	AddressTo   AddressInput  `json:"address_to"`
	Parcels     []ParcelInput `json:"parcels"`
	Async       bool          `json:"async"`
}

// ServiceLevel names the carrier service for a rate.
type ServiceLevel struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

// Rate is a single shipping rate quote.
type Rate struct {
	ObjectID      string       `json:"object_id"`
	Amount        string       `json:"amount"`
	Currency      string       `json:"currency"`
	Provider      string       `json:"provider"`
	ServiceLevel  ServiceLevel `json:"servicelevel"`
	EstimatedDays int          `json:"estimated_days"`
	DurationTerms string       `json:"duration_terms"`
	Attributes    []string     `json:"attributes"`
}

// RateQuote is the result of a synchronous shipment creation: the rate
// list plus any carrier diagnostics attached by Shippo.
type RateQuote struct {
	ObjectID string    `json:"object_id"`
	Status   string    `json:"status"`
	Rates    []Rate    `json:"rates"`
	Messages []Message `json:"messages"`
}

// Message carries carrier/API diagnostics attached to a response.
type Message struct {
	Source string `json:"source"`
	Code   string `json:"code"`
	Text   string `json:"text"`
}

type transactionRequest struct {
	Rate          string `json:"rate"`
	LabelFileType string `json:"label_file_type"`
	Async         bool   `json:"async"`
}

// Transaction is a purchased label.
type Transaction struct {
	ObjectID       string    `json:"object_id"`
	Status         string    `json:"status"`
	LabelURL       string    `json:"label_url"`
	TrackingNumber string    `json:"tracking_number"`
	TrackingURL    string    `json:"tracking_url_provider"`
	Rate           Rate      `json:"rate"`
	Messages       []Message `json:"messages"`
}

// TrackingStatus is one point in a parcel's tracking history.
type TrackingStatus struct {
	Status        string    `json:"status"`
	StatusDetails string    `json:"status_details"`
	StatusDate    time.Time `json:"status_date"`
}

// Track is the live tracking state for a shipment.
type Track struct {
	Carrier         string           `json:"carrier"`
	TrackingNumber  string           `json:"tracking_number"`
	ETA             *time.Time       `json:"eta"`
	TrackingStatus  *TrackingStatus  `json:"tracking_status"`
	TrackingHistory []TrackingStatus `json:"tracking_history"`
}
