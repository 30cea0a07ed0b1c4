// Package dataset loads the immutable investment-updates document and serves
// record lookups for the rest of the pipeline.
package dataset

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	apperrors "investment-chat/internal/common/errors"
	"investment-chat/internal/common/validation"
)

// SchemaText describes the document layout to the code-execution service.
//
//go:embed schema.txt
var SchemaText string

// rootSchema is the minimal shape every dataset must satisfy.
var rootSchema = validation.JSONSchema{
	Type:     "object",
	Required: []string{"data"},
	Properties: map[string]validation.Property{
		"data": {
			Type: "array",
			Items: &validation.Property{
				Type:     "object",
				Required: []string{"id", "companyName"},
				Properties: map[string]validation.Property{
					"id":          {Type: "string"},
					"companyName": {Type: "string"},
				},
			},
		},
	},
}

// Deal is one tracked company. It marshals back to the exact bytes it was loaded from.
type Deal struct {
	ID          string
	CompanyName string
	Updates     []Update
	raw         json.RawMessage
}

func (d *Deal) MarshalJSON() ([]byte, error) {
	return d.raw, nil
}

// Raw returns the record's source JSON.
func (d *Deal) Raw() json.RawMessage {
	return d.raw
}

// Update carries the fields of an investment update used by the digest.
// Absent fields stay nil; JSON null is kept as the literal "null".
type Update struct {
	UpdateMonth  json.RawMessage
	RevenueType  json.RawMessage
	Revenue      json.RawMessage
	ReceivedYear json.RawMessage
}

type NameEntry struct {
	Name string
	ID   string
}

// Store is safe for concurrent reads; it is never mutated after Load.
type Store struct {
	path  string
	doc   []byte
	deals []*Deal
	byID  map[string]*Deal
}

type dealHeader struct {
	ID                string `json:"id"`
	CompanyName       string `json:"companyName"`
	InvestmentUpdates []struct {
		ReceivedYear json.RawMessage `json:"receivedYear"`
		TextualData  *struct {
			UpdateMonth json.RawMessage `json:"update_month"`
		} `json:"textualData"`
		KPIs *struct {
			RevenueType json.RawMessage `json:"revenueType"`
			Revenue     json.RawMessage `json:"revenue"`
		} `json:"kpis"`
	} `json:"investmentUpdates"`
}

// Load reads and validates the dataset at path. Any failure is fatal to startup.
func Load(path string) (*Store, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewDatasetLoadFailedError(path, err)
	}
	store, err := Parse(doc)
	if err != nil {
		return nil, apperrors.NewDatasetLoadFailedError(path, err)
	}
	store.path = path
	return store, nil
}

// Parse builds a Store from an in-memory document.
func Parse(doc []byte) (*Store, error) {
	result, err := validation.Validate(rootSchema, doc)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, fmt.Errorf("dataset does not match expected shape: %s", result.Error())
	}

	var root struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}

	store := &Store{
		doc:   doc,
		deals: make([]*Deal, 0, len(root.Data)),
		byID:  make(map[string]*Deal, len(root.Data)),
	}

	for i, raw := range root.Data {
		var h dealHeader
		if err := json.Unmarshal(raw, &h); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", i, err)
		}
		if _, dup := store.byID[h.ID]; dup {
			return nil, fmt.Errorf("duplicate record id %q", h.ID)
		}

		deal := &Deal{ID: h.ID, CompanyName: h.CompanyName, raw: raw}
		for _, u := range h.InvestmentUpdates {
			upd := Update{ReceivedYear: u.ReceivedYear}
			if u.TextualData != nil {
				upd.UpdateMonth = u.TextualData.UpdateMonth
			}
			if u.KPIs != nil {
				upd.RevenueType = u.KPIs.RevenueType
				upd.Revenue = u.KPIs.Revenue
			}
			deal.Updates = append(deal.Updates, upd)
		}

		store.deals = append(store.deals, deal)
		store.byID[h.ID] = deal
	}

	return store, nil
}

// GetByID returns the record with exactly this id.
func (s *Store) GetByID(id string) (*Deal, bool) {
	d, ok := s.byID[id]
	return d, ok
}

// All returns every record in dataset order. Callers must not modify the slice.
func (s *Store) All() []*Deal {
	return s.deals
}

func (s *Store) Len() int {
	return len(s.deals)
}

// Names lists display names with their ids, in dataset order.
func (s *Store) Names() []NameEntry {
	out := make([]NameEntry, len(s.deals))
	for i, d := range s.deals {
		out[i] = NameEntry{Name: d.CompanyName, ID: d.ID}
	}
	return out
}

// Snapshot returns a copy of the full document as loaded.
func (s *Store) Snapshot() []byte {
	return bytes.Clone(s.doc)
}

func (s *Store) Path() string {
	return s.path
}

// Digest renders one block per company with its revenue history.
// Updates missing any of the month, revenue type, revenue or year fields are skipped.
func (s *Store) Digest() string {
	var sb strings.Builder
	for _, d := range s.deals {
		sb.WriteString("--------------------------------------------------\n")
		fmt.Fprintf(&sb, "Company: %s\n\n", d.CompanyName)
		for _, u := range d.Updates {
			if u.UpdateMonth == nil || u.RevenueType == nil || u.Revenue == nil || u.ReceivedYear == nil {
				continue
			}
			fmt.Fprintf(&sb, "As of Date: %s, %s | Lastest %s: %s|\n",
				scalar(u.UpdateMonth), scalar(u.ReceivedYear), scalar(u.RevenueType), scalar(u.Revenue))
		}
	}
	return sb.String()
}

// scalar prints strings unquoted and everything else as its JSON text.
func scalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
