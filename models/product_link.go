package models

import (
	"time"
)

// DefaultSource labels links whose backend did not name a merchant.
const DefaultSource = "Google Shopping"

// ProductLink is one purchasable result for an outfit item.
type ProductLink struct {
	Title    string   `json:"title" bson:"title"`
	URL      string   `json:"url" bson:"url"`
	Price    *float64 `json:"price" bson:"price"`
	Currency *string  `json:"currency" bson:"currency"`
	ImageURL *string  `json:"image_url" bson:"image_url"`
	Source   string   `json:"source" bson:"source"`
	InStock  *bool    `json:"in_stock" bson:"in_stock"`
}

// ItemProducts holds the links found for a single outfit item.
type ItemProducts struct {
	ItemName string        `json:"item_name" bson:"item_name"`
	Links    []ProductLink `json:"links" bson:"links"`
}

// OutfitProducts groups item links by outfit.
type OutfitProducts struct {
	OutfitID string         `json:"outfit_id" bson:"outfit_id"`
	Products []ItemProducts `json:"products" bson:"products"`
}

// LinkRecord is the persisted link set of one (outfit_id, item_name) pair.
type LinkRecord struct {
	OutfitID  string        `json:"outfit_id" bson:"outfit_id"`
	ItemName  string        `json:"item_name" bson:"item_name"`
	SessionID *string       `json:"session_id" bson:"session_id"`
	UserID    *string       `json:"user_id" bson:"user_id"`
	Links     []ProductLink `json:"links" bson:"links"`
	CreatedAt time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" bson:"updated_at"`
}

// Owner identifies who an enrichment run belongs to. Empty fields mean absent.
type Owner struct {
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// IsZero reports whether neither identity is known.
func (o Owner) IsZero() bool {
	return o.UserID == "" && o.SessionID == ""
}

// UserIDPtr returns nil for an anonymous owner, matching the stored null.
func (o Owner) UserIDPtr() *string {
	if o.UserID == "" {
		return nil
	}
	v := o.UserID
	return &v
}

// SessionIDPtr returns nil when no session is attached.
func (o Owner) SessionIDPtr() *string {
	if o.SessionID == "" {
		return nil
	}
	v := o.SessionID
	return &v
}

// GroupRecords folds per-item records into outfit groups in first-seen order.
func GroupRecords(records []LinkRecord) []OutfitProducts {
	index := make(map[string]int)
	var out []OutfitProducts
	for _, rec := range records {
		links := rec.Links
		if links == nil {
			links = []ProductLink{}
		}
		i, ok := index[rec.OutfitID]
		if !ok {
			i = len(out)
			index[rec.OutfitID] = i
			out = append(out, OutfitProducts{OutfitID: rec.OutfitID, Products: []ItemProducts{}})
		}
		out[i].Products = append(out[i].Products, ItemProducts{ItemName: rec.ItemName, Links: links})
	}
	if out == nil {
		out = []OutfitProducts{}
	}
	return out
}

// OrderByIDs reorders groups to follow ids; groups not listed keep their relative order at the end.
func OrderByIDs(groups []OutfitProducts, ids []string) []OutfitProducts {
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, dup := pos[id]; !dup {
			pos[id] = i
		}
	}
	out := make([]OutfitProducts, 0, len(groups))
	var rest []OutfitProducts
	placed := make([]*OutfitProducts, len(ids))
	for i := range groups {
		if p, ok := pos[groups[i].OutfitID]; ok {
			placed[p] = &groups[i]
		} else {
			rest = append(rest, groups[i])
		}
	}
	for _, g := range placed {
		if g != nil {
			out = append(out, *g)
		}
	}
	return append(out, rest...)
}
