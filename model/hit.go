package model

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"time"
)

// Hit is one annotation record: "compound X <predicate> object Y according
// to data source Z". It is the atomic unit of output; one provider call on
// one compound yields an ordered sequence of zero or more Hits.
//
// Hits are immutable once created.
type Hit struct {
	// RecordID uniquely identifies this record (UUID, assigned at creation).
	RecordID string
	// OriginCompound is the compound ID the lookup started from.
	OriginCompound CompoundID
	// MatchedCompound is the compound ID the provider actually matched
	// (may differ from the origin after provider-side normalization).
	MatchedCompound CompoundID
	// CompoundKey is the provider-internal compound identifier, if any.
	CompoundKey string
	// CompoundName is the provider's display name for the compound.
	CompoundName string

	Predicate  string
	ObjectID   string
	ObjectName string

	// Weight is the annotation strength; 1 unless the provider scores hits.
	Weight float64

	// SearchKey and SearchKind identify the unit that produced this Hit.
	SearchKey  string
	SearchKind string
	// DataSource labels where the annotation ultimately came from.
	DataSource string

	// RunAt is when this record was produced.
	RunAt time.Time
	// CacheAt is when the underlying provider response was cached, if known.
	CacheAt *time.Time

	// Extra carries pass-through columns from the input compound table.
	Extra map[string]string
}

// ToPair returns the (predicate, object) pair of this Hit.
func (h Hit) ToPair() Pair {
	return Pair{Predicate: h.Predicate, ObjectID: h.ObjectID}
}

// DedupKey hashes the fields that define a Hit's identity. Fields that vary
// with lookup context (origin compound, display name, record ID, timestamps)
// are excluded, so the same annotation reached via two origins collides.
func (h Hit) DedupKey() string {
	s := sha1.New()
	for _, f := range []string{
		string(h.MatchedCompound),
		h.CompoundKey,
		h.Predicate,
		h.ObjectID,
		h.ObjectName,
		strconv.FormatFloat(h.Weight, 'g', -1, 64),
		h.SearchKey,
		h.SearchKind,
		h.DataSource,
	} {
		s.Write([]byte(f))
		s.Write([]byte{0})
	}
	return hex.EncodeToString(s.Sum(nil))
}
