// Package models holds the sync-layer view of a bank-slip review project.
//
// A project document is produced by the mobile capture pipeline and edited by
// the dashboard; its business schema does not belong to the sync layer. The
// Envelope type therefore keeps the document as raw bytes and only surfaces
// the handful of fields the protocol owns: the identity, the last-modified
// timestamp, the closed flag, the owner name and the bill references.
package models

import (
	"fmt"

	"github.com/newwaysadmin/slipsync/internal/common"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// JSON field names the sync layer reads or stamps inside a project document.
const (
	FieldLastModified = "lastModified"
	FieldIsClosed     = "isClosed"
	FieldOwnerName    = "ownerPersonName"
	FieldBillRefs     = "billReferences"
	FieldClosedBy     = "closedBy"
	FieldUpdatedBy    = "updatedBy"
)

// Envelope is a typed view over an opaque project document. Raw always holds
// the complete document; the exported fields mirror what was read from it at
// parse time and are not kept in sync with later Raw mutations.
type Envelope struct {
	ID           string
	LastModified int64
	IsClosed     bool
	OwnerName    string
	BillRefs     []string
	Raw          []byte
}

// ParseEnvelope validates raw as JSON and extracts the sync-owned fields.
// Unknown fields are preserved untouched in Raw. Returns
// common.ErrInvalidPayload when raw is not a JSON object.
func ParseEnvelope(id string, raw []byte) (*Envelope, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("project %s: %w", id, common.ErrInvalidPayload)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, fmt.Errorf("project %s: not a JSON object: %w", id, common.ErrInvalidPayload)
	}

	e := &Envelope{
		ID:           id,
		LastModified: doc.Get(FieldLastModified).Int(),
		IsClosed:     doc.Get(FieldIsClosed).Bool(),
		OwnerName:    doc.Get(FieldOwnerName).String(),
		Raw:          raw,
	}
	for _, ref := range doc.Get(FieldBillRefs).Array() {
		e.BillRefs = append(e.BillRefs, ref.String())
	}
	return e, nil
}

// Stamp overwrites the document's lastModified with ts, in both Raw and the
// parsed view.
func (e *Envelope) Stamp(ts int64) error {
	raw, err := sjson.SetBytes(e.Raw, FieldLastModified, ts)
	if err != nil {
		return fmt.Errorf("stamp %s: %w", e.ID, err)
	}
	e.Raw = raw
	e.LastModified = ts
	return nil
}

// MarkClosed sets isClosed and, when closedBy is non-empty, records who
// closed the project.
func (e *Envelope) MarkClosed(closedBy string) error {
	raw, err := sjson.SetBytes(e.Raw, FieldIsClosed, true)
	if err != nil {
		return fmt.Errorf("close %s: %w", e.ID, err)
	}
	if closedBy != "" {
		if raw, err = sjson.SetBytes(raw, FieldClosedBy, closedBy); err != nil {
			return fmt.Errorf("close %s: %w", e.ID, err)
		}
	}
	e.Raw = raw
	e.IsClosed = true
	return nil
}

// MarkUpdatedBy records who last pushed the document, when known.
func (e *Envelope) MarkUpdatedBy(updatedBy string) error {
	if updatedBy == "" {
		return nil
	}
	raw, err := sjson.SetBytes(e.Raw, FieldUpdatedBy, updatedBy)
	if err != nil {
		return fmt.Errorf("update-by %s: %w", e.ID, err)
	}
	e.Raw = raw
	return nil
}

// Metadata returns the cheap listing projection used during negotiation.
func (e *Envelope) Metadata() MetadataEntry {
	return MetadataEntry{
		ID:           e.ID,
		LastModified: e.LastModified,
		BillCount:    len(e.BillRefs),
		OwnerName:    e.OwnerName,
		IsClosed:     e.IsClosed,
	}
}
