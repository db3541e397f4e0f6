package models

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/drivesync/internal/recordstore"
)

// ToDocument converts a record struct into the JSON-shaped document the
// record store persists. Server-assigned timestamps are dropped; the store
// stamps them.
func ToDocument(v any) (recordstore.Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var doc recordstore.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	delete(doc, recordstore.FieldCreatedAt)
	delete(doc, recordstore.FieldUpdatedAt)
	return doc, nil
}

func decodeInto(rec recordstore.Record, dst any) error {
	b, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("decode record %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode record %s: %w", rec.ID, err)
	}
	return nil
}

// DecodeFile builds a FileRecord from a pushed record.
func DecodeFile(rec recordstore.Record) (FileRecord, error) {
	var f FileRecord
	if err := decodeInto(rec, &f); err != nil {
		return FileRecord{}, err
	}
	f.ID = rec.ID
	return f, nil
}

// DecodeNote builds a NoteRecord from a pushed record.
func DecodeNote(rec recordstore.Record) (NoteRecord, error) {
	var n NoteRecord
	if err := decodeInto(rec, &n); err != nil {
		return NoteRecord{}, err
	}
	n.ID = rec.ID
	return n, nil
}
