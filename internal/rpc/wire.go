package rpc

import (
	"fmt"

	"github.com/dmitrijs2005/drivesync/internal/common"
	"github.com/dmitrijs2005/drivesync/internal/recordstore"
	"google.golang.org/protobuf/types/known/structpb"
)

// Message field names. Every request and reply is a structpb.Struct built
// from these keys.
const (
	keyCollection = "collection"
	keyID         = "id"
	keyDoc        = "doc"
	keyFields     = "fields"
	keyFilters    = "filters"
	keySort       = "sort"
	keyField      = "field"
	keyValue      = "value"
	keyDesc       = "desc"
	keyRecords    = "records"
)

func newStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w: %v", common.ErrorValidation, err)
	}
	return s, nil
}

func plainDoc(d recordstore.Document) (map[string]any, error) {
	n, err := recordstore.Normalize(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	return map[string]any(n), nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func docField(m map[string]any, key string) recordstore.Document {
	d, _ := m[key].(map[string]any)
	if d == nil {
		return recordstore.Document{}
	}
	return recordstore.Document(d)
}

// EncodeRef builds the {collection, id} message of Get and Delete.
func EncodeRef(collection, id string) (*structpb.Struct, error) {
	return newStruct(map[string]any{keyCollection: collection, keyID: id})
}

func DecodeRef(s *structpb.Struct) (collection, id string, err error) {
	m := s.AsMap()
	collection, id = stringField(m, keyCollection), stringField(m, keyID)
	if collection == "" || id == "" {
		return "", "", fmt.Errorf("ref: collection and id required: %w", common.ErrorValidation)
	}
	return collection, id, nil
}

// EncodeInsert builds the {collection, doc} message of Insert.
func EncodeInsert(collection string, fields recordstore.Document) (*structpb.Struct, error) {
	doc, err := plainDoc(fields)
	if err != nil {
		return nil, err
	}
	return newStruct(map[string]any{keyCollection: collection, keyDoc: doc})
}

func DecodeInsert(s *structpb.Struct) (string, recordstore.Document, error) {
	m := s.AsMap()
	collection := stringField(m, keyCollection)
	if collection == "" {
		return "", nil, fmt.Errorf("insert: collection required: %w", common.ErrorValidation)
	}
	return collection, docField(m, keyDoc), nil
}

// EncodeUpdate builds the {collection, id, fields} message of UpdateFields.
func EncodeUpdate(collection, id string, fields recordstore.Document) (*structpb.Struct, error) {
	doc, err := plainDoc(fields)
	if err != nil {
		return nil, err
	}
	return newStruct(map[string]any{keyCollection: collection, keyID: id, keyFields: doc})
}

func DecodeUpdate(s *structpb.Struct) (collection, id string, fields recordstore.Document, err error) {
	collection, id, err = DecodeRef(s)
	if err != nil {
		return "", "", nil, err
	}
	return collection, id, docField(s.AsMap(), keyFields), nil
}

func EncodeQuery(q recordstore.Query) (*structpb.Struct, error) {
	filters := make([]any, 0, len(q.Filters))
	for _, f := range q.Filters {
		v, err := recordstore.NormalizeValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
		}
		filters = append(filters, map[string]any{keyField: f.Field, keyValue: v})
	}
	sort := make([]any, 0, len(q.Sort))
	for _, k := range q.Sort {
		sort = append(sort, map[string]any{keyField: k.Field, keyDesc: k.Desc})
	}
	return newStruct(map[string]any{
		keyCollection: q.Collection,
		keyFilters:    filters,
		keySort:       sort,
	})
}

func DecodeQuery(s *structpb.Struct) (recordstore.Query, error) {
	m := s.AsMap()
	q := recordstore.Query{Collection: stringField(m, keyCollection)}
	if q.Collection == "" {
		return q, fmt.Errorf("query: collection required: %w", common.ErrorValidation)
	}

	filters, _ := m[keyFilters].([]any)
	for _, raw := range filters {
		f, ok := raw.(map[string]any)
		if !ok || stringField(f, keyField) == "" {
			return q, fmt.Errorf("query: malformed filter: %w", common.ErrorValidation)
		}
		q.Filters = append(q.Filters, recordstore.Filter{Field: stringField(f, keyField), Value: f[keyValue]})
	}

	sort, _ := m[keySort].([]any)
	for _, raw := range sort {
		k, ok := raw.(map[string]any)
		if !ok || stringField(k, keyField) == "" {
			return q, fmt.Errorf("query: malformed sort key: %w", common.ErrorValidation)
		}
		desc, _ := k[keyDesc].(bool)
		q.Sort = append(q.Sort, recordstore.SortKey{Field: stringField(k, keyField), Desc: desc})
	}
	return q, nil
}

func encodeRecord(r recordstore.Record) (map[string]any, error) {
	doc, err := plainDoc(r.Fields)
	if err != nil {
		return nil, err
	}
	return map[string]any{keyID: r.ID, keyDoc: doc}, nil
}

func decodeRecord(raw any) (recordstore.Record, error) {
	m, ok := raw.(map[string]any)
	if !ok || stringField(m, keyID) == "" {
		return recordstore.Record{}, fmt.Errorf("malformed record: %w", common.ErrorValidation)
	}
	return recordstore.Record{ID: stringField(m, keyID), Fields: docField(m, keyDoc)}, nil
}

// EncodeRecord is the reply of Get.
func EncodeRecord(r recordstore.Record) (*structpb.Struct, error) {
	m, err := encodeRecord(r)
	if err != nil {
		return nil, err
	}
	return newStruct(m)
}

func DecodeRecord(s *structpb.Struct) (recordstore.Record, error) {
	return decodeRecord(s.AsMap())
}

// EncodeSnapshot is one LiveQuery stream message.
func EncodeSnapshot(records []recordstore.Record) (*structpb.Struct, error) {
	list := make([]any, 0, len(records))
	for _, r := range records {
		m, err := encodeRecord(r)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return newStruct(map[string]any{keyRecords: list})
}

func DecodeSnapshot(s *structpb.Struct) ([]recordstore.Record, error) {
	list, _ := s.AsMap()[keyRecords].([]any)
	out := make([]recordstore.Record, 0, len(list))
	for _, raw := range list {
		r, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
