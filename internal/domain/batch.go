package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

var (
	ErrMissingID        = errors.New("record has no id")
	ErrKeyMismatch      = errors.New("record id does not match its key")
	ErrMalformedPayload = errors.New("malformed payload")
)

// Keyed is implemented by every patch type.
type Keyed[P any] interface {
	Key() ID
	WithKey(id ID) P
}

// Batch is a collection payload. The server sends collections as objects keyed
// by id ({"1": {...}}); arrays of records are accepted as well. Records are kept
// in ascending id order so that merges are deterministic.
type Batch[P Keyed[P]] []P

func (b *Batch[P]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = nil
		return nil
	}

	if data[0] == '[' {
		var items []P
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		for _, item := range items {
			if item.Key() == 0 {
				return ErrMissingID
			}
		}
		*b = items
		return nil
	}

	var keyed map[ID]P
	if err := json.Unmarshal(data, &keyed); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	keys := make([]ID, 0, len(keyed))
	for k := range keyed {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	items := make([]P, 0, len(keys))
	for _, k := range keys {
		item := keyed[k]
		switch {
		case k == 0:
			return ErrMissingID
		case item.Key() == 0:
			item = item.WithKey(k)
		case item.Key() != k:
			return fmt.Errorf("%w: key %d, id %d", ErrKeyMismatch, k, item.Key())
		}
		items = append(items, item)
	}
	*b = items
	return nil
}
