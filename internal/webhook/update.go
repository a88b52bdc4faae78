package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"
)

var (
	// ErrMissingObject is returned when a batch has no "object" field.
	ErrMissingObject = errors.New("update batch has no object")
	// ErrMissingEntry is returned when a batch has no "entry" array.
	ErrMissingEntry = errors.New("update batch has no entry list")
)

// Update is one delivered batch of change notifications for a single object
// type.
type Update struct {
	Object     string    `json:"object"`
	Entries    []Entry   `json:"entry"`
	DeliveryID string    `json:"deliveryId,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Entry describes the changes to one subject.
type Entry struct {
	ID            int64    `json:"id"`
	Time          int64    `json:"time"`
	ChangedFields []string `json:"changed_fields"`
	Changes       []Change `json:"changes,omitempty"`
}

// Change is an element of the "changes" array sent by newer subscriptions
// (pages, instagram) in place of changed_fields.
type Change struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value,omitempty"`
}

// clone returns a copy of u that shares no slices with it.
func (u Update) clone() Update {
	c := u
	c.Entries = slices.Clone(u.Entries)
	for i, e := range c.Entries {
		c.Entries[i].ChangedFields = slices.Clone(e.ChangedFields)
		c.Entries[i].Changes = slices.Clone(e.Changes)
		for j, ch := range c.Entries[i].Changes {
			c.Entries[i].Changes[j].Value = slices.Clone(ch.Value)
		}
	}
	return c
}

// UnmarshalJSON accepts id and time as numbers or numeric strings, and fills
// ChangedFields from changes when changed_fields is absent.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w struct {
		ID            flexInt  `json:"id"`
		Time          flexInt  `json:"time"`
		ChangedFields []string `json:"changed_fields"`
		Changes       []Change `json:"changes"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*e = Entry{
		ID:            int64(w.ID),
		Time:          int64(w.Time),
		ChangedFields: w.ChangedFields,
		Changes:       w.Changes,
	}
	if e.ChangedFields == nil && len(e.Changes) > 0 {
		e.ChangedFields = make([]string, 0, len(e.Changes))
		for _, c := range e.Changes {
			if c.Field != "" {
				e.ChangedFields = append(e.ChangedFields, c.Field)
			}
		}
	}
	return nil
}

// DecodeUpdate parses a delivery body. Both object and entry must be present.
func DecodeUpdate(body []byte) (Update, error) {
	var w struct {
		Object *string `json:"object"`
		Entry  []Entry `json:"entry"`
	}
	if err := json.Unmarshal(body, &w); err != nil {
		return Update{}, fmt.Errorf("decode update batch: %w", err)
	}
	if w.Object == nil || *w.Object == "" {
		return Update{}, ErrMissingObject
	}
	if w.Entry == nil {
		return Update{}, ErrMissingEntry
	}
	return Update{Object: *w.Object, Entries: w.Entry}, nil
}

// flexInt decodes a JSON number or a quoted decimal string.
type flexInt int64

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("invalid integer %s: %w", b, err)
		}
		s = unquoted
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid integer %s", b)
		}
		v = int64(f)
	}
	*n = flexInt(v)
	return nil
}
