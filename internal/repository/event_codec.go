package repository

import (
	"encoding/json"
	"time"

	"github.com/shineyder/ticket-system/internal/domain"
	"github.com/shineyder/ticket-system/pkg/util"
)

// eventRecord is the stored form of a domain event.
type eventRecord struct {
	AggregateID    string
	AggregateType  string
	EventType      string
	EventID        string
	Payload        []byte
	SequenceNumber int
	OccurredOn     time.Time
	Version        int
}

// decodeFunc turns a stored record back into its typed event variant.
type decodeFunc func(rec eventRecord) (domain.Event, error)

// eventDecoders maps the stored event_type tag to a pure decode function.
// Adding an event kind means adding a variant here and a case in the
// aggregate's apply switch; nothing is resolved by reflection.
var eventDecoders = map[string]decodeFunc{
	string(domain.EventTicketCreated):  decodeTicketCreated,
	string(domain.EventTicketResolved): decodeTicketResolved,
}

// decodeEvent dispatches on the stored event_type tag. An unregistered tag is
// fatal for the load that hits it.
func decodeEvent(rec eventRecord) (domain.Event, error) {
	decode, ok := eventDecoders[rec.EventType]
	if !ok {
		return nil, util.NewUnknownEventType(rec.EventType)
	}
	return decode(rec)
}

func decodeTicketCreated(rec eventRecord) (domain.Event, error) {
	var evt domain.TicketCreated
	if err := json.Unmarshal(rec.Payload, &evt); err != nil {
		return nil, util.NewMalformedEvent(rec.EventType, "unreadable payload", err)
	}
	if evt.TicketID == "" || evt.Title == "" {
		return nil, util.NewMalformedEvent(rec.EventType, "missing ticket_id or title", nil)
	}
	evt.ID = rec.EventID
	evt.At = rec.OccurredOn
	return evt, nil
}

func decodeTicketResolved(rec eventRecord) (domain.Event, error) {
	var evt domain.TicketResolved
	if err := json.Unmarshal(rec.Payload, &evt); err != nil {
		return nil, util.NewMalformedEvent(rec.EventType, "unreadable payload", err)
	}
	if evt.TicketID == "" {
		return nil, util.NewMalformedEvent(rec.EventType, "missing ticket_id", nil)
	}
	evt.ID = rec.EventID
	evt.At = rec.OccurredOn
	return evt, nil
}

// encodePayload serializes the event's own fields for storage. Event id and
// occurrence time live in their own columns and are restored on decode.
func encodePayload(evt domain.Event) ([]byte, error) {
	return json.Marshal(evt)
}
