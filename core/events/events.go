//  Copyright (C) 2021-2023 Chronicle Labs, Inc.
//
//  This program is free software: you can redistribute it and/or modify
//  it under the terms of the GNU Affero General Public License as
//  published by the Free Software Foundation, either version 3 of the
//  License, or (at your option) any later version.
//
//  This program is distributed in the hope that it will be useful,
//  but WITHOUT ANY WARRANTY; without even the implied warranty of
//  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
//  GNU Affero General Public License for more details.
//
//  You should have received a copy of the GNU Affero General Public License
//  along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package events reads the events a block emitted from System.Events.
package events

import (
	"context"
	"fmt"

	logger "github.com/sirupsen/logrus"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/dynamic"
	"github.com/chronicleprotocol/scalerpc/core/metadata"
	"github.com/chronicleprotocol/scalerpc/core/rpc"
	"github.com/chronicleprotocol/scalerpc/core/storage"
)

// Address is the storage entry holding the events of a block.
var Address = storage.NewAddress("System", "Events")

type PhaseKind int

const (
	ApplyExtrinsic PhaseKind = iota
	Finalization
	Initialization
)

func (k PhaseKind) String() string {
	switch k {
	case ApplyExtrinsic:
		return "ApplyExtrinsic"
	case Finalization:
		return "Finalization"
	default:
		return "Initialization"
	}
}

// Phase is the part of block execution an event was emitted in.
type Phase struct {
	Kind PhaseKind
	// Extrinsic is the index of the extrinsic being applied.
	Extrinsic uint32
}

type Event struct {
	// Index is the position of the event in the block.
	Index   int
	Phase   Phase
	Pallet  string
	Variant string
	// Fields is the pallet event variant with its fields.
	Fields dynamic.Value
	Topics [][32]byte
}

// Is reports whether the event is pallet.variant.
func (e Event) Is(pallet, variant string) bool {
	return e.Pallet == pallet && e.Variant == variant
}

// Field returns a named field of the event.
func (e Event) Field(name string) (dynamic.Value, bool) {
	return e.Fields.Get(name)
}

func (e Event) String() string {
	return fmt.Sprintf("%s.%s", e.Pallet, e.Fields)
}

// Events is the ordered list of events of one block.
type Events struct {
	list []Event
}

func (e *Events) Len() int {
	return len(e.list)
}

func (e *Events) All() []Event {
	return e.list
}

// Find returns every pallet.variant event in order.
func (e *Events) Find(pallet, variant string) []Event {
	var out []Event
	for _, ev := range e.list {
		if ev.Is(pallet, variant) {
			out = append(out, ev)
		}
	}
	return out
}

func (e *Events) FindFirst(pallet, variant string) (Event, bool) {
	for _, ev := range e.list {
		if ev.Is(pallet, variant) {
			return ev, true
		}
	}
	return Event{}, false
}

func (e *Events) Has(pallet, variant string) bool {
	_, ok := e.FindFirst(pallet, variant)
	return ok
}

// ForExtrinsic keeps the events emitted while applying the extrinsic at index.
func (e *Events) ForExtrinsic(index uint32) *Events {
	out := &Events{}
	for _, ev := range e.list {
		if ev.Phase.Kind == ApplyExtrinsic && ev.Phase.Extrinsic == index {
			out.list = append(out.list, ev)
		}
	}
	return out
}

// Client fetches events at a block.
type Client struct {
	storage *storage.Client
}

func NewClient(legacy *rpc.Legacy, md *metadata.Metadata) *Client {
	return &Client{storage: storage.NewClient(legacy, md)}
}

// At returns the events of the block at, or of the best block if at is nil.
func (c *Client) At(ctx context.Context, at []byte) (*Events, error) {
	v, _, err := c.storage.Fetch(ctx, Address, at)
	if err != nil {
		return nil, err
	}
	evs, err := FromValue(v)
	if err != nil {
		return nil, err
	}
	logger.WithField("events", evs.Len()).Debug("Fetched block events")
	return evs, nil
}

// Decode decodes an encoded Vec<EventRecord> using the type of System.Events.
func Decode(md *metadata.Metadata, raw []byte) (*Events, error) {
	_, entry, err := Address.Lookup(md)
	if err != nil {
		return nil, err
	}
	v, err := dynamic.Decode(md.Types, entry.ValueType, raw)
	if err != nil {
		return nil, err
	}
	return FromValue(v)
}

// FromValue converts a decoded Vec<EventRecord>.
func FromValue(v dynamic.Value) (*Events, error) {
	if v.Kind != dynamic.KindComposite {
		return nil, malformed(-1, "events are a %s, expected a sequence", v.Kind)
	}
	evs := &Events{list: make([]Event, 0, len(v.Fields))}
	for i, f := range v.Fields {
		ev, err := record(i, f.Value)
		if err != nil {
			return nil, err
		}
		evs.list = append(evs.list, ev)
	}
	return evs, nil
}

func record(i int, rec dynamic.Value) (Event, error) {
	ev := Event{Index: i}

	phase, ok := rec.Get("phase")
	if !ok || phase.Kind != dynamic.KindVariant {
		return Event{}, malformed(i, "missing phase")
	}
	switch phase.Name {
	case "ApplyExtrinsic":
		idx, _ := phase.At(0)
		n, ok := idx.AsUint64()
		if !ok || n > 0xffffffff {
			return Event{}, malformed(i, "invalid extrinsic index in phase")
		}
		ev.Phase = Phase{Kind: ApplyExtrinsic, Extrinsic: uint32(n)}
	case "Finalization":
		ev.Phase = Phase{Kind: Finalization}
	case "Initialization":
		ev.Phase = Phase{Kind: Initialization}
	default:
		return Event{}, malformed(i, "unknown phase %s", phase.Name)
	}

	// The outer event enum is named after the pallet and wraps the pallet's
	// own event enum.
	outer, ok := rec.Get("event")
	if !ok || outer.Kind != dynamic.KindVariant {
		return Event{}, malformed(i, "missing event")
	}
	inner, ok := outer.At(0)
	if !ok || inner.Kind != dynamic.KindVariant {
		return Event{}, malformed(i, "event %s has no variant", outer.Name)
	}
	ev.Pallet, ev.Variant, ev.Fields = outer.Name, inner.Name, inner

	if topics, ok := rec.Get("topics"); ok {
		for _, t := range topics.Fields {
			b := t.Value.Unwrap()
			if b.Kind != dynamic.KindBytes || len(b.Bytes) != 32 {
				return Event{}, malformed(i, "topic is not 32 bytes")
			}
			ev.Topics = append(ev.Topics, [32]byte(b.Bytes))
		}
	}
	return ev, nil
}

func malformed(i int, format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	if i >= 0 {
		err = fmt.Errorf("event record %d: %w", i, err)
	}
	return clienterrors.Decode(&dynamic.DecodeError{Err: err})
}
