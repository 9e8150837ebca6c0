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

// Package runtimeapi builds calls into the runtime API surface of a node and
// checks them against the node's metadata before they are sent.
package runtimeapi

import (
	"fmt"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/codec"
	"github.com/chronicleprotocol/scalerpc/core/dynamic"
	"github.com/chronicleprotocol/scalerpc/core/metadata"
)

// Payload is a runtime API call: a "Trait_method" name, its arguments and an
// optional shape fingerprint of the function it was built against.
type Payload struct {
	fnName         string
	args           dynamic.Value
	validationHash *[32]byte
}

// Dynamic builds a payload without a validation hash. args is a composite whose
// fields are the function inputs, either all named or all positional.
func Dynamic(fnName string, args dynamic.Value) Payload {
	return Payload{fnName: fnName, args: args}
}

// NewStatic builds a payload that is checked against hash before encoding.
func NewStatic(fnName string, args dynamic.Value, hash [32]byte) Payload {
	return Payload{fnName: fnName, args: args, validationHash: &hash}
}

// Unvalidated returns a copy of the payload without its validation hash.
func (p Payload) Unvalidated() Payload {
	p.validationHash = nil
	return p
}

func (p Payload) FunctionName() string {
	return p.fnName
}

func (p Payload) Args() dynamic.Value {
	return p.args
}

func (p Payload) ValidationHash() ([32]byte, bool) {
	if p.validationHash == nil {
		return [32]byte{}, false
	}
	return *p.validationHash, true
}

// EncodeArgs encodes the arguments against the declared input types of the
// function. Named arguments are matched by name, unnamed ones by position.
func (p Payload) EncodeArgs(md *metadata.Metadata) ([]byte, error) {
	_, method, err := md.RuntimeFn(p.fnName)
	if err != nil {
		return nil, err
	}
	args := p.args.Fields
	if len(args) != len(method.Inputs) {
		return nil, clienterrors.Encode(&dynamic.EncodeError{
			Msg: fmt.Sprintf("%s takes %d arguments, got %d", p.fnName, len(method.Inputs), len(args)),
		})
	}
	byName := p.args.IsNamed()
	w := codec.NewWriter()
	for i, in := range method.Inputs {
		arg := args[i].Value
		if byName {
			var ok bool
			if arg, ok = p.args.Get(in.Name); !ok {
				return nil, clienterrors.Encode(&dynamic.EncodeError{
					Path: []string{p.fnName},
					Msg:  fmt.Sprintf("missing argument %s", in.Name),
				})
			}
		}
		if err := dynamic.EncodeTo(w, md.Types, in.Type, arg); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// Validate checks the payload's validation hash against the metadata. It is a
// no-op for payloads without one.
func (p Payload) Validate(md *metadata.Metadata) error {
	if p.validationHash == nil {
		return nil
	}
	actual, err := md.RuntimeFnHash(p.fnName)
	if err != nil {
		return err
	}
	if actual != *p.validationHash {
		return clienterrors.MetadataErr(clienterrors.IncompatibleShape, p.fnName)
	}
	return nil
}
