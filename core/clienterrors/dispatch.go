package clienterrors

import (
	"fmt"
	"strings"
)

type DispatchErrorKind int

const (
	DispatchOther DispatchErrorKind = iota
	DispatchCannotLookup
	DispatchBadOrigin
	DispatchModule
	DispatchConsumerRemaining
	DispatchNoProviders
	DispatchTooManyConsumers
	DispatchToken
	DispatchArithmetic
	DispatchTransactional
	DispatchExhausted
	DispatchCorruption
	DispatchUnavailable
	DispatchRootNotAllowed
)

var dispatchKindNames = map[string]DispatchErrorKind{
	"Other":             DispatchOther,
	"CannotLookup":      DispatchCannotLookup,
	"BadOrigin":         DispatchBadOrigin,
	"Module":            DispatchModule,
	"ConsumerRemaining": DispatchConsumerRemaining,
	"NoProviders":       DispatchNoProviders,
	"TooManyConsumers":  DispatchTooManyConsumers,
	"Token":             DispatchToken,
	"Arithmetic":        DispatchArithmetic,
	"Transactional":     DispatchTransactional,
	"Exhausted":         DispatchExhausted,
	"Corruption":        DispatchCorruption,
	"Unavailable":       DispatchUnavailable,
	"RootNotAllowed":    DispatchRootNotAllowed,
}

// DispatchKindByName maps a DispatchError variant name to its kind.
func DispatchKindByName(name string) (DispatchErrorKind, bool) {
	k, ok := dispatchKindNames[name]
	return k, ok
}

// ModuleError is a pallet specific dispatch failure.
type ModuleError struct {
	PalletIndex uint8
	// Raw is the encoded error: the variant index followed by any data.
	Raw    [4]byte
	Pallet string
	Name   string
	Docs   []string
}

func (e *ModuleError) Error() string {
	if e.Pallet == "" {
		return fmt.Sprintf("module error: pallet %d, error 0x%x", e.PalletIndex, e.Raw)
	}
	msg := fmt.Sprintf("%s.%s", e.Pallet, e.Name)
	if len(e.Docs) > 0 {
		msg += ": " + strings.Join(e.Docs, " ")
	}
	return msg
}

// DispatchError is a structured on-chain dispatch failure. Token, Arithmetic and
// Transactional failures carry the name of their cause in Detail.
type DispatchError struct {
	Kind   DispatchErrorKind
	Module *ModuleError
	Detail string
}

func (e *DispatchError) Error() string {
	switch e.Kind {
	case DispatchModule:
		return fmt.Sprintf("Module error: %v", e.Module)
	case DispatchToken:
		return fmt.Sprintf("Token error: %s", e.Detail)
	case DispatchArithmetic:
		return fmt.Sprintf("Arithmetic error: %s", e.Detail)
	case DispatchTransactional:
		return fmt.Sprintf("Transactional error: %s", e.Detail)
	}
	for name, k := range dispatchKindNames {
		if k == e.Kind {
			return fmt.Sprintf("Dispatch error: %s", name)
		}
	}
	return "Dispatch error"
}

func (e *DispatchError) Unwrap() error {
	if e.Module != nil {
		return e.Module
	}
	return nil
}
