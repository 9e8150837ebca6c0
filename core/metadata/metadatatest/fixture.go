// Package metadatatest builds a small but realistic runtime metadata for tests.
package metadatatest

import (
	"fmt"

	"github.com/chronicleprotocol/scalerpc/core/metadata"
)

// Type ids of the fixture registry.
const (
	U8 uint32 = iota
	U32
	U64
	U128
	Bool
	Str
	Bytes32
	AccountID32
	VecU8
	CompactU32
	CompactU128
	Unit
	MultiAddress
	Bytes20
	Bytes64
	Bytes65
	MultiSignature
	Era
	CheckNonZeroSender
	CheckSpecVersion
	CheckTxVersion
	CheckGenesis
	CheckMortality
	CheckNonce
	CheckWeight
	ChargeAssetTxPayment
	OptionU32
	H256
	Extra
	SystemCall
	BalancesCall
	RuntimeCall
	UncheckedExtrinsic
	AccountInfo
	AccountData
	BalancesError
	ModuleError
	Bytes4
	TokenError
	ArithmeticError
	TransactionalError
	DispatchError
	VecU32
	RuntimeDispatchInfo
	Weight
	DispatchClass
	CompactU64
	RuntimeEvent
	SystemEvent
	RuntimeError
	BitVec
	Lsb0
	AssetKey
	Phase
	EventRecord
	VecEventRecord
	VecH256
	BalancesEvent
)

func id(v uint32) *uint32 { return &v }

func prim(p metadata.Primitive) metadata.Type {
	return metadata.Type{Def: metadata.TypeDef{Kind: metadata.DefPrimitive, Primitive: p}}
}

func array(n, elem uint32) metadata.Type {
	return metadata.Type{Def: metadata.TypeDef{Kind: metadata.DefArray, Len: n, Elem: elem}}
}

func seq(elem uint32) metadata.Type {
	return metadata.Type{Def: metadata.TypeDef{Kind: metadata.DefSequence, Elem: elem}}
}

func compact(elem uint32) metadata.Type {
	return metadata.Type{Def: metadata.TypeDef{Kind: metadata.DefCompact, Elem: elem}}
}

func composite(path []string, fields ...metadata.Field) metadata.Type {
	return metadata.Type{Path: path, Def: metadata.TypeDef{Kind: metadata.DefComposite, Fields: fields}}
}

func variant(path []string, variants ...metadata.Variant) metadata.Type {
	return metadata.Type{Path: path, Def: metadata.TypeDef{Kind: metadata.DefVariant, Variants: variants}}
}

func tuple(elems ...uint32) metadata.Type {
	return metadata.Type{Def: metadata.TypeDef{Kind: metadata.DefTuple, Tuple: elems}}
}

func f(name string, typ uint32) metadata.Field {
	return metadata.Field{Name: name, Type: typ}
}

func unit(name string, index uint8) metadata.Variant {
	return metadata.Variant{Name: name, Index: index}
}

func eraType() metadata.Type {
	variants := []metadata.Variant{unit("Immortal", 0)}
	for i := 1; i < 256; i++ {
		variants = append(variants, metadata.Variant{
			Name:   fmt.Sprintf("Mortal%d", i),
			Index:  uint8(i),
			Fields: []metadata.Field{f("", U8)},
		})
	}
	return variant([]string{"sp_runtime", "generic", "era", "Era"}, variants...)
}

func types() []metadata.Type {
	optionU32 := variant([]string{"Option"}, unit("None", 0), metadata.Variant{Name: "Some", Index: 1, Fields: []metadata.Field{f("", U32)}})
	optionU32.Params = []metadata.TypeParam{{Name: "T", Type: id(U32)}}

	extrinsic := composite([]string{"sp_runtime", "generic", "unchecked_extrinsic", "UncheckedExtrinsic"}, f("", VecU8))
	extrinsic.Params = []metadata.TypeParam{
		{Name: "Address", Type: id(MultiAddress)},
		{Name: "Call", Type: id(RuntimeCall)},
		{Name: "Signature", Type: id(MultiSignature)},
		{Name: "Extra", Type: id(Extra)},
	}

	balancesError := variant([]string{"pallet_balances", "pallet", "Error"},
		metadata.Variant{Name: "VestingBalance", Index: 0, Docs: []string{"Vesting balance too high to send value."}},
		metadata.Variant{Name: "LiquidityRestrictions", Index: 1, Docs: []string{"Account liquidity restrictions prevent withdrawal."}},
		metadata.Variant{Name: "InsufficientBalance", Index: 2, Docs: []string{"Balance too low to send value."}},
	)

	return []metadata.Type{
		U8:             prim(metadata.PrimU8),
		U32:            prim(metadata.PrimU32),
		U64:            prim(metadata.PrimU64),
		U128:           prim(metadata.PrimU128),
		Bool:           prim(metadata.PrimBool),
		Str:            prim(metadata.PrimStr),
		Bytes32:        array(32, U8),
		AccountID32:    composite([]string{"sp_core", "crypto", "AccountId32"}, f("", Bytes32)),
		VecU8:          seq(U8),
		CompactU32:     compact(U32),
		CompactU128:    compact(U128),
		Unit:           tuple(),
		MultiAddress: variant([]string{"sp_runtime", "multiaddress", "MultiAddress"},
			metadata.Variant{Name: "Id", Index: 0, Fields: []metadata.Field{f("", AccountID32)}},
			metadata.Variant{Name: "Index", Index: 1, Fields: []metadata.Field{f("", CompactU32)}},
			metadata.Variant{Name: "Raw", Index: 2, Fields: []metadata.Field{f("", VecU8)}},
			metadata.Variant{Name: "Address32", Index: 3, Fields: []metadata.Field{f("", Bytes32)}},
			metadata.Variant{Name: "Address20", Index: 4, Fields: []metadata.Field{f("", Bytes20)}},
		),
		Bytes20: array(20, U8),
		Bytes64: array(64, U8),
		Bytes65: array(65, U8),
		MultiSignature: variant([]string{"sp_runtime", "MultiSignature"},
			metadata.Variant{Name: "Ed25519", Index: 0, Fields: []metadata.Field{f("", Bytes64)}},
			metadata.Variant{Name: "Sr25519", Index: 1, Fields: []metadata.Field{f("", Bytes64)}},
			metadata.Variant{Name: "Ecdsa", Index: 2, Fields: []metadata.Field{f("", Bytes65)}},
		),
		Era:                  eraType(),
		CheckNonZeroSender:   composite([]string{"frame_system", "extensions", "check_non_zero_sender", "CheckNonZeroSender"}),
		CheckSpecVersion:     composite([]string{"frame_system", "extensions", "check_spec_version", "CheckSpecVersion"}),
		CheckTxVersion:       composite([]string{"frame_system", "extensions", "check_tx_version", "CheckTxVersion"}),
		CheckGenesis:         composite([]string{"frame_system", "extensions", "check_genesis", "CheckGenesis"}),
		CheckMortality:       composite([]string{"frame_system", "extensions", "check_mortality", "CheckMortality"}, f("", Era)),
		CheckNonce:           composite([]string{"frame_system", "extensions", "check_nonce", "CheckNonce"}, f("", CompactU32)),
		CheckWeight:          composite([]string{"frame_system", "extensions", "check_weight", "CheckWeight"}),
		ChargeAssetTxPayment: composite([]string{"pallet_asset_tx_payment", "ChargeAssetTxPayment"}, f("tip", CompactU128), f("asset_id", OptionU32)),
		OptionU32:            optionU32,
		H256:                 composite([]string{"primitive_types", "H256"}, f("", Bytes32)),
		Extra:                tuple(CheckNonZeroSender, CheckSpecVersion, CheckTxVersion, CheckGenesis, CheckMortality, CheckNonce, CheckWeight, ChargeAssetTxPayment),
		SystemCall: variant([]string{"frame_system", "pallet", "Call"},
			metadata.Variant{Name: "remark", Index: 0, Fields: []metadata.Field{f("remark", VecU8)}},
		),
		BalancesCall: variant([]string{"pallet_balances", "pallet", "Call"},
			metadata.Variant{Name: "transfer_keep_alive", Index: 3, Fields: []metadata.Field{f("dest", MultiAddress), f("value", CompactU128)}},
		),
		RuntimeCall: variant([]string{"node_runtime", "RuntimeCall"},
			metadata.Variant{Name: "System", Index: 0, Fields: []metadata.Field{f("", SystemCall)}},
			metadata.Variant{Name: "Balances", Index: 5, Fields: []metadata.Field{f("", BalancesCall)}},
		),
		UncheckedExtrinsic: extrinsic,
		AccountInfo: composite([]string{"frame_system", "AccountInfo"},
			f("nonce", U32), f("consumers", U32), f("providers", U32), f("sufficients", U32), f("data", AccountData)),
		AccountData: composite([]string{"pallet_balances", "types", "AccountData"},
			f("free", U128), f("reserved", U128), f("frozen", U128), f("flags", U128)),
		BalancesError: balancesError,
		ModuleError:   composite([]string{"sp_runtime", "ModuleError"}, f("index", U8), f("error", Bytes4)),
		Bytes4:        array(4, U8),
		TokenError: variant([]string{"sp_runtime", "TokenError"},
			unit("FundsUnavailable", 0), unit("OnlyProvider", 1), unit("BelowMinimum", 2)),
		ArithmeticError: variant([]string{"sp_arithmetic", "ArithmeticError"},
			unit("Underflow", 0), unit("Overflow", 1), unit("DivisionByZero", 2)),
		TransactionalError: variant([]string{"sp_runtime", "TransactionalError"},
			unit("LimitReached", 0), unit("NoLayer", 1)),
		DispatchError: variant([]string{"sp_runtime", "DispatchError"},
			unit("Other", 0),
			unit("CannotLookup", 1),
			unit("BadOrigin", 2),
			metadata.Variant{Name: "Module", Index: 3, Fields: []metadata.Field{f("", ModuleError)}},
			unit("ConsumerRemaining", 4),
			unit("NoProviders", 5),
			unit("TooManyConsumers", 6),
			metadata.Variant{Name: "Token", Index: 7, Fields: []metadata.Field{f("", TokenError)}},
			metadata.Variant{Name: "Arithmetic", Index: 8, Fields: []metadata.Field{f("", ArithmeticError)}},
			metadata.Variant{Name: "Transactional", Index: 9, Fields: []metadata.Field{f("", TransactionalError)}},
			unit("Exhausted", 10),
			unit("Corruption", 11),
			unit("Unavailable", 12),
			unit("RootNotAllowed", 13),
		),
		VecU32: seq(U32),
		RuntimeDispatchInfo: composite([]string{"pallet_transaction_payment", "types", "RuntimeDispatchInfo"},
			f("weight", Weight), f("class", DispatchClass), f("partial_fee", U128)),
		Weight: composite([]string{"sp_weights", "weight_v2", "Weight"},
			f("ref_time", CompactU64), f("proof_size", CompactU64)),
		DispatchClass: variant([]string{"frame_support", "dispatch", "DispatchClass"},
			unit("Normal", 0), unit("Operational", 1), unit("Mandatory", 2)),
		CompactU64: compact(U64),
		RuntimeEvent: variant([]string{"node_runtime", "RuntimeEvent"},
			metadata.Variant{Name: "System", Index: 0, Fields: []metadata.Field{f("", SystemEvent)}},
			metadata.Variant{Name: "Balances", Index: 5, Fields: []metadata.Field{f("", BalancesEvent)}},
		),
		SystemEvent: variant([]string{"frame_system", "pallet", "Event"},
			unit("ExtrinsicSuccess", 0),
			metadata.Variant{Name: "ExtrinsicFailed", Index: 1, Fields: []metadata.Field{f("dispatch_error", DispatchError)}},
		),
		RuntimeError: variant([]string{"node_runtime", "RuntimeError"},
			metadata.Variant{Name: "Balances", Index: 5, Fields: []metadata.Field{f("", BalancesError)}},
		),
		BitVec:   {Def: metadata.TypeDef{Kind: metadata.DefBitSequence, BitStore: U8, BitOrder: Lsb0}},
		Lsb0:     composite([]string{"bitvec", "order", "Lsb0"}),
		AssetKey: tuple(U32, AccountID32),
		Phase: variant([]string{"frame_system", "Phase"},
			metadata.Variant{Name: "ApplyExtrinsic", Index: 0, Fields: []metadata.Field{f("", U32)}},
			unit("Finalization", 1),
			unit("Initialization", 2),
		),
		EventRecord: composite([]string{"frame_system", "EventRecord"},
			f("phase", Phase), f("event", RuntimeEvent), f("topics", VecH256)),
		VecEventRecord: seq(EventRecord),
		VecH256:        seq(H256),
		BalancesEvent: variant([]string{"pallet_balances", "pallet", "Event"},
			metadata.Variant{Name: "Transfer", Index: 2, Fields: []metadata.Field{f("from", AccountID32), f("to", AccountID32), f("amount", U128)}},
		),
	}
}

// Metadata returns a fresh copy of the fixture. Callers may mutate it.
func Metadata() *metadata.Metadata {
	blockHashCount := []byte{0x60, 0x09, 0, 0} // 2400
	existentialDeposit := make([]byte, 16)
	existentialDeposit[0] = 0xf4
	existentialDeposit[1] = 0x01 // 500

	return &metadata.Metadata{
		Version: metadata.V15,
		Types:   metadata.NewRegistry(types()),
		Pallets: []metadata.Pallet{
			{
				Name:          "System",
				Index:         0,
				StoragePrefix: "System",
				Storage: []metadata.StorageEntry{
					{
						Name:      "Account",
						Modifier:  metadata.Default,
						Hashers:   []metadata.StorageHasher{metadata.Blake2_128Concat},
						KeyType:   AccountID32,
						ValueType: AccountInfo,
						Default:   make([]byte, 4*4+4*16),
						Docs:      []string{" The full account information for a particular account ID."},
					},
					{
						Name:      "Number",
						Modifier:  metadata.Default,
						Plain:     true,
						ValueType: U32,
						Default:   make([]byte, 4),
					},
					{
						Name:      "Events",
						Modifier:  metadata.Default,
						Plain:     true,
						ValueType: VecEventRecord,
						Default:   []byte{0},
					},
				},
				Calls:     id(SystemCall),
				Events:    id(SystemEvent),
				Constants: []metadata.Constant{{Name: "BlockHashCount", Type: U32, Value: blockHashCount}},
			},
			{
				Name:          "Balances",
				Index:         5,
				StoragePrefix: "Balances",
				Storage: []metadata.StorageEntry{
					{
						Name:      "TotalIssuance",
						Modifier:  metadata.Default,
						Plain:     true,
						ValueType: U128,
						Default:   make([]byte, 16),
					},
				},
				Calls:     id(BalancesCall),
				Events:    id(BalancesEvent),
				Errors:    id(BalancesError),
				Constants: []metadata.Constant{{Name: "ExistentialDeposit", Type: U128, Value: existentialDeposit}},
			},
			{
				Name:          "Assets",
				Index:         50,
				StoragePrefix: "Assets",
				Storage: []metadata.StorageEntry{
					{
						Name:      "Account",
						Modifier:  metadata.Optional,
						Hashers:   []metadata.StorageHasher{metadata.Blake2_128Concat, metadata.Blake2_128Concat},
						KeyType:   AssetKey,
						ValueType: U128,
					},
				},
			},
		},
		Extrinsic: metadata.Extrinsic{
			Version:       4,
			AddressType:   MultiAddress,
			CallType:      RuntimeCall,
			SignatureType: MultiSignature,
			ExtraType:     Extra,
			SignedExtensions: []metadata.SignedExtension{
				{Identifier: "CheckNonZeroSender", Type: CheckNonZeroSender, AdditionalSigned: Unit},
				{Identifier: "CheckSpecVersion", Type: CheckSpecVersion, AdditionalSigned: U32},
				{Identifier: "CheckTxVersion", Type: CheckTxVersion, AdditionalSigned: U32},
				{Identifier: "CheckGenesis", Type: CheckGenesis, AdditionalSigned: H256},
				{Identifier: "CheckMortality", Type: CheckMortality, AdditionalSigned: H256},
				{Identifier: "CheckNonce", Type: CheckNonce, AdditionalSigned: Unit},
				{Identifier: "CheckWeight", Type: CheckWeight, AdditionalSigned: Unit},
				{Identifier: "ChargeAssetTxPayment", Type: ChargeAssetTxPayment, AdditionalSigned: Unit},
			},
		},
		RuntimeType: Unit,
		APIs: []metadata.RuntimeAPI{
			{
				Name: "AccountNonceApi",
				Methods: []metadata.RuntimeAPIMethod{
					{Name: "account_nonce", Inputs: []metadata.RuntimeAPIParam{{Name: "account", Type: AccountID32}}, Output: U32},
				},
			},
			{
				Name: "Metadata",
				Methods: []metadata.RuntimeAPIMethod{
					{Name: "metadata_versions", Output: VecU32},
				},
			},
			{
				Name: "TransactionPaymentApi",
				Methods: []metadata.RuntimeAPIMethod{
					{
						Name: "query_info",
						Inputs: []metadata.RuntimeAPIParam{
							{Name: "uxt", Type: VecU8},
							{Name: "len", Type: U32},
						},
						Output: RuntimeDispatchInfo,
					},
				},
			},
		},
		OuterEnums: metadata.OuterEnums{Call: RuntimeCall, Event: RuntimeEvent, Error: RuntimeError},
	}
}
