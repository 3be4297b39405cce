package gateway

import "paybridge/internal/models"

// InterpretedKind discriminates the result of interpreting a native status.
type InterpretedKind int

const (
	// InterpretedUnknown means no rule matched. The explicit variant exists
	// so callers can never mistake an unmapped code for an inert one.
	InterpretedUnknown InterpretedKind = iota
	InterpretedCharge
	InterpretedRefund
	InterpretedIgnored
)

// Interpreted is the canonical meaning of a gateway-native status token.
type Interpreted struct {
	Kind         InterpretedKind
	ChargeStatus models.ChargeStatus
	RefundStatus models.RefundStatus
}

type qualifiedKey struct {
	native  string
	current models.ChargeStatus
}

// StatusMapper interprets a gateway's native status vocabulary. Each gateway
// builds its own table once at adapter construction; the table is read-only
// afterwards, so lookups from any number of goroutines need no locking.
type StatusMapper struct {
	unqualified map[string]Interpreted
	qualified   map[qualifiedKey]Interpreted
}

// Interpret maps a native status, optionally disambiguated by the charge's
// current canonical status, onto its canonical meaning. It is total: a token
// with no matching rule yields InterpretedUnknown, never a panic. Rules
// qualified by current status take precedence over unqualified ones.
func (m *StatusMapper) Interpret(native string, current models.ChargeStatus) Interpreted {
	if r, ok := m.qualified[qualifiedKey{native: native, current: current}]; ok {
		return r
	}
	if r, ok := m.unqualified[native]; ok {
		return r
	}
	return Interpreted{Kind: InterpretedUnknown}
}

// StatusMapperBuilder accumulates mapping rules and seals them into an
// immutable StatusMapper.
type StatusMapperBuilder struct {
	unqualified map[string]Interpreted
	qualified   map[qualifiedKey]Interpreted
}

func NewStatusMapperBuilder() *StatusMapperBuilder {
	return &StatusMapperBuilder{
		unqualified: map[string]Interpreted{},
		qualified:   map[qualifiedKey]Interpreted{},
	}
}

// MapCharge maps a native status to a canonical charge status.
func (b *StatusMapperBuilder) MapCharge(native string, to models.ChargeStatus) *StatusMapperBuilder {
	b.unqualified[native] = Interpreted{Kind: InterpretedCharge, ChargeStatus: to}
	return b
}

// MapChargeWhen maps a native status to a canonical charge status, but only
// while the charge currently holds the given status. These rules carry the
// precondition set for codes whose meaning depends on context.
func (b *StatusMapperBuilder) MapChargeWhen(native string, current, to models.ChargeStatus) *StatusMapperBuilder {
	b.qualified[qualifiedKey{native: native, current: current}] = Interpreted{Kind: InterpretedCharge, ChargeStatus: to}
	return b
}

// MapRefund maps a native status to a canonical refund status.
func (b *StatusMapperBuilder) MapRefund(native string, to models.RefundStatus) *StatusMapperBuilder {
	b.unqualified[native] = Interpreted{Kind: InterpretedRefund, RefundStatus: to}
	return b
}

// Ignore marks a native status as valid but intentionally inert.
func (b *StatusMapperBuilder) Ignore(native string) *StatusMapperBuilder {
	b.unqualified[native] = Interpreted{Kind: InterpretedIgnored}
	return b
}

// Build seals the rule set. The builder must not be reused afterwards.
func (b *StatusMapperBuilder) Build() *StatusMapper {
	return &StatusMapper{unqualified: b.unqualified, qualified: b.qualified}
}
