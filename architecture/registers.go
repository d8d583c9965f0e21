package architecture

import (
	"fmt"
)

// A general register file (GRF) register number.
type Register uint16

const (
	NumRegisters = 128

	// Marks the point where a synchronization barrier belongs if the live
	// dependency state requires one.  It never names a real register.
	RegNone = Register(0xFFFF)

	// The register hardware implicitly syncs on before end of thread.
	EOTRegister = Register(127)
)

func (reg Register) IsValid() bool {
	return reg < NumRegisters
}

func (reg Register) String() string {
	if reg == RegNone {
		return "r<none>"
	}
	return fmt.Sprintf("r%d", uint16(reg))
}

type AccessKind uint16

const (
	FullUse    = AccessKind(0)
	PartialUse = AccessKind(1)
	FullDef    = AccessKind(2)
	PartialDef = AccessKind(3)
)

func (kind AccessKind) String() string {
	switch kind {
	case FullUse:
		return "use"
	case PartialUse:
		return "partial-use"
	case FullDef:
		return "def"
	case PartialDef:
		return "partial-def"
	default:
		return fmt.Sprintf("kind(%d)", uint16(kind))
	}
}

const (
	accessKindShift = 14
	tokenMask       = 0x3FFF

	// Token field value meaning the access has no token associated.
	NoToken = uint16(tokenMask)
)

// Packed def/use/token field.  The top 2 bits select the access kind and the
// low 14 bits hold either a token id or NoToken.
type DefUseToken uint16

func NewDefUseToken(kind AccessKind, token uint16) DefUseToken {
	return DefUseToken(uint16(kind)<<accessKindShift | token&tokenMask)
}

func (dut DefUseToken) Kind() AccessKind {
	return AccessKind(uint16(dut) >> accessKindShift)
}

func (dut DefUseToken) IsDef() bool {
	return dut.Kind() >= FullDef
}

func (dut DefUseToken) IsUse() bool {
	return dut.Kind() <= PartialUse
}

func (dut DefUseToken) HasToken() bool {
	return uint16(dut)&tokenMask != NoToken
}

func (dut DefUseToken) Token() (uint16, bool) {
	token := uint16(dut) & tokenMask
	return token, token != NoToken
}

func (dut DefUseToken) IsDefByToken() bool {
	return dut.IsDef() && dut.HasToken()
}

func (dut DefUseToken) IsUseByToken() bool {
	return dut.IsUse() && dut.HasToken()
}

func (dut DefUseToken) IsDefNotByToken() bool {
	return dut.IsDef() && !dut.HasToken()
}

func (dut DefUseToken) IsUseNotByToken() bool {
	return dut.IsUse() && !dut.HasToken()
}

func (dut DefUseToken) String() string {
	token, ok := dut.Token()
	if !ok {
		return dut.Kind().String()
	}
	return fmt.Sprintf("%s $%d", dut.Kind(), token)
}
