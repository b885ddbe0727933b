package shape

import "github.com/colorfulnotion/opfind/types"

// MD32 operand shapes. The tags are the names saved in existing catalogs.
const (
	RegImmImmImm types.Shape = "ArgsRegImmImmImm"
	RegRegImmImm types.Shape = "ArgsRegRegImmImm"
	RegRegRegImm types.Shape = "ArgsRegRegRegImm"
	RegOffRegMod types.Shape = "ArgsRegOffRegMod"
	ImmRegImm    types.Shape = "ArgsImmRegImm"
	RegRegImm    types.Shape = "ArgsRegRegImm"
	RegRegReg    types.Shape = "ArgsRegRegReg"
	SfrRegReg    types.Shape = "ArgsSfrRegReg"
	RegImmImm    types.Shape = "ArgsRegImmImm"
	RegOffReg    types.Shape = "ArgsRegOffReg"
	RegAdrReg    types.Shape = "ArgsRegAdrReg"
	OffRegMod    types.Shape = "ArgsOffRegMod"
	OffReg       types.Shape = "ArgsOffReg"
	ImmImm       types.Shape = "ArgsImmImm"
	RegImm       types.Shape = "ArgsRegImm"
	RegReg       types.Shape = "ArgsRegReg"
	RegSfr       types.Shape = "ArgsRegSfr"
	SfrReg       types.Shape = "ArgsSfrReg"
	Imm          types.Shape = "ArgsImm"
	Reg          types.Shape = "ArgsReg"
	None         types.Shape = "ArgsNone"
)

// MD32 is the catalog for the MD32 objdump listing. Order matters: the
// special-register shapes accept any identifier, so "r1, r2" must reach
// RegReg before SfrReg or RegSfr.
var MD32 = NewCatalog("md32").
	Register(RegImmImmImm, `r(?P<reg0>[0-9]+), #0x(?P<imm0>[0-9a-f]+), #0x(?P<imm1>[0-9a-f]+), #0x(?P<imm2>[0-9a-f]+)`).
	Register(RegRegImmImm, `r(?P<reg0>[0-9]+), r(?P<reg1>[0-9]+), #0x(?P<imm0>[0-9a-f]+), #0x(?P<imm1>[0-9a-f]+)`).
	Register(RegRegRegImm, `r(?P<reg0>[0-9]+), r(?P<reg1>[0-9]+), r(?P<reg2>[0-9]+), #0x(?P<imm0>[0-9a-f]+)`).
	Register(RegOffRegMod, `r(?P<reg0>[0-9]+), \(r(?P<reg1>[0-9]+)\+=#0x(?P<imm0>[0-9a-f]+)\)`).
	Register(ImmRegImm, `#0x(?P<imm0>[0-9a-f]+), r(?P<reg0>[0-9]+), #0x(?P<imm1>[0-9a-f]+)`).
	Register(RegRegImm, `r(?P<reg0>[0-9]+), r(?P<reg1>[0-9]+), #0x(?P<imm0>[0-9a-f]+)`).
	Register(RegRegReg, `r(?P<reg0>[0-9]+), r(?P<reg1>[0-9]+), r(?P<reg2>[0-9]+)`).
	Register(SfrRegReg, `(?P<sfr>[a-zA-Z0-9]+), r(?P<reg0>[0-9]+), r(?P<reg1>[0-9]+)`).
	Register(RegImmImm, `r(?P<reg0>[0-9]+), #0x(?P<imm0>[0-9a-f]+), #0x(?P<imm1>[0-9a-f]+)`).
	Register(RegOffReg, `r(?P<reg0>[0-9]+), #0x(?P<imm0>[0-9a-f]+)\(r(?P<reg1>[0-9]+)\)`).
	Register(RegAdrReg, `r(?P<reg0>[0-9]+), \(r(?P<reg1>[0-9]+)\)`).
	Register(OffRegMod, `\(r(?P<reg0>[0-9]+)\+=#0x(?P<imm0>[0-9a-f]+)\)`).
	Register(OffReg, `#0x(?P<imm0>[0-9a-f]+)\(r(?P<reg0>[0-9]+)\)`).
	Register(ImmImm, `#0x(?P<imm0>[0-9a-f]+), #0x(?P<imm1>[0-9a-f]+)`).
	Register(RegImm, `r(?P<reg0>[0-9]+), #0x(?P<imm0>[0-9a-f]+)`).
	Register(RegReg, `r(?P<reg0>[0-9]+), r(?P<reg1>[0-9]+)`).
	Register(RegSfr, `r(?P<reg0>[0-9]+), (?P<sfr>[a-zA-Z0-9]+)`).
	Register(SfrReg, `(?P<sfr>[a-zA-Z0-9]+), r(?P<reg0>[0-9]+)`).
	Register(Imm, `#0x(?P<imm0>[0-9a-f]+)`).
	Register(Reg, `r(?P<reg0>[0-9]+)`).
	Register(None, ``)
