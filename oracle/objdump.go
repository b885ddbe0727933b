package oracle

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"regexp"

	"github.com/colorfulnotion/opfind/finderrors"
	"github.com/colorfulnotion/opfind/log"
	"github.com/colorfulnotion/opfind/shape"
	"github.com/colorfulnotion/opfind/types"
)

const (
	// MD32 ELF machine number and header flags understood by its binutils.
	MachineMD32 = 0x2454
	FlagsMD32   = 0x02454008
)

// Listing line forms, tried in this order.
var (
	reBundle = regexp.MustCompile(`^   0:\t(?P<b0>[0-9a-f]{2}) (?P<b1>[0-9a-f]{2}) (?P<b2>[0-9a-f]{2}) (?P<b3>[0-9a-f]{2}) \t(?P<instr0>[a-zA-Z0-9.]+)(\s+(?P<args0>[^|;\t]*))? \| (?P<instr1>[a-zA-Z0-9.]+)(\s+(?P<args1>[^|;\t]*))?(\t;.*)?$`)
	reWide   = regexp.MustCompile(`^   0:\t(?P<b0>[0-9a-f]{2}) (?P<b1>[0-9a-f]{2}) (?P<b2>[0-9a-f]{2}) (?P<b3>[0-9a-f]{2}) \t(?P<instr0>[a-zA-Z0-9.]+)(\s+(?P<args0>[^|;\t]*))?(\t;.*)?$`)
	reNarrow = regexp.MustCompile(`^   0:\t(?P<b0>[0-9a-f]{2}) (?P<b1>[0-9a-f]{2})       \t(?P<instr0>[a-zA-Z0-9.]+)(\s+(?P<args0>[^|;\t]*))?(\t;.*)?$`)
)

// Objdump decodes words by running the vendor objdump on a one-word ELF.
type Objdump struct {
	Path    string
	Machine uint16
	Flags   uint32
	TempDir string
	Catalog *shape.Catalog
}

// NewObjdump returns an MD32 objdump backend using "objdump" from PATH.
func NewObjdump(catalog *shape.Catalog) *Objdump {
	return &Objdump{
		Path:    "objdump",
		Machine: MachineMD32,
		Flags:   FlagsMD32,
		Catalog: catalog,
	}
}

func (o *Objdump) Decode(word uint32) (types.DecodeResult, error) {
	f, err := os.CreateTemp(o.TempDir, fmt.Sprintf("md32_0x%08x.*.elf", word))
	if err != nil {
		return types.DecodeResult{}, fmt.Errorf("objdump temp file: %v: %w", err, finderrors.ErrOracleUnavailable)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(buildWordELF(word, o.Machine, o.Flags)); err != nil {
		f.Close()
		return types.DecodeResult{}, fmt.Errorf("objdump temp file: %v: %w", err, finderrors.ErrOracleUnavailable)
	}
	f.Close()

	var stderr bytes.Buffer
	cmd := exec.Command(o.Path, "-d", f.Name())
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return types.DecodeResult{}, fmt.Errorf("%s -d: %v (%s): %w", o.Path, err, bytes.TrimSpace(stderr.Bytes()), finderrors.ErrOracleUnavailable)
	}
	log.Trace(log.Oracle, "objdump", "word", types.FormatWord(word), "out", string(out))

	res, err := ParseListing(out, o.Catalog)
	if err != nil {
		return types.DecodeResult{}, fmt.Errorf("decode %s: %w", types.FormatWord(word), err)
	}
	return res, nil
}

// ParseListing extracts the first instruction line from objdump -d output.
func ParseListing(out []byte, catalog *shape.Catalog) (types.DecodeResult, error) {
	sc := bufio.NewScanner(bytes.NewReader(bytes.Trim(out, "\n")))
	for sc.Scan() {
		line := sc.Text()
		for _, form := range []struct {
			re   *regexp.Regexp
			size int
		}{{reBundle, 2}, {reWide, 4}, {reNarrow, 2}} {
			m := form.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			return buildResult(form.re, m, form.size, catalog)
		}
	}
	if err := sc.Err(); err != nil {
		return types.DecodeResult{}, fmt.Errorf("reading listing: %v: %w", err, finderrors.ErrOracleProtocol)
	}
	return types.DecodeResult{}, fmt.Errorf("no instruction line in listing %q: %w", out, finderrors.ErrOracleProtocol)
}

func buildResult(re *regexp.Regexp, m []string, size int, catalog *shape.Catalog) (types.DecodeResult, error) {
	g := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" {
			g[name] = m[i]
		}
	}
	raw, err := hex.DecodeString(g["b0"] + g["b1"] + g["b2"] + g["b3"])
	if err != nil {
		return types.DecodeResult{}, fmt.Errorf("instruction bytes: %v: %w", err, finderrors.ErrOracleProtocol)
	}

	if g["instr0"] == "illegal" {
		return types.IllegalResult, nil
	}
	var value uint32
	if size == 4 {
		value = binary.BigEndian.Uint32(raw)
	} else {
		value = uint32(binary.BigEndian.Uint16(raw[:2]))
	}
	first := classify(size, value, g["instr0"], g["args0"], catalog)
	if g["instr1"] == "" {
		return first, nil
	}
	second := classify(size, uint32(binary.BigEndian.Uint16(raw[2:4])), g["instr1"], g["args1"], catalog)
	return types.DecodeResult{
		Kind:  types.Bundle,
		Size:  4,
		Value: binary.BigEndian.Uint32(raw),
		Parts: []types.DecodeResult{first, second},
	}, nil
}

// classify builds a singleton result. Operand text outside the catalog
// yields ShapeUnknown; whether that is fatal is up to the caller.
func classify(size int, value uint32, mnemonic, operands string, catalog *shape.Catalog) types.DecodeResult {
	s, fields, _ := catalog.Match(operands)
	return types.DecodeResult{
		Kind:     types.Decoded,
		Size:     size,
		Value:    value,
		Mnemonic: mnemonic,
		Shape:    s,
		Operands: operands,
		Fields:   fields,
	}
}
