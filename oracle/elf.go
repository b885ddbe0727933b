package oracle

import (
	"bytes"
	"encoding/binary"
)

const (
	elfHeaderLen   = 0x34
	elfSectionSize = 0x28
)

type elfSection struct {
	Name, Type, Flags, Addr, Offset, Size, Link, Info, AddrAlign, EntSize uint32
}

// buildELF wraps code in a relocatable ELF32 object with a single .text
// section so objdump will disassemble it.
func buildELF(code []byte, machine uint16, flags uint32) []byte {
	shstrtab := []byte("\x00.shstrtab\x00.text\x00")
	const (
		shstrtabName = 1
		textName     = 11
	)
	body := append(append([]byte{}, code...), shstrtab...)
	shoff := uint32(elfHeaderLen + len(body))

	sections := []elfSection{
		{},
		{Name: textName, Type: 1, Flags: 6, Offset: elfHeaderLen, Size: uint32(len(code)), AddrAlign: 2},
		{Name: shstrtabName, Type: 3, Offset: elfHeaderLen + uint32(len(code)), Size: uint32(len(shstrtab)), AddrAlign: 1},
	}

	var buf bytes.Buffer
	buf.Write([]byte{0x7f, 'E', 'L', 'F', 1, 1, 1, 0, 0})
	buf.Write(make([]byte, 7))
	hdr := struct {
		Type, Machine                uint16
		Version, Entry, Phoff, Shoff uint32
		Flags                        uint32
		Ehsize, Phentsize, Phnum     uint16
		Shentsize, Shnum, Shstrndx   uint16
	}{
		Type: 1, Machine: machine, Version: 1, Shoff: shoff, Flags: flags,
		Ehsize: elfHeaderLen, Shentsize: elfSectionSize,
		Shnum: uint16(len(sections)), Shstrndx: 2,
	}
	binary.Write(&buf, binary.LittleEndian, hdr)
	buf.Write(body)
	for _, s := range sections {
		binary.Write(&buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}

// buildWordELF encodes word big-endian, as the MD32 toolchain stores it.
func buildWordELF(word uint32, machine uint16, flags uint32) []byte {
	var code [4]byte
	binary.BigEndian.PutUint32(code[:], word)
	return buildELF(code[:], machine, flags)
}
