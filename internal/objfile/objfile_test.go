package objfile

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"
)

func TestSniff(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    Format
		wantErr bool
	}{
		{"elf magic", []byte{0x7f, 'E', 'L', 'F', 1, 1, 1}, FormatELF, false},
		{"macho 64 magic", []byte{0xfe, 0xed, 0xfa, 0xcf, 0, 0, 0, 0}, FormatMachO, false},
		{"macho fat magic", []byte{0xca, 0xfe, 0xba, 0xbe, 0, 0, 0, 0}, FormatMachO, false},
		{"pe magic", []byte{'M', 'Z', 0x90, 0x00}, FormatPE, false},
		{"garbage", []byte{1, 2, 3, 4}, "", true},
		{"empty", nil, "", true},
		{"short", []byte{0x7f}, "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Sniff(tc.data)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Sniff() err = %v, wantErr %v", err, tc.wantErr)
			}
			if err == nil && got != tc.want {
				t.Errorf("Sniff() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDecode_NeverPanicsOnGarbage(t *testing.T) {
	inputs := [][]byte{
		{0x7f, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0}, // truncated ELF header
		append([]byte{0x7f, 'E', 'L', 'F'}, bytes.Repeat([]byte{0xff}, 60)...),
		{'M', 'Z'},
		{0xfe, 0xed, 0xfa, 0xcf},
	}
	for i, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("input %d: Decode panicked: %v", i, r)
				}
			}()
			_, _ = Decode(in)
		}()
	}
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	_, err := Decode([]byte("not an object file at all"))
	if err == nil {
		t.Fatal("expected ErrUnsupportedFormat")
	}
}

// buildMinimalELF constructs a minimal, valid little-endian 64-bit ET_DYN
// ELF file with one section, for exercising the real decode path rather
// than only the truncated/garbage path above.
func buildMinimalELF(t *testing.T) []byte {
	t.Helper()

	const (
		ehdrSize = 64
		shdrSize = 64
	)

	var buf bytes.Buffer

	// e_ident
	ident := [16]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0}
	buf.Write(ident[:])

	shoff := uint64(ehdrSize)
	write16 := func(v uint16) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	write32 := func(v uint32) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	write64 := func(v uint64) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	write16(uint16(elf.ET_DYN))   // e_type
	write16(uint16(elf.EM_X86_64)) // e_machine
	write32(1)                     // e_version
	write64(0)                     // e_entry
	write64(0)                     // e_phoff
	write64(shoff)                 // e_shoff
	write32(0)                     // e_flags
	write16(ehdrSize)               // e_ehsize
	write16(0)                       // e_phentsize
	write16(0)                       // e_phnum
	write16(shdrSize)                // e_shentsize
	write16(2)                       // e_shnum (null + 1 real section)
	write16(0)                       // e_shstrndx (no string table, names will be empty)

	// section 0: SHT_NULL
	for i := 0; i < shdrSize; i++ {
		buf.WriteByte(0)
	}
	// section 1: a nameless PROGBITS section
	write32(0)                      // sh_name
	write32(uint32(elf.SHT_PROGBITS)) // sh_type
	write64(uint64(elf.SHF_ALLOC))    // sh_flags
	write64(0)                        // sh_addr
	write64(0)                        // sh_offset
	write64(0)                        // sh_size
	write32(0)                        // sh_link
	write32(0)                        // sh_info
	write64(0)                        // sh_addralign
	write64(0)                        // sh_entsize

	return buf.Bytes()
}

func TestDecodeELF_Minimal(t *testing.T) {
	data := buildMinimalELF(t)

	facts, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if facts.Format != FormatELF {
		t.Errorf("Format = %q, want ELF", facts.Format)
	}
	if facts.Bits != 64 {
		t.Errorf("Bits = %d, want 64", facts.Bits)
	}
	if !facts.IsPIE {
		t.Errorf("IsPIE = false, want true for ET_DYN")
	}
	if !facts.IsStripped {
		t.Errorf("IsStripped = false, want true (no symbol table)")
	}
}
