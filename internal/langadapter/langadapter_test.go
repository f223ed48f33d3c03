package langadapter

import "testing"

const sampleAli = `V "GNAT Lib v12"
A -O2
P ZX
U foo.bar%b foo-bar.adb foo-bar.ali
W ada.text_io%s a-textio.ali a-textio.adb
W foo.util%s foo-util.ali foo-util.adb
D foo-bar.adb 123 abcdef
`

func TestParseAli(t *testing.T) {
	unit, err := ParseAli([]byte(sampleAli))
	if err != nil {
		t.Fatalf("ParseAli: %v", err)
	}
	if unit.Name != "foo.bar" {
		t.Errorf("Name = %q, want foo.bar", unit.Name)
	}
	if unit.SourceFile != "foo-bar.adb" {
		t.Errorf("SourceFile = %q, want foo-bar.adb", unit.SourceFile)
	}
	wantImports := []string{"ada.text_io", "foo.util"}
	if len(unit.Imports) != len(wantImports) {
		t.Fatalf("Imports = %v, want %v", unit.Imports, wantImports)
	}
	for i, imp := range wantImports {
		if unit.Imports[i] != imp {
			t.Errorf("Imports[%d] = %q, want %q", i, unit.Imports[i], imp)
		}
	}
}

func TestParseAli_NoUnitLine(t *testing.T) {
	if _, err := ParseAli([]byte("V \"GNAT Lib v12\"\n")); err == nil {
		t.Fatal("expected error for .ali with no U line")
	}
}

func TestAdaAdapter_Recognize(t *testing.T) {
	a := &AdaAdapter{}
	if !a.Recognize("foo.ali", nil) {
		t.Error("Recognize(\"foo.ali\") = false, want true")
	}
	if !a.Recognize("foo", []byte(sampleAli)) {
		t.Error("Recognize by content = false, want true")
	}
	if a.Recognize("foo.o", []byte("not ali data")) {
		t.Error("Recognize(unrelated) = true, want false")
	}
}

func TestParseAliDir_MissingDir(t *testing.T) {
	units, err := ParseAliDir("/nonexistent/ali/dir")
	if err != nil {
		t.Fatalf("ParseAliDir: %v", err)
	}
	if len(units) != 0 {
		t.Errorf("units = %v, want empty", units)
	}
}

func TestRustSwiftAdapters_AreNoops(t *testing.T) {
	for _, a := range []Adapter{&RustAdapter{}, &SwiftAdapter{}} {
		if a.Recognize("anything", []byte("anything")) {
			t.Errorf("%s.Recognize = true, want false (placeholder)", a.Name())
		}
		if err := a.Enrich(nil, Context{}); err != nil {
			t.Errorf("%s.Enrich = %v, want nil", a.Name(), err)
		}
	}
}
