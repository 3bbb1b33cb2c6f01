package core

import (
	"errors"
	"reflect"
	"testing"
)

func TestSplitCSVLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"plain", "a,b,c", []string{"a", "b", "c"}},
		{"quoted comma", `"a,b",c`, []string{"a,b", "c"}},
		{"doubled quote", `"say ""hi""",x`, []string{`say "hi"`, "x"}},
		{"trailing empties", "a,,", []string{"a", "", ""}},
		{"empty line", "", []string{""}},
		{"untrimmed", " a , b", []string{" a ", " b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitCSVLine(tt.line)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitCSVLine(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestJoinCSVLine_RoundTrip(t *testing.T) {
	fields := []string{"plain", "with,comma", `q"uote`, " lead", ""}
	line := JoinCSVLine(fields)

	want := `plain,"with,comma","q""uote"," lead",`
	if line != want {
		t.Errorf("JoinCSVLine() = %q, want %q", line, want)
	}
	if got := SplitCSVLine(line); !reflect.DeepEqual(got, fields) {
		t.Errorf("SplitCSVLine(JoinCSVLine()) = %q, want %q", got, fields)
	}
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bom removed", "\ufeffweek,lesson", "week,lesson"},
		{"invalid utf8 replaced", "a\xffb", "a\uFFFDb"},
		{"clean text kept", "héllo", "héllo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeText(tt.in); got != tt.want {
				t.Errorf("sanitizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestReadCSVTable(t *testing.T) {
	specs := []FieldSpec{{Name: "email", Required: true}, {Name: "name"}}

	t.Run("skips blank and comma-only lines", func(t *testing.T) {
		table, err := readCSVTable("\ufeffEmail,Name\r\n\r\n,,\r\na@x.com,A\r\n", specs)
		if err != nil {
			t.Fatalf("readCSVTable() error = %v", err)
		}
		if len(table.Rows) != 1 {
			t.Fatalf("rows = %d, want 1", len(table.Rows))
		}
		if table.Rows[0].Line != 4 {
			t.Errorf("Line = %d, want 4", table.Rows[0].Line)
		}
		if got := table.Header.Get(table.Rows[0].Cells, "email"); got != "a@x.com" {
			t.Errorf("email = %q, want a@x.com", got)
		}
	})

	t.Run("missing required column", func(t *testing.T) {
		_, err := readCSVTable("name\nA\n", specs)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("error = %v, want *ValidationError", err)
		}
		if ve.Line != 1 || ve.Field != "email" || ve.Message != "missing required column" {
			t.Errorf("error = %+v, want line 1 email missing required column", ve)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := readCSVTable("  \n\n", specs)
		if err == nil || err.Error() != "file is empty" {
			t.Errorf("error = %v, want file is empty", err)
		}
	})
}
