package core

import (
	"testing"
)

func TestNewWhereBuilder(t *testing.T) {
	wb := NewWhereBuilder()

	if wb.argIndex != 1 {
		t.Errorf("expected argIndex to be 1, got %d", wb.argIndex)
	}
	if len(wb.conditions) != 0 || len(wb.args) != 0 {
		t.Errorf("expected empty builder, got %v %v", wb.conditions, wb.args)
	}
}

func TestWhereBuilder_Build_Empty(t *testing.T) {
	whereClause, args := NewWhereBuilder().Build()

	if whereClause != "" {
		t.Errorf("expected empty string for no conditions, got %q", whereClause)
	}
	if args != nil {
		t.Errorf("expected nil args for no conditions, got %v", args)
	}
}

func TestWhereBuilder_Add(t *testing.T) {
	wb := NewWhereBuilder()
	wb.Add("status_adesao", "ativo")
	wb.Add("comunidade", "")
	wb.Add("matricula", "JC0001")

	whereClause, args := wb.Build()

	want := ` WHERE "status_adesao" = $1 AND "matricula" = $2`
	if whereClause != want {
		t.Errorf("expected %q, got %q", want, whereClause)
	}
	if len(args) != 2 || args[0] != "ativo" || args[1] != "JC0001" {
		t.Errorf("unexpected args %v", args)
	}
	if wb.NextArgIndex() != 3 {
		t.Errorf("NextArgIndex = %d, want 3", wb.NextArgIndex())
	}
}

func TestWhereBuilder_AddContains(t *testing.T) {
	tests := []struct {
		name      string
		column    string
		value     string
		wantWhere string
		wantArg   any
	}{
		{"plain column", "nome_cliente", "maria", ` WHERE "nome_cliente" ILIKE $1`, "%maria%"},
		{"qualified column", "a.matricula", "JC", ` WHERE "a"."matricula" ILIKE $1`, "%JC%"},
		{"value is trimmed", "endereco", "  rua  ", ` WHERE "endereco" ILIKE $1`, "%rua%"},
		{"blank value skipped", "endereco", "   ", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := NewWhereBuilder()
			wb.AddContains(tt.column, tt.value)
			where, args := wb.Build()

			if where != tt.wantWhere {
				t.Errorf("where = %q, want %q", where, tt.wantWhere)
			}
			if tt.wantArg == nil {
				if args != nil {
					t.Errorf("args = %v, want nil", args)
				}
				return
			}
			if len(args) != 1 || args[0] != tt.wantArg {
				t.Errorf("args = %v, want [%v]", args, tt.wantArg)
			}
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"matricula", `"matricula"`},
		{"c.dt_conf", `"c"."dt_conf"`},
		{`bad"name`, `"bad""name"`},
	}
	for _, tt := range tests {
		if got := quoteIdentifier(tt.in); got != tt.want {
			t.Errorf("quoteIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
