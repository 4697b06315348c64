package cachekey

import (
	"reflect"
	"testing"
)

func baseContext() Context {
	return Context{
		Schema:      "dbo",
		Table:       "SalesHistory",
		DateCol:     "OrderDate",
		ItemCol:     "ItemNumber",
		QtyCol:      "Quantity",
		ModelType:   "ridge",
		HorizonDays: 30,
		ItemID:      "SKU-1001",
		Dimensions: []Dimension{
			PlanningAreas([]string{"EMEA", "APAC"}),
			Scenarios(nil),
		},
	}
}

func TestNormalize_Identifiers(t *testing.T) {
	tests := []struct {
		name string
		in   Context
		want Context
	}{
		{
			name: "bracket quoted identifiers",
			in: Context{
				Schema:  "[dbo]",
				Table:   "[SalesHistory]",
				DateCol: "[OrderDate]",
				ItemCol: "[ItemNumber]",
				QtyCol:  "[Quantity]",
			},
			want: Context{
				Schema:  "dbo",
				Table:   "SalesHistory",
				DateCol: "OrderDate",
				ItemCol: "ItemNumber",
				QtyCol:  "Quantity",
			},
		},
		{
			name: "schema qualified table keeps table part",
			in:   Context{Table: "dbo.SalesHistory"},
			want: Context{Table: "SalesHistory"},
		},
		{
			name: "bracketed schema qualified table",
			in:   Context{Table: "[dbo].[SalesHistory]"},
			want: Context{Table: "SalesHistory"},
		},
		{
			name: "doubled closing bracket unescaped",
			in:   Context{Table: "[Foo]]]"},
			want: Context{Table: "Foo]"},
		},
		{
			name: "case is preserved",
			in:   Context{Table: "[SALES]", DateCol: "orderDATE"},
			want: Context{Table: "SALES", DateCol: "orderDATE"},
		},
		{
			name: "double quoted identifier",
			in:   Context{QtyCol: `"Quantity"`},
			want: Context{QtyCol: "Quantity"},
		},
		{
			name: "malformed input degrades without error",
			in:   Context{Table: "[", DateCol: "]"},
			want: Context{Table: "[", DateCol: "]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalize_Dimensions(t *testing.T) {
	ctx := Context{Dimensions: []Dimension{
		PlanningAreas([]string{"B", "A", "B"}),
		Scenarios(nil),
	}}

	got := ctx.Normalize()

	if want := []string{"A", "B"}; !reflect.DeepEqual(got.Dimensions[0].Values, want) {
		t.Errorf("planning areas = %v, want %v", got.Dimensions[0].Values, want)
	}
	if got.Dimensions[1].Values != nil {
		t.Errorf("nil dimension values must stay nil, got %v", got.Dimensions[1].Values)
	}
}

func TestNormalize_EmptyVsNilDistinct(t *testing.T) {
	unused := Context{Dimensions: []Dimension{PlanningAreas(nil)}}.Normalize()
	empty := Context{Dimensions: []Dimension{PlanningAreas([]string{})}}.Normalize()

	if unused.Dimensions[0].Values != nil {
		t.Error("unused dimension must normalize to nil values")
	}
	if empty.Dimensions[0].Values == nil {
		t.Error("empty selection must normalize to a non-nil empty slice")
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	ctx := Context{
		Schema: "[dbo]",
		Table:  "[dbo].[Sales]]]",
		Dimensions: []Dimension{
			PlanningAreas([]string{"Z", "A", "A"}),
		},
	}

	once := ctx.Normalize()
	twice := once.Normalize()
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Normalize not idempotent: %+v != %+v", once, twice)
	}
}
