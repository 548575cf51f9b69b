package extract

import "testing"

func TestAmount(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{
			name: "settled amount wins",
			text: "Total Amount: ETB 115.00\nSettled Amount: ETB 100.00",
			want: "100.00",
		},
		{
			name: "settled amount on next line",
			text: "Settled Amount\nETB 1,000.00\nTotal Amount\nETB 1,150.00",
			want: "1000.00",
		},
		{
			name: "labeled without vat",
			text: "Subtotal: 500.00\nVAT: 75.00\nTotal: 575.00",
			want: "500.00",
		},
		{
			name: "debited base amount",
			text: "ETB 500.00 debited from account 1000123",
			want: "500.00",
		},
		{
			name: "debited guarded by total",
			text: "Total of ETB 575.00 debited\nAmount ETB 500.00",
			want: "500",
		},
		{
			name: "vat-adjacent candidates fall through to standalone",
			text: "Amount: ETB 500.00\nVAT ETB 75.00\nTotal ETB 575.00",
			want: "500.00",
		},
		{
			name: "vat and net without currency markers",
			text: "VAT: 15.00\nTotal: 100.00",
			want: "100.00",
		},
		{
			name: "amount with trailing currency",
			text: "xx yy 1,000.00 Birr zz",
			want: "1000",
		},
		{
			name: "labeled integer amount",
			text: "House: 407 Amount: 500 TXN:ABC123",
			want: "500",
		},
		{
			name: "below plausibility floor",
			text: "service charge ETB 10.00",
			want: "",
		},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Amount(tc.text); got != tc.want {
				t.Fatalf("Amount(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}
