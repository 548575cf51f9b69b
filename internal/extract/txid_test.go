package extract

import "testing"

func TestTransactionID(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{
			name: "cbe reference run",
			text: "Transferred with reference FT25301QWRT8 successfully",
			want: "FT25301QWRT8",
		},
		{
			name: "zemen payment order",
			text: "Payment Order Number:\nPO2530188765",
			want: "PO2530188765",
		},
		{
			name: "telebirr invoice",
			text: "Invoice No: DAE3SX92FL",
			want: "DAE3SX92FL",
		},
		{
			name: "labeled transaction id",
			text: "Transaction ID: AB12cd34",
			want: "AB12cd34",
		},
		{
			name: "txn label",
			text: "House: 407 Amount: 500 TXN:ABC123",
			want: "ABC123",
		},
		{
			name: "hyphenated id",
			text: "ref C4E-9A1-77B done",
			want: "C4E-9A1-77B",
		},
		{
			name: "payment reason tokens excluded",
			text: "payment reason COMPOUND1234\nsome other text",
			want: "",
		},
		{
			name: "plain words never qualify",
			text: "TRANSACTION COMPLETED SUCCESSFULLY",
			want: "",
		},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TransactionID(tc.text); got != tc.want {
				t.Fatalf("TransactionID(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestUserTransactionID(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"labeled", "txid: FT25301QWRT8", "FT25301QWRT8"},
		{"ref label", "ref FT25301QWRT8", "FT25301QWRT8"},
		{"bare digit-prefixed id", "10BBETF53170884", "10BBETF53170884"},
		{"plain text", "water payment for 407", ""},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := UserTransactionID(tc.text); got != tc.want {
				t.Fatalf("UserTransactionID(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}
