package nft

import (
	"errors"
	"testing"
)

func TestMintRequestValidate(t *testing.T) {
	valid := MintRequest{Name: "a", Description: "b", Image: []byte{1}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	cases := []MintRequest{
		{Description: "b", Image: []byte{1}},
		{Name: "a", Image: []byte{1}},
		{Name: "a", Description: "b"},
		{Name: "   ", Description: "b", Image: []byte{1}},
		{},
	}
	for i, c := range cases {
		if err := c.Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("case %d: err = %v, want ErrValidation", i, err)
		}
	}
}

func TestRecordBelongsTo(t *testing.T) {
	r := Record{
		TokenID: 1,
		Owner:   "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		Creator: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	}

	// owner and creator both count, case-insensitively
	if !r.BelongsTo("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa") {
		t.Fatal("owner match must be case-insensitive")
	}
	if !r.BelongsTo("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB") {
		t.Fatal("creator match must be case-insensitive")
	}
	if r.BelongsTo("0xcccccccccccccccccccccccccccccccccccccccc") {
		t.Fatal("unrelated address must not match")
	}
	if r.BelongsTo("") {
		t.Fatal("empty address must not match")
	}
}
