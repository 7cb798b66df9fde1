package quiz

import (
	"errors"
	"testing"

	"github.com/YLF-Cat/man-eating-tree-offline/internal/roster"
)

func TestParseCipherDigitsOnly(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"213", 213, false},
		{"0213", 213, false},
		{"6499", 6499, false},
		{"0", 0, false},
		{"", 0, true},
		{"-213", 0, true},
		{"+213", 0, true},
		{"21 3", 0, true},
		{" 213", 0, true},
		{"21a", 0, true},
		{"2.13", 0, true},
		{"二一三", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseCipher(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrMalformedCipher) {
				t.Errorf("ParseCipher(%q) err = %v, want ErrMalformedCipher", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCipher(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseCipher(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

// Overflowing digit strings are numeric input with an absurd seat number,
// not a malformed cipher.
func TestParseCipherOverflow(t *testing.T) {
	for _, raw := range []string{"99999999999999999999", "9223372036854775808"} {
		if _, err := ParseCipher(raw); !errors.Is(err, roster.ErrSIDOutOfRange) {
			t.Errorf("ParseCipher(%q) err = %v, want roster.ErrSIDOutOfRange", raw, err)
		}
	}
}

func TestSplitCipher(t *testing.T) {
	sid, suffix := splitCipher(213)
	if sid != 2 || suffix != 13 {
		t.Fatalf("splitCipher(213) = (%d, %d), want (2, 13)", sid, suffix)
	}
	sid, suffix = splitCipher(6400)
	if sid != 64 || suffix != 0 {
		t.Fatalf("splitCipher(6400) = (%d, %d), want (64, 0)", sid, suffix)
	}
	sid, suffix = splitCipher(99)
	if sid != 0 || suffix != 99 {
		t.Fatalf("splitCipher(99) = (%d, %d), want (0, 99)", sid, suffix)
	}
}

func TestCheckSuffixBounds(t *testing.T) {
	if err := checkSuffix(0); !errors.Is(err, ErrSuffixOutOfRange) {
		t.Errorf("suffix 0 should be out of range, got %v", err)
	}
	for _, s := range []int{1, 50, 99} {
		if err := checkSuffix(s); err != nil {
			t.Errorf("suffix %d should be valid, got %v", s, err)
		}
	}
}

func TestCheckSIDBounds(t *testing.T) {
	for _, sid := range []int{0, -1, 65, 100} {
		if err := checkSID(sid); !errors.Is(err, roster.ErrSIDOutOfRange) {
			t.Errorf("sid %d should be out of range, got %v", sid, err)
		}
	}
	for _, sid := range []int{1, 32, 64} {
		if err := checkSID(sid); err != nil {
			t.Errorf("sid %d should be valid, got %v", sid, err)
		}
	}
}

func TestOptionIndexUnmask(t *testing.T) {
	idx, err := optionIndex(13, 10, 3)
	if err != nil || idx != 3 {
		t.Fatalf("optionIndex(13,10,3) = (%d, %v), want (3, nil)", idx, err)
	}
	if _, err := optionIndex(14, 10, 3); !errors.Is(err, ErrOptionIndexOutOfRange) {
		t.Fatalf("index above option count should fail, got %v", err)
	}
	if _, err := optionIndex(10, 10, 3); !errors.Is(err, ErrOptionIndexOutOfRange) {
		t.Fatalf("index 0 should fail, got %v", err)
	}
	if _, err := optionIndex(5, 10, 3); !errors.Is(err, ErrOptionIndexOutOfRange) {
		t.Fatalf("negative index should fail, got %v", err)
	}
}

// Round trip: sid*100 + offset + idx always decodes back to (sid, idx) for
// every roster sid and every option index.
func TestCipherRoundTrip(t *testing.T) {
	const optionCount = 10
	offsets := []int{0, 1, 17, 42, 89}
	for _, offset := range offsets {
		for sid := roster.MinSID; sid <= roster.MaxSID; sid++ {
			for idx := 1; idx <= optionCount; idx++ {
				cipher := int64(sid*100 + offset + idx)
				gotSID, gotSuffix := splitCipher(cipher)
				if gotSID != sid {
					t.Fatalf("cipher %d: sid = %d, want %d", cipher, gotSID, sid)
				}
				if err := checkSuffix(gotSuffix); err != nil {
					t.Fatalf("cipher %d: suffix %d rejected: %v", cipher, gotSuffix, err)
				}
				gotIdx, err := optionIndex(gotSuffix, offset, optionCount)
				if err != nil {
					t.Fatalf("cipher %d: decode failed: %v", cipher, err)
				}
				if gotIdx != idx {
					t.Fatalf("cipher %d: idx = %d, want %d", cipher, gotIdx, idx)
				}
			}
		}
	}
}
